// Package app wires the script evaluator, geometry kernel and assembly
// engine into the pipeline the command line drives: evaluate a scene
// script, validate it, build its solids, run its assembly steps and
// optionally tessellate the result.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/chazu/joinery/pkg/assembly"
	"github.com/chazu/joinery/pkg/collision"
	"github.com/chazu/joinery/pkg/config"
	"github.com/chazu/joinery/pkg/feature"
	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/kernel/sdfx"
	"github.com/chazu/joinery/pkg/scene"
	"github.com/chazu/joinery/pkg/script"
	"github.com/chazu/joinery/pkg/tessellate"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Problem is an evaluation error or validation finding, flattened for
// display and JSON output.
type Problem struct {
	Severity string `json:"severity"`
	Line     int    `json:"line,omitempty"`
	Col      int    `json:"col,omitempty"`
	Part     string `json:"part,omitempty"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	loc := ""
	if p.Line > 0 {
		loc = fmt.Sprintf("line %d: ", p.Line)
	}
	if p.Part != "" {
		loc += fmt.Sprintf("part %s: ", p.Part)
	}
	return fmt.Sprintf("%s: %s%s", p.Severity, loc, p.Message)
}

// PartPlacement is the final pose of one part.
type PartPlacement struct {
	Name      string         `json:"name"`
	Transform geom.Transform `json:"transform"`
}

// StepNames names the parts of one assembly step.
type StepNames struct {
	Fixed  string `json:"fixed"`
	Moving string `json:"moving"`
}

// Clash is a pair of parts that still interfere after assembly.
type Clash struct {
	A      string           `json:"a"`
	B      string           `json:"b"`
	Report collision.Report `json:"report"`
}

// Outcome is everything one Assemble call produced. Steps lines up with
// Sequence.Steps.
type Outcome struct {
	Problems   []Problem                `json:"problems"`
	Config     assembly.Config          `json:"config"`
	Steps      []StepNames              `json:"steps"`
	Sequence   *assembly.SequenceResult `json:"sequence,omitempty"`
	Placements []PartPlacement          `json:"placements"`
	Clashes    []Clash                  `json:"clashes"`
	Meshes     []tessellate.MeshData    `json:"meshes,omitempty"`
	Duration   time.Duration            `json:"duration"`
}

// OK reports whether the scene was valid and every step succeeded.
func (o *Outcome) OK() bool {
	if hasErrors(o.Problems) || o.Sequence == nil {
		return false
	}
	return o.Sequence.Success
}

// AssembleOptions selects optional work for Assemble.
type AssembleOptions struct {
	// Meshes tessellates every part at its final placement.
	Meshes bool
}

// App holds the long-lived components. It is safe to call Check and
// Assemble from one goroutine at a time; the engine and history are shared.
type App struct {
	cfg       config.Config
	evaluator *script.Evaluator
	kernel    *sdfx.SdfxKernel
	features  *feature.Cache
	engine    *assembly.Engine
	history   *assembly.History
	registry  *prometheus.Registry
	log       *zap.Logger
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger handed to every component.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.log = l }
}

// New builds an App from cfg. When metrics are enabled the assembly
// collectors go into a private registry exposed by Registry.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}

	a.kernel = sdfx.New(
		sdfx.WithMeshCells(cfg.Kernel.MeshCells),
		sdfx.WithVolumeCells(cfg.Kernel.VolumeCells),
		sdfx.WithLogger(a.log.Named("kernel")))
	a.evaluator = script.New(
		script.WithTimeout(cfg.Script.Timeout),
		script.WithLogger(a.log.Named("script")))
	a.history = assembly.NewHistory(0)

	observers := []assembly.Observer{a.history}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		m, err := assembly.NewMetrics(a.registry)
		if err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
		observers = append(observers, m)
	}
	a.features = feature.NewCache(feature.NewExtractor(a.kernel, feature.WithLogger(a.log.Named("feature"))))
	a.engine = assembly.NewEngine(a.kernel,
		assembly.WithLogger(a.log.Named("assembly")),
		assembly.WithFeatureSource(a.features),
		assembly.WithObserver(observers...))
	return a, nil
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Stats summarizes every assembly this App has run.
func (a *App) Stats() assembly.Stats { return a.history.Stats() }

// Tune tightens the base assembly settings when the recent average quality
// is below target. It reports whether anything changed.
func (a *App) Tune(target float64) bool {
	cfg, changed := a.history.Tune(a.cfg.Assembly, target)
	if changed {
		a.log.Info("tightened assembly settings",
			zap.Float64("tolerance", cfg.Tolerance),
			zap.Int("max_match_attempts", cfg.MaxMatchAttempts))
		a.cfg.Assembly = cfg
	}
	return changed
}

// AssemblyConfig returns the base assembly settings scene scripts override.
func (a *App) AssemblyConfig() assembly.Config { return a.cfg.Assembly }

// Check evaluates and validates src. A nil scene with a nil error means
// the script itself failed; the problems say why. The error is reserved
// for timeouts, cancellation and panics.
func (a *App) Check(ctx context.Context, src string) (*scene.Scene, []Problem, error) {
	s, evalErrs, err := a.evaluator.Evaluate(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	problems := []Problem{}
	for _, e := range evalErrs {
		problems = append(problems, Problem{Severity: "error", Line: e.Line, Col: e.Col, Message: e.Message})
	}
	if s == nil {
		return nil, problems, nil
	}
	for _, v := range scene.Validate(s) {
		problems = append(problems, Problem{
			Severity: v.Severity.String(),
			Line:     v.Line,
			Part:     v.Part,
			Message:  v.Message,
		})
	}
	return s, problems, nil
}

// Assemble runs the full pipeline on src. Scene problems are reported in
// the outcome rather than as an error; the error covers fatal evaluation
// failures, kernel failures while building and cancellation.
func (a *App) Assemble(ctx context.Context, src string, opts AssembleOptions) (*Outcome, error) {
	start := time.Now()
	s, problems, err := a.Check(ctx, src)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		Problems:   problems,
		Config:     a.cfg.Assembly,
		Steps:      []StepNames{},
		Placements: []PartPlacement{},
		Clashes:    []Clash{},
	}
	defer func() { out.Duration = time.Since(start) }()
	if s == nil || hasErrors(problems) {
		a.log.Info("scene rejected", zap.Int("problems", len(problems)))
		return out, nil
	}

	out.Config = s.Settings.Apply(a.cfg.Assembly)
	warnings, err := out.Config.Validate()
	for _, w := range warnings {
		out.Problems = append(out.Problems, Problem{Severity: "warning", Message: w})
	}
	if err != nil {
		out.Problems = append(out.Problems, Problem{Severity: "error", Message: err.Error()})
		return out, nil
	}

	built, err := scene.Build(s, a.kernel)
	if err != nil {
		return nil, fmt.Errorf("app: build scene: %w", err)
	}
	defer func() {
		for _, sol := range built.Solids {
			a.features.Forget(sol.ID())
		}
	}()
	for _, st := range s.Steps {
		out.Steps = append(out.Steps, StepNames{Fixed: st.Fixed, Moving: st.Moving})
	}
	seq := a.engine.AssembleSequence(ctx, built.Steps, out.Config)
	out.Sequence = &seq
	for _, sol := range built.Solids {
		out.Placements = append(out.Placements, PartPlacement{Name: sol.Name(), Transform: sol.Placement()})
	}
	a.log.Info("scene assembled",
		zap.Int("parts", len(built.Solids)),
		zap.Int("steps", len(built.Steps)),
		zap.Bool("success", seq.Success),
		zap.Int("conflicts", len(seq.Conflicts)),
		zap.Float64("quality", seq.Quality),
		zap.Duration("elapsed", seq.Duration))
	if seq.Err != nil {
		return out, seq.Err
	}
	if hits, misses := a.features.Stats(); hits+misses > 0 {
		a.log.Debug("feature cache", zap.Int("hits", hits), zap.Int("misses", misses))
	}

	if err := a.findClashes(ctx, out, built); err != nil {
		return out, err
	}

	if opts.Meshes {
		meshes, err := tessellate.Tessellate(ctx, built.Views(), a.kernel)
		if err != nil {
			return out, fmt.Errorf("app: tessellate: %w", err)
		}
		out.Meshes = tessellate.Colorize(meshes)
	}
	return out, nil
}

// findClashes checks every pair of parts at its final placement, catching
// interference between parts no step related.
func (a *App) findClashes(ctx context.Context, out *Outcome, built *scene.Built) error {
	detector := collision.NewDetector(a.kernel,
		collision.WithVolumeThreshold(out.Config.VolumeThreshold),
		collision.WithLogger(a.log.Named("collision")))
	pairs, err := detector.CheckAll(ctx, built.Views(), out.Config.Tolerance)
	if err != nil {
		return fmt.Errorf("app: final interference check: %w", err)
	}
	for _, p := range pairs {
		if !p.Report.HasCollision {
			continue
		}
		out.Clashes = append(out.Clashes, Clash{
			A:      built.Solids[p.I].Name(),
			B:      built.Solids[p.J].Name(),
			Report: p.Report,
		})
	}
	if n := len(out.Clashes); n > 0 {
		a.log.Warn("parts interfere after assembly", zap.Int("pairs", n))
	}
	return nil
}

// WriteReport writes the JSON report of an assembled outcome, including the
// statistics of every run so far.
func (a *App) WriteReport(w io.Writer, o *Outcome) error {
	if o.Sequence == nil {
		return fmt.Errorf("app: no assembly to report")
	}
	stats := a.Stats()
	return assembly.WriteSequenceReport(w, *o.Sequence, o.Config, &stats)
}

// WriteMetrics writes the registry to path in the Prometheus text format.
func (a *App) WriteMetrics(path string) error {
	if a.registry == nil {
		return fmt.Errorf("app: metrics are disabled")
	}
	if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
		return fmt.Errorf("app: write metrics: %w", err)
	}
	return nil
}

func hasErrors(ps []Problem) bool {
	for _, p := range ps {
		if p.Severity == "error" {
			return true
		}
	}
	return false
}

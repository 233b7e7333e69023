package script

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/joinery/pkg/geom"
	"github.com/chazu/joinery/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Values passed between builtins
// ---------------------------------------------------------------------------

// sexpShape carries an unnamed primitive from box, cylinder, sphere or
// bore to defpart.
type sexpShape struct {
	part scene.Part
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	switch s.part.Kind {
	case scene.PrimBox:
		return fmt.Sprintf("(box %g %g %g)", s.part.Size[0], s.part.Size[1], s.part.Size[2])
	case scene.PrimCylinder:
		return fmt.Sprintf("(cylinder :height %g :radius %g)", s.part.Height, s.part.Radius)
	default:
		return fmt.Sprintf("(%s :radius %g)", s.part.Kind, s.part.Radius)
	}
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpPartRef names a part defined earlier in the script.
type sexpPartRef struct {
	name string
}

func (p *sexpPartRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(part %q)", p.name)
}
func (p *sexpPartRef) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a keyword rewritten by preprocessSource and
// returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs is a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	out := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			out.positional = append(out.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			out.kw[name] = args[i+1]
			i++
		} else {
			out.kw[name] = zygo.SexpNull
		}
	}
	return out
}

// float reads an optional numeric keyword into dst.
func (a kwArgs) float(key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func (a kwArgs) vec(key string, dst *geom.Vec3) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = vec
	return nil
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toAxis accepts :x, :y, :z or the plain strings "x", "y", "z".
func toAxis(s zygo.Sexp) (int, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return 0, fmt.Errorf("expected axis keyword (:x, :y, :z), got %T", s)
	}
	switch strings.TrimPrefix(str.S, kwPrefix) {
	case "x":
		return 0, nil
	case "y":
		return 1, nil
	case "z":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis %q, expected x, y, or z", strings.TrimPrefix(str.S, kwPrefix))
}

func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toPartName accepts a part reference or a plain name.
func toPartName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpPartRef:
		return v.name, nil
	case *zygo.SexpStr:
		if _, kw := isKW(v); !kw {
			return v.S, nil
		}
	}
	return "", fmt.Errorf("expected part reference or name, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type builtin = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the scene builtins into env. They populate s
// as the script runs. Source must go through preprocessSource first so
// keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, s *scene.Scene) {
	env.AddFunction("vec3", builtinVec3)
	env.AddFunction("box", builtinBox)
	env.AddFunction("cylinder", builtinCylinder)
	env.AddFunction("sphere", builtinSphere)
	env.AddFunction("bore", builtinBore)
	env.AddFunction("defpart", defpart(s))
	env.AddFunction("part", partRef(s))
	env.AddFunction("assemble", assemble(s))
	env.AddFunction("settings", settings(s))
}

// (vec3 1 2 3)
func builtinVec3(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 3 {
		return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
	}
	var v geom.Vec3
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
		}
		v[i] = f
	}
	return &sexpVec3{vec: v}, nil
}

// (box 40 40 10) or (box :size (vec3 40 40 10))
func builtinBox(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	p := scene.Part{Kind: scene.PrimBox}
	switch len(pa.positional) {
	case 0:
		if err := pa.vec("size", &p.Size); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
	case 3:
		for i, a := range pa.positional {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i, err)
			}
			p.Size[i] = f
		}
	default:
		return zygo.SexpNull, fmt.Errorf("box takes three dimensions or :size, got %d positional arguments", len(pa.positional))
	}
	return &sexpShape{part: p}, nil
}

// (cylinder :height 20 :radius 5)
func builtinCylinder(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	p := scene.Part{Kind: scene.PrimCylinder}
	if err := pa.float("height", &p.Height); err != nil {
		return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
	}
	if err := pa.float("radius", &p.Radius); err != nil {
		return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
	}
	return &sexpShape{part: p}, nil
}

// (sphere :radius 3)
func builtinSphere(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	p := scene.Part{Kind: scene.PrimSphere}
	if err := pa.float("radius", &p.Radius); err != nil {
		return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
	}
	return &sexpShape{part: p}, nil
}

// (bore (box 40 40 10) :axis :z :u 20 :v 20 :radius 5)
func builtinBore(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) != 1 {
		return zygo.SexpNull, fmt.Errorf("bore requires a shape as its first argument")
	}
	shape, ok := pa.positional[0].(*sexpShape)
	if !ok {
		return zygo.SexpNull, fmt.Errorf("bore: expected shape, got %T", pa.positional[0])
	}
	b := scene.Bore{Axis: 2}
	if v, ok := pa.kw["axis"]; ok {
		a, err := toAxis(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bore: axis: %w", err)
		}
		b.Axis = a
	}
	for key, dst := range map[string]*float64{"u": &b.U, "v": &b.V, "radius": &b.Radius} {
		if err := pa.float(key, dst); err != nil {
			return zygo.SexpNull, fmt.Errorf("bore: %w", err)
		}
	}
	p := shape.part
	p.Bores = append(append([]scene.Bore(nil), p.Bores...), b)
	return &sexpShape{part: p}, nil
}

// (defpart "name" shape :at (vec3 0 0 0) :rotate (vec3 0 90 0))
func defpart(s *scene.Scene) builtin {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("defpart requires a name and a shape expression")
		}
		partName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: name: %w", err)
		}
		shape, ok := pa.positional[1].(*sexpShape)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("defpart: expected shape expression, got %T", pa.positional[1])
		}
		var at, rot geom.Vec3
		if err := pa.vec("at", &at); err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: %w", err)
		}
		if err := pa.vec("rotate", &rot); err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: %w", err)
		}

		p := shape.part
		p.Name = partName
		p.Placement = geom.FromEulerDegrees(rot[0], rot[1], rot[2], at)
		if err := s.AddPart(p); err != nil {
			return zygo.SexpNull, fmt.Errorf("defpart: %w", err)
		}
		return &sexpPartRef{name: partName}, nil
	}
}

// (part "name")
func partRef(s *scene.Scene) builtin {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("part requires a name argument")
		}
		partName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("part: name: %w", err)
		}
		if s.Lookup(partName) == nil {
			return zygo.SexpNull, fmt.Errorf("part: no part named %q", partName)
		}
		return &sexpPartRef{name: partName}, nil
	}
}

// (assemble base p1 p2 ...) attaches each later part to the first.
func assemble(s *scene.Scene) builtin {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("assemble requires a fixed part and at least one moving part")
		}
		names := make([]string, len(args))
		for i, a := range args {
			n, err := toPartName(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("assemble: argument %d: %w", i, err)
			}
			if s.Lookup(n) == nil {
				return zygo.SexpNull, fmt.Errorf("assemble: no part named %q", n)
			}
			names[i] = n
		}
		for _, moving := range names[1:] {
			s.AddStep(names[0], moving, 0)
		}
		return &sexpPartRef{name: names[0]}, nil
	}
}

// (settings :tolerance 0.05 :max-match-attempts 10 :require-exact-contact true)
func settings(s *scene.Scene) builtin {
	floats := map[string]func(*scene.Settings, float64){
		"tolerance":         func(st *scene.Settings, f float64) { st.Tolerance = &f },
		"angular-tolerance": func(st *scene.Settings, f float64) { st.AngularTolerance = &f },
		"volume-threshold":  func(st *scene.Settings, f float64) { st.VolumeThreshold = &f },
		"min-score":         func(st *scene.Settings, f float64) { st.MinScore = &f },
		"pin-clearance":     func(st *scene.Settings, f float64) { st.PinClearance = &f },
	}
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("settings takes only keyword arguments")
		}
		for key, v := range pa.kw {
			switch key {
			case "max-match-attempts":
				n, err := toInt(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("settings: %s: %w", key, err)
				}
				s.Settings.MaxMatchAttempts = &n
			case "require-exact-contact":
				b, err := toBool(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("settings: %s: %w", key, err)
				}
				s.Settings.RequireExactContact = &b
			default:
				set, ok := floats[key]
				if !ok {
					return zygo.SexpNull, fmt.Errorf("settings: unknown setting %q", key)
				}
				f, err := toFloat64(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("settings: %s: %w", key, err)
				}
				set(&s.Settings, f)
			}
		}
		return zygo.SexpNull, nil
	}
}

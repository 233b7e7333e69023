package assembly

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/chazu/joinery/pkg/errors"
	"github.com/chazu/joinery/pkg/kernel/sdfx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHistoryStats(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, Stats{Failures: map[errors.Code]int{}}, h.Stats())

	h.ObserveAssembly(Result{Success: true, Quality: 1, Duration: 2 * time.Second})
	h.ObserveAssembly(Result{Success: true, Quality: 0.5, Duration: 4 * time.Second})
	h.ObserveAssembly(Result{Err: errors.New(errors.NoValidAlignment, "x")})
	h.ObserveAssembly(Result{Err: errors.New(errors.NoValidAlignment, "y")})

	s := h.Stats()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Successful)
	assert.InDelta(t, 50, s.SuccessRate, 1e-12)
	assert.InDelta(t, 0.375, s.AverageQuality, 1e-12)
	assert.Equal(t, 1500*time.Millisecond, s.AverageDuration)
	assert.Equal(t, map[errors.Code]int{errors.NoValidAlignment: 2}, s.Failures)

	h.Clear()
	assert.Zero(t, h.Stats().Total)
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.ObserveAssembly(Result{ID: string(rune('a' + i))})
	}
	var ids []string
	for _, r := range h.Recent(-1) {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "d", "e"}, ids)
	require.Len(t, h.Recent(1), 1)
	assert.Equal(t, "e", h.Recent(1)[0].ID)
}

func TestHistoryTune(t *testing.T) {
	h := NewHistory(0)
	cfg := DefaultConfig()
	for i := 0; i < 4; i++ {
		h.ObserveAssembly(Result{Quality: 0.2})
	}
	_, changed := h.Tune(cfg, 0.8)
	assert.False(t, changed, "too little history")

	h.ObserveAssembly(Result{Quality: 0.2})
	tuned, changed := h.Tune(cfg, 0.8)
	require.True(t, changed)
	assert.InDelta(t, 0.008, tuned.Tolerance, 1e-12)
	assert.Equal(t, 6, tuned.MaxMatchAttempts)

	_, changed = h.Tune(cfg, 0.1)
	assert.False(t, changed, "target already met")

	cfg.Tolerance, cfg.MaxMatchAttempts = 0.001, 450
	tuned, _ = h.Tune(cfg, 0.8)
	assert.Equal(t, 0.001, tuned.Tolerance)
	assert.Equal(t, 500, tuned.MaxMatchAttempts)
}

func TestEngineNotifiesObservers(t *testing.T) {
	k := sdfx.New()
	h := NewHistory(0)
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	var seen []string
	e := NewEngine(k, WithObserver(h, m, ObserverFunc(func(r Result) { seen = append(seen, r.ID) })))

	a, b, src := flushPair(t, k)
	e.source = src
	ok := e.Assemble(context.Background(), a, b, DefaultConfig())
	require.True(t, ok.Success)

	a, b, src = collidingPair(t, k)
	e.source = src
	bad := e.Assemble(context.Background(), a, b, DefaultConfig())
	require.False(t, bad.Success)

	assert.Equal(t, []string{ok.ID, bad.ID}, seen)
	assert.Equal(t, 2, h.Stats().Total)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues(string(errors.NoValidAlignment))))
}

func TestPanickingObserverIsContained(t *testing.T) {
	k := sdfx.New()
	core, logs := observer.New(zapcore.ErrorLevel)
	var seen int
	e := NewEngine(k,
		WithLogger(zap.New(core)),
		WithObserver(
			ObserverFunc(func(Result) { panic("collector broke") }),
			ObserverFunc(func(Result) { seen++ }),
		))

	a, b, src := flushPair(t, k)
	e.source = src
	var res Result
	require.NotPanics(t, func() { res = e.Assemble(context.Background(), a, b, DefaultConfig()) })
	assert.True(t, res.Success)
	assert.Equal(t, 1, seen, "later observers still run")
	assert.Equal(t, 1, logs.FilterMessage("observer panicked").Len())
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	k := sdfx.New()
	plate, pin := plateAndPin(t, k)
	cfg := DefaultConfig()
	res := NewEngine(k).Assemble(context.Background(), plate, pin, cfg)
	require.True(t, res.Success)

	stats := Stats{Total: 1, Successful: 1, SuccessRate: 100}
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, res, cfg, &stats))

	var got struct {
		Result struct {
			ID      string   `json:"id"`
			Success bool     `json:"success"`
			State   string   `json:"state"`
			Trace   []string `json:"trace"`
			Match   struct {
				FeatureA struct {
					Kind string `json:"kind"`
				} `json:"featureA"`
			} `json:"match"`
		} `json:"result"`
		Error      *string `json:"error"`
		Config     Config  `json:"config"`
		Statistics *Stats  `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, res.ID, got.Result.ID)
	assert.True(t, got.Result.Success)
	assert.Equal(t, "done", got.Result.State)
	assert.Equal(t, "idle", got.Result.Trace[0])
	assert.Equal(t, "cylindrical", got.Result.Match.FeatureA.Kind)
	assert.Nil(t, got.Error)
	assert.Equal(t, cfg, got.Config)
	require.NotNil(t, got.Statistics)
	assert.Equal(t, 1, got.Statistics.Successful)
}

func TestWriteReportFailure(t *testing.T) {
	res := newResult("r1")
	res.fail(errors.New(errors.NoCompatibleFeatures, "nothing mates"))
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, res, DefaultConfig(), nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "NoCompatibleFeatures: nothing mates", got["error"])
	assert.NotContains(t, got, "statistics")
	assert.NotEmpty(t, got["suggestions"])
}

func TestStateAndOutcomeText(t *testing.T) {
	assert.Equal(t, "features-extracted", FeaturesExtracted.String())
	assert.Equal(t, "state(42)", State(42).String())
	b, err := IllFormed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ill-formed", string(b))
}

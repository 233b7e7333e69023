package assembly

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Report is the exported record of one assembly.
type Report struct {
	Timestamp   time.Time `json:"timestamp"`
	Result      Result    `json:"result"`
	Error       string    `json:"error,omitempty"`
	Config      Config    `json:"config"`
	Suggestions []string  `json:"suggestions"`
	Statistics  *Stats    `json:"statistics,omitempty"`
}

// NewReport assembles a Report. stats may be nil.
func NewReport(r Result, cfg Config, stats *Stats) Report {
	rep := Report{
		Timestamp:   time.Now().UTC(),
		Result:      r,
		Config:      cfg,
		Suggestions: Suggest(r),
		Statistics:  stats,
	}
	if rep.Suggestions == nil {
		rep.Suggestions = []string{}
	}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}

// WriteReport writes the report for r as indented JSON.
func WriteReport(w io.Writer, r Result, cfg Config, stats *Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewReport(r, cfg, stats)); err != nil {
		return fmt.Errorf("write assembly report: %w", err)
	}
	return nil
}

// SequenceReport is the exported record of a multi-step assembly.
type SequenceReport struct {
	Timestamp   time.Time      `json:"timestamp"`
	Sequence    SequenceResult `json:"sequence"`
	Error       string         `json:"error,omitempty"`
	Config      Config         `json:"config"`
	Suggestions []string       `json:"suggestions"`
	Statistics  *Stats         `json:"statistics,omitempty"`
}

// WriteSequenceReport writes the report for s as indented JSON.
func WriteSequenceReport(w io.Writer, s SequenceResult, cfg Config, stats *Stats) error {
	rep := SequenceReport{
		Timestamp:   time.Now().UTC(),
		Sequence:    s,
		Config:      cfg,
		Suggestions: s.Suggestions(),
		Statistics:  stats,
	}
	if rep.Suggestions == nil {
		rep.Suggestions = []string{}
	}
	if s.Err != nil {
		rep.Error = s.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("write sequence report: %w", err)
	}
	return nil
}

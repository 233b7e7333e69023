package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/chazu/joinery/pkg/app"
	"github.com/spf13/cobra"
)

type assembleOptions struct {
	report  string
	mesh    string
	metrics string
	json    bool
}

func newAssembleCommand(s *session) *cobra.Command {
	opts := &assembleOptions{}
	cmd := &cobra.Command{
		Use:   "assemble <scene>",
		Short: "Assemble the parts of a scene script",
		Long: `Evaluate a scene script, validate it and run its assembly steps in order.

Each step aligns the moving part onto the fixed part. The final placement of
every part is printed, along with any step that could not be completed.

Examples:
  # Assemble and print a summary
  joinery assemble examples/pin_and_plate.zy

  # Write the full JSON report and the meshes for a viewer
  joinery assemble scene.zy --report report.json --mesh meshes.json

  # Loosen the tolerance for a single run
  joinery assemble scene.zy --tolerance 0.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runAssemble(cmd, args[0], opts)
		},
	}
	addAssemblyFlags(cmd)
	cmd.Flags().StringVar(&opts.report, "report", "", `write the JSON assembly report to this file ("-" for stdout)`)
	cmd.Flags().StringVar(&opts.mesh, "mesh", "", "write the placed part meshes as JSON to this file")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the outcome as JSON instead of a table")
	return cmd
}

func (s *session) runAssemble(cmd *cobra.Command, path string, opts *assembleOptions) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scene: %w", err)
	}
	a, err := s.newApp(opts.metrics)
	if err != nil {
		return err
	}
	out, err := a.Assemble(cmd.Context(), string(src), app.AssembleOptions{Meshes: opts.mesh != ""})
	if err != nil {
		return err
	}

	stdout := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printOutcome(stdout, out)
	}

	if opts.report != "" && out.Sequence != nil {
		if err := writeTo(opts.report, stdout, func(w io.Writer) error { return a.WriteReport(w, out) }); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	if opts.mesh != "" {
		if err := writeTo(opts.mesh, stdout, func(w io.Writer) error { return json.NewEncoder(w).Encode(out.Meshes) }); err != nil {
			return fmt.Errorf("write meshes: %w", err)
		}
	}
	if opts.metrics != "" {
		if err := a.WriteMetrics(opts.metrics); err != nil {
			return err
		}
	}

	if !out.OK() {
		return fmt.Errorf("assembly of %s failed", path)
	}
	return nil
}

// writeTo runs write against path, or against stdout when path is "-".
func writeTo(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printOutcome(w io.Writer, out *app.Outcome) {
	printProblems(w, out.Problems)
	if out.Sequence == nil {
		return
	}
	seq := out.Sequence

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tFIXED\tMOVING\tRESULT\tQUALITY\tATTEMPTS")
	for i, r := range seq.Steps {
		result := "ok"
		switch {
		case r.Reverted:
			result = "reverted"
		case !r.Success:
			result = string(r.Code())
		}
		names := out.Steps[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.2f\t%d\n", i+1, names.Fixed, names.Moving, result, r.Quality, len(r.Attempts))
	}
	tw.Flush()

	for _, c := range seq.Conflicts {
		fmt.Fprintf(w, "  step %d (%s <- %s): %s\n", c.Step+1, c.Fixed, c.Moving, c.Reason)
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PART\tPLACEMENT")
	for _, p := range out.Placements {
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Transform)
	}
	tw.Flush()

	for _, c := range out.Clashes {
		fmt.Fprintf(w, "warning: %s and %s interfere (%s, %.3g mm³)\n", c.A, c.B, c.Report.Kind, c.Report.OverlapVolume)
	}
	for _, h := range seq.Suggestions() {
		fmt.Fprintf(w, "hint: %s\n", h)
	}
	fmt.Fprintf(w, "\nquality %.2f, %d conflict(s), %s\n", seq.Quality, len(seq.Conflicts), seq.Duration.Round(1e6))
}

func printProblems(w io.Writer, problems []app.Problem) {
	for _, p := range problems {
		fmt.Fprintln(w, p.String())
	}
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/joinery/pkg/app"
	"github.com/chazu/joinery/pkg/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCommand(s *session) *cobra.Command {
	var (
		debounce   time.Duration
		tuneTarget float64
	)
	cmd := &cobra.Command{
		Use:   "watch <scene>",
		Short: "Re-assemble a scene script every time it is saved",
		Long: `Assemble the scene once, then again after every change to the file
until interrupted. Failures are printed and watching continues.

With --tune-target, the base tolerance is tightened and the attempt budget
raised whenever the recent average quality falls below the target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.newApp("")
			if err != nil {
				return err
			}
			w, err := watch.New(args[0], watch.WithDebounce(debounce), watch.WithLogger(s.log.Named("watch")))
			if err != nil {
				return err
			}
			defer w.Stop()

			ctx := cmd.Context()
			events, err := w.Watch(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s.assembleOnce(ctx, a, w.Path(), out)
			for ev := range events {
				if ev.Op == watch.Removed {
					s.log.Info("scene removed, waiting for it to reappear", zap.String("path", ev.Path))
					continue
				}
				fmt.Fprintf(out, "\n--- %s changed at %s\n", ev.Path, time.Now().Format(time.TimeOnly))
				s.assembleOnce(ctx, a, ev.Path, out)
				if tuneTarget > 0 && a.Tune(tuneTarget) {
					cfg := a.AssemblyConfig()
					fmt.Fprintf(out, "tuned: tolerance %g, max attempts %d\n", cfg.Tolerance, cfg.MaxMatchAttempts)
				}
			}
			return nil
		},
	}
	addAssemblyFlags(cmd)
	cmd.Flags().Float64Var(&tuneTarget, "tune-target", 0, "tighten settings when average quality drops below this (0 disables)")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period after a change before re-assembling")
	return cmd
}

// assembleOnce runs one assembly and prints the result. Errors are printed
// rather than returned so the watch loop keeps going.
func (s *session) assembleOnce(ctx context.Context, a *app.App, path string, w io.Writer) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	out, err := a.Assemble(ctx, string(src), app.AssembleOptions{})
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	printOutcome(w, out)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCheckCommand(s *session) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check <scene>",
		Short: "Evaluate and validate a scene script without assembling it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read scene: %w", err)
			}
			a, err := s.newApp("")
			if err != nil {
				return err
			}
			sc, problems, err := a.Check(cmd.Context(), string(src))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(problems); err != nil {
					return err
				}
			} else {
				printProblems(w, problems)
				if sc != nil {
					fmt.Fprintf(w, "%d part(s), %d step(s)\n", sc.PartCount(), len(sc.Steps))
				}
			}

			errs := 0
			for _, p := range problems {
				if p.Severity == "error" {
					errs++
				}
			}
			if errs > 0 {
				return fmt.Errorf("%s: %d error(s)", args[0], errs)
			}
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 0, "scene script evaluation limit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print problems as JSON")
	return cmd
}

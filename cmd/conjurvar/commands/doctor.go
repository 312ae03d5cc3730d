package commands

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cverrors "github.com/systmms/conjurvar/internal/errors"
	"github.com/systmms/conjurvar/pkg/lookup"
)

func NewDoctorCommand(g *Globals) *cobra.Command {
	var (
		conn    connectionFlags
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, identity and certificates without contacting Conjur",
		Long: `Verify that a lookup has everything it needs.

This command checks:
- Configuration file, environment and flag resolution
- Identity for the selected authentication method
- Token file, when one is configured
- CA certificate content or file

No network request is made and no secret value is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g.Logger.Info("Checking conjurvar configuration...")

			d := g.lookuper().Diagnose(conn.request(g, ""))
			displayChecks(cmd.OutOrStdout(), d.Checks, verbose)

			passed := 0
			for _, c := range d.Checks {
				if c.Err == nil && !c.Skipped {
					passed++
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d checks passed\n", passed, len(d.Checks))

			if !d.OK() {
				return errors.New("some checks failed")
			}
			g.Logger.Info("Ready to retrieve secrets")
			return nil
		},
	}

	conn.register(cmd)
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failed checks")

	return cmd
}

// displayChecks shows the diagnosis in a formatted table
func displayChecks(out io.Writer, checks []lookup.Check, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tDETAIL\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t------\n")

	for _, c := range checks {
		status, detail := "✓ ok", c.Detail
		switch {
		case c.Skipped:
			status, detail = "- skipped", "an earlier check failed"
		case c.Err != nil:
			status, detail = "✗ error", c.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, status, detail)
	}

	_ = w.Flush()

	if !verbose {
		return
	}
	for _, c := range checks {
		if c.Err == nil {
			continue
		}
		var presented cverrors.UserError
		var configErr cverrors.ConfigError
		switch p := cverrors.Present(c.Err); {
		case errors.As(p, &presented) && presented.Suggestion != "":
			_, _ = fmt.Fprintf(out, "\n%s: %s\n", c.Name, presented.Suggestion)
		case errors.As(p, &configErr) && configErr.Suggestion != "":
			_, _ = fmt.Fprintf(out, "\n%s: %s\n", c.Name, configErr.Suggestion)
		}
	}
}

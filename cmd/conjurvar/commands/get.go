package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cverrors "github.com/systmms/conjurvar/internal/errors"
)

// getOutput is the --json document
type getOutput struct {
	Path    string `json:"path"`
	Account string `json:"account"`
	Method  string `json:"method"`
	Value   string `json:"value,omitempty"`
	File    string `json:"file,omitempty"`
}

func NewGetCommand(g *Globals) *cobra.Command {
	var (
		conn       connectionFlags
		asFile     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "get <variable-id>",
		Short: "Get a single secret value",
		Long: `Authenticate to Conjur and print the value of one variable.

By default only the raw value is printed, without a trailing newline, making
it suitable for scripting.

Examples:
  # API key identity from /etc/conjur.identity
  conjurvar get prod/db/password

  # Authenticate with the instance's IAM role
  conjurvar get --authn-type aws --service-id prod \
    --login host/cloud-apps/123456789012/MyRole prod/db/password

  # Write the value to a 0600 file on /dev/shm and print its path
  conjurvar get --as-file prod/tls/key

  # Use in scripts
  export DB_PASSWORD=$(conjurvar get prod/db/password)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if merr := g.flushMetrics(); merr != nil && err == nil {
					err = fmt.Errorf("failed to write metrics: %w", merr)
				}
			}()

			req := conn.request(g, args[0])
			req.AsFile = asFile

			res, runErr := g.lookuper().Run(cmd.Context(), req)
			if runErr != nil && res.Path == "" {
				return cverrors.Present(runErr)
			}

			if jsonOutput {
				out := getOutput{
					Path:    res.Path,
					Account: res.Account,
					Method:  res.Method.String(),
					Value:   res.Value,
					File:    res.FilePath,
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(out); err != nil {
					return errors.Join(fmt.Errorf("failed to encode JSON: %w", err), runErr)
				}
			} else if res.FilePath != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.FilePath)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), res.Value)
			}

			// The value was delivered but cleanup failed.
			return cverrors.Present(runErr)
		},
	}

	conn.register(cmd)
	cmd.Flags().BoolVar(&asFile, "as-file", false, "Write the value to a 0600 file and print its path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}

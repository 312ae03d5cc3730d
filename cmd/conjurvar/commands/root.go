package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/conjurvar/internal/logging"
	"github.com/systmms/conjurvar/internal/metrics"
	"github.com/systmms/conjurvar/internal/version"
	"github.com/systmms/conjurvar/pkg/lookup"
)

// Globals holds the persistent flags and the services built from them
type Globals struct {
	ConfigPath   string
	IdentityPath string
	Debug        bool
	NoColor      bool
	MetricsFile  string

	Logger  *logging.Logger
	Metrics *metrics.Recorder

	// Lookuper is copied for every lookup; Logger and Metrics are filled in.
	Lookuper lookup.Lookuper
}

// NewRootCommand builds the conjurvar command tree
func NewRootCommand(g *Globals) *cobra.Command {
	root := &cobra.Command{
		Use:   "conjurvar",
		Short: "Retrieve secrets from CyberArk Conjur",
		Long: `conjurvar authenticates to a Conjur appliance and prints the value of
one variable.

Settings come from flags, CONJUR_* environment variables, /etc/conjur.conf
and the netrc identity file /etc/conjur.identity, in that order.`,
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			g.Logger = logging.NewWithWriter(cmd.ErrOrStderr(), g.Debug, g.NoColor)
			g.Metrics = metrics.NewRecorder()
		},
	}

	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "Config file path (default $CONJUR_CONFIG_FILE or /etc/conjur.conf)")
	root.PersistentFlags().StringVar(&g.IdentityPath, "identity", "", "Identity file path (default $CONJUR_IDENTITY_FILE or /etc/conjur.identity)")
	root.PersistentFlags().BoolVar(&g.NoColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&g.Debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&g.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the command")

	root.AddCommand(
		NewGetCommand(g),
		NewDoctorCommand(g),
		NewCompletionCommand(),
	)

	return root
}

func (g *Globals) lookuper() *lookup.Lookuper {
	l := g.Lookuper
	l.Logger = g.Logger
	l.Metrics = g.Metrics
	return &l
}

// flushMetrics writes the metrics textfile when --metrics-file is set
func (g *Globals) flushMetrics() error {
	if g.MetricsFile == "" {
		return nil
	}
	if err := g.Metrics.WriteTextfile(g.MetricsFile); err != nil {
		g.Logger.Warn("Failed to write metrics to %s: %v", g.MetricsFile, err)
		return err
	}
	g.Logger.Debug("Wrote metrics to %s", g.MetricsFile)
	return nil
}

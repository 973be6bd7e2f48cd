// Package cli implements the wardkeep command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wardkeep/wardkeep/internal/config"
	"github.com/wardkeep/wardkeep/internal/logging"
)

var (
	cfgPath   string
	logLevel  string
	logPretty bool

	// Loaded once in PersistentPreRunE; every command reads these.
	cfg     *config.Config
	cfgHash string
)

var rootCmd = &cobra.Command{
	Use:   "wardkeep",
	Short: "Domain-separation policy engine with tamper-evident monitoring",
	Long: "Keeps protected knowledge domains separated from work domains.\n" +
		"A sealed policy engine blocks cross-domain contamination, an integrity\n" +
		"guardian verifies the hash chain and watches artifacts for tampering,\n" +
		"and a one-time ceremony activates the whole protection.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, cfgHash, err = config.LoadWithHash(cfgPath)
		if err != nil {
			return err
		}

		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logging.Setup(logging.Config{
			Level:  level,
			Pretty: logPretty || cfg.Log.Pretty,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config YAML (default ~/.wardkeep/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace|debug|info|warn|error), overrides config")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "Human-readable log output")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

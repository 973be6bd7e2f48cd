package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardkeep/wardkeep/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default config.yaml with comments",
	Long: "Creates the wardkeep configuration file with default domains, guardian\n" +
		"cadence, and alerting knobs. Honors --config for the destination;\n" +
		"defaults to ~/.wardkeep/config.yaml. Edit the file to fit your domains.",
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := config.WriteDefault(cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

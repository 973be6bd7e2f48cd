package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardkeep/wardkeep/internal/model"
)

var checkFormat string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check <source> <destination> <operation>",
	Short: "Evaluate one operation against the boundary",
	Long: "Activates a sealed policy engine from the config and the\n" +
		"WARDKEEP_AUTH_TOKEN environment variable, evaluates a single\n" +
		"(source, destination, operation) triple, and prints the decision.\n\n" +
		"Exit code 0 when allowed, 1 when blocked.",
	Args: cobra.ExactArgs(3),
	RunE: runCheck,
}

type checkResult struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Operation   string `json:"operation"`
	Allowed     bool   `json:"allowed"`
	Violation   string `json:"violation,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	op, err := model.ParseOperation(args[2])
	if err != nil {
		return err
	}

	token, err := authToken()
	if err != nil {
		return err
	}
	eng, err := newEngine(token)
	if err != nil {
		return err
	}
	if _, err := eng.Seal(); err != nil {
		return fmt.Errorf("seal policy engine: %w", err)
	}

	res := checkResult{
		Source:      args[0],
		Destination: args[1],
		Operation:   string(op),
		Allowed:     eng.CheckOperation(args[0], args[1], op),
	}
	if !res.Allowed {
		if vs := eng.Violations(); len(vs) > 0 {
			last := vs[len(vs)-1]
			res.Violation = string(last.Type)
			res.Severity = string(last.Severity)
			res.Detail = last.Detail
		}
	}

	switch checkFormat {
	case "json":
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
	default:
		if res.Allowed {
			fmt.Printf("ALLOW %s -> %s (%s)\n", res.Source, res.Destination, res.Operation)
		} else {
			fmt.Printf("BLOCK %s -> %s (%s): %s [%s]\n",
				res.Source, res.Destination, res.Operation, res.Violation, res.Severity)
		}
	}

	if !res.Allowed {
		os.Exit(1)
	}
	return nil
}

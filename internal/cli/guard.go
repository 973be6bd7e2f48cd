package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wardkeep/wardkeep/internal/alert"
	"github.com/wardkeep/wardkeep/internal/artifact"
	"github.com/wardkeep/wardkeep/internal/logging"
	"github.com/wardkeep/wardkeep/internal/notify"
)

func init() {
	rootCmd.AddCommand(guardCmd)
}

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Activate the boundary and guard it until interrupted",
	Long: "Runs the full activation ceremony (swear, seal, start the guardian),\n" +
		"watches configured artifacts for filesystem changes, forwards\n" +
		"notifications to the log and to webhook sinks, and shuts down cleanly\n" +
		"on SIGINT/SIGTERM.",
	RunE: runGuard,
}

func runGuard(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := notify.NewBus()
	defer bus.Close()

	// Every notification lands in the structured log.
	logCh, logCancel := bus.Subscribe(256)
	defer logCancel()
	go forwardToLog(logCh)

	// Matching notifications fan out to webhook sinks.
	if d := alert.NewDispatcher(cfg.Alerts); d != nil {
		alertCh, alertCancel := bus.Subscribe(256)
		defer alertCancel()
		go d.Forward(ctx, alertCh)
	}

	act, err := activate(ctx, bus, true)
	if err != nil {
		return err
	}

	// Filesystem changes trigger an immediate artifact scan.
	if len(cfg.Artifacts) > 0 {
		watcher, err := artifact.NewWatcher(cfg.Artifacts, act.guardian.ScanNow)
		if err != nil {
			act.shutdown()
			return err
		}
		go watcher.Run(ctx)
		fmt.Fprintf(os.Stderr, "Watching %d artifact(s)\n", len(watcher.Watched()))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	st := act.engine.Status()
	fmt.Fprintf(os.Stderr, "wardkeep guarding entity %s (%d chain links)\n", st.EntityID, st.ChainLength)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")

	<-sigCh
	fmt.Fprintln(os.Stderr, "\nShutting down guardian...")
	cancel()

	blocked := act.shutdown()

	final := act.engine.Status()
	summary := map[string]any{
		"entity_id":    final.EntityID,
		"chain_length": final.ChainLength,
		"violations":   final.Violations,
		"blocked":      blocked,
	}
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run summary:")
	fmt.Fprintln(os.Stderr, string(out))

	if blocked > 0 {
		fmt.Fprintf(os.Stderr, "\nBlocked %d operation(s).\n", blocked)
	}
	return nil
}

// forwardToLog maps notifications onto log levels.
func forwardToLog(ch <-chan notify.Event) {
	logger := logging.Component("events")
	for n := range ch {
		evt := logger.Info()
		switch n.Name {
		case notify.BoundaryViolation, notify.GuardianViolation, notify.CovenantViolation:
			evt = logger.Warn()
		case notify.GuardianCritical:
			evt = logger.Error()
		}
		evt.Fields(n.Fields).Msg(n.Name)
	}
}

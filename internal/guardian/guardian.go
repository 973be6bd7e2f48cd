// Package guardian watches a sealed policy engine: periodic chain
// verification, artifact tamper scanning, durable audit entries for every
// blocked operation, and alert escalation when violations cluster.
package guardian

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wardkeep/wardkeep/internal/artifact"
	"github.com/wardkeep/wardkeep/internal/audit"
	"github.com/wardkeep/wardkeep/internal/model"
	"github.com/wardkeep/wardkeep/internal/notify"
)

const (
	defaultInterval  = time.Second
	defaultWindow    = 60 * time.Second
	defaultThreshold = 3
)

// Engine is the policy engine surface the guardian monitors.
type Engine interface {
	Sealed() bool
	VerifyIntegrity() bool
	CheckOperation(source, target string, op model.Operation) bool
	RecordViolation(p model.ViolationParams) model.ViolationEvent
	SetObserver(fn func(model.ViolationEvent))
	ViolationCount() int
	Violations() []model.ViolationEvent
}

// Guardian runs the monitoring loop. Lifecycle is INACTIVE -> ACTIVE ->
// STOPPED; STOPPED is terminal for the instance. Violation counts live on
// the engine, so they survive guardian stop/start cycles.
type Guardian struct {
	engine    Engine
	scanner   *artifact.Scanner
	bus       *notify.Bus
	auditPath string
	now       func() time.Time

	interval  time.Duration
	window    time.Duration
	threshold int

	mu        sync.Mutex
	state     model.GuardianState
	log       *audit.Log
	startedAt time.Time
	lastCheck time.Time
	checks    int
	verdict   model.Verdict
	recent    []time.Time          // violation times inside the alert window
	seen      map[string]time.Time // artifact mtimes already reported

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Guardian.
type Option func(*Guardian)

// WithScanner sets the protected-artifact scanner.
func WithScanner(s *artifact.Scanner) Option {
	return func(g *Guardian) { g.scanner = s }
}

// WithBus sets the notification bus.
func WithBus(b *notify.Bus) Option {
	return func(g *Guardian) { g.bus = b }
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(g *Guardian) { g.now = now }
}

// WithInterval sets the verification tick interval (default 1s).
func WithInterval(d time.Duration) Option {
	return func(g *Guardian) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithAlertWindow sets the trailing window for alert escalation (default 60s).
func WithAlertWindow(d time.Duration) Option {
	return func(g *Guardian) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithAlertThreshold sets how many violations inside the window raise a
// critical alert (default 3).
func WithAlertThreshold(n int) Option {
	return func(g *Guardian) {
		if n > 0 {
			g.threshold = n
		}
	}
}

// New creates an inactive Guardian bound to engine. The audit sink at
// auditPath is opened by Start, not here.
func New(engine Engine, auditPath string, opts ...Option) *Guardian {
	g := &Guardian{
		engine:    engine,
		auditPath: auditPath,
		now:       time.Now,
		interval:  defaultInterval,
		window:    defaultWindow,
		threshold: defaultThreshold,
		verdict:   model.VerdictUnknown,
		seen:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start opens the audit sink, registers as the engine's violation observer,
// runs an initial verification pass, and begins the periodic tick.
func (g *Guardian) Start() error {
	g.mu.Lock()

	switch g.state {
	case model.GuardianActive:
		g.mu.Unlock()
		return ErrAlreadyActive
	case model.GuardianStopped:
		g.mu.Unlock()
		return ErrAlreadyStopped
	}
	if !g.engine.Sealed() {
		g.mu.Unlock()
		return ErrNotSealed
	}

	log, err := audit.Open(g.auditPath)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("open audit sink: %w", err)
	}
	g.log = log

	g.state = model.GuardianActive
	g.startedAt = g.now()
	g.verdict = model.VerdictUnknown

	g.engine.SetObserver(g.handleViolation)

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.wg.Add(1)

	g.log.Record("guardian_started", fmt.Sprintf("interval=%s artifacts=%d", g.interval, g.artifactCount()))
	g.publish(notify.GuardianStarted, map[string]any{
		"started_at": g.startedAt.UTC().Format(time.RFC3339),
		"interval":   g.interval.String(),
	})
	g.mu.Unlock()

	// The first verification runs before the loop takes over; a successful
	// Start never leaves the verdict UNKNOWN.
	g.tick()
	go g.run(ctx)
	return nil
}

// Stop cancels the pending tick, waits for an in-flight tick to finish,
// detaches from the engine, and closes the audit sink. Returns the
// cumulative count of violations blocked.
func (g *Guardian) Stop() (int, error) {
	g.mu.Lock()
	switch g.state {
	case model.GuardianInactive:
		g.mu.Unlock()
		return 0, ErrNotActive
	case model.GuardianStopped:
		g.mu.Unlock()
		return 0, ErrAlreadyStopped
	}
	cancel := g.cancel
	g.mu.Unlock()

	cancel()
	g.wg.Wait()

	g.engine.SetObserver(nil)

	g.mu.Lock()
	if g.state == model.GuardianStopped {
		g.mu.Unlock()
		return 0, ErrAlreadyStopped
	}
	g.state = model.GuardianStopped
	blocked := g.engine.ViolationCount()
	g.log.Record("guardian_stopped", fmt.Sprintf("checks=%d violations_blocked=%d", g.checks, blocked))
	g.log.Close()
	g.mu.Unlock()

	g.publish(notify.GuardianStopped, map[string]any{"violations_blocked": blocked})
	return blocked, nil
}

// MonitorOperation gates one operation through the policy engine. A denial
// is audited and re-emitted via the observer before this returns.
func (g *Guardian) MonitorOperation(op model.Operation, source, target string) bool {
	return g.engine.CheckOperation(source, target, op)
}

// ViolationHistory returns recorded violations, most recent first.
// limit <= 0 returns the full history.
func (g *Guardian) ViolationHistory(limit int) []model.ViolationEvent {
	all := g.engine.Violations()
	out := make([]model.ViolationEvent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Status returns a point-in-time snapshot.
func (g *Guardian) Status() model.GuardianStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.GuardianStatus{
		Active:            g.state == model.GuardianActive,
		State:             g.state,
		StateLabel:        g.state.String(),
		StartedAt:         g.startedAt,
		LastCheck:         g.lastCheck,
		ChecksRun:         g.checks,
		ViolationsBlocked: g.engine.ViolationCount(),
		Verdict:           g.verdict,
	}
}

// run drives the periodic tick. Blocks until ctx is cancelled.
func (g *Guardian) run(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick()
		}
	}
}

// tick runs one verification pass. Ticks never overlap: the run loop calls
// tick sequentially and Stop waits for an in-flight tick to finish.
func (g *Guardian) tick() {
	g.mu.Lock()
	if g.state != model.GuardianActive {
		g.mu.Unlock()
		return
	}
	since := g.startedAt
	g.checks++
	g.lastCheck = g.now()
	g.mu.Unlock()

	ok := g.engine.VerifyIntegrity()
	g.mu.Lock()
	if ok {
		g.verdict = model.VerdictIntact
	} else {
		g.verdict = model.VerdictCompromised
	}
	g.mu.Unlock()

	if !ok {
		g.selfHeal()
	}

	g.scanArtifacts(since)
}

// ScanNow runs an immediate artifact scan outside the periodic tick, for
// filesystem watchers that see a change before the next tick. No-op unless
// ACTIVE.
func (g *Guardian) ScanNow() {
	g.mu.Lock()
	if g.state != model.GuardianActive {
		g.mu.Unlock()
		return
	}
	since := g.startedAt
	g.mu.Unlock()

	g.scanArtifacts(since)
}

// scanArtifacts reports protected artifacts modified after the guardian
// started. Each (path, mtime) pair is reported once; a further modification
// produces a fresh violation.
func (g *Guardian) scanArtifacts(since time.Time) {
	if g.scanner == nil {
		return
	}
	for _, f := range g.scanner.Scan(since) {
		g.mu.Lock()
		if prev, dup := g.seen[f.Path]; dup && prev.Equal(f.ModTime) {
			g.mu.Unlock()
			continue
		}
		g.seen[f.Path] = f.ModTime
		g.mu.Unlock()

		g.engine.RecordViolation(model.ViolationParams{
			Type:      model.ViolationTampering,
			Severity:  model.SeverityCritical,
			Source:    f.Path,
			Operation: model.OpWrite,
			Detail:    fmt.Sprintf("artifact %s modified at %s after guardian start", f.Path, f.ModTime.UTC().Format(time.RFC3339)),
		})
	}
}

// handleViolation is the engine observer: exactly one audit entry per
// violation, a guardian.violation notification, and threshold escalation.
// The engine invokes it after releasing its own lock.
func (g *Guardian) handleViolation(ev model.ViolationEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != model.GuardianActive {
		return
	}

	g.log.Record(auditEventFor(ev.Type), violationDetails(ev))

	g.publish(notify.GuardianViolation, map[string]any{
		"id":       ev.ID,
		"type":     string(ev.Type),
		"severity": string(ev.Severity),
		"source":   ev.Source,
		"target":   ev.Target,
		"detail":   ev.Detail,
	})

	now := g.now()
	g.recent = append(g.recent, now)
	g.pruneWindowLocked(now)
	if len(g.recent) >= g.threshold {
		g.publish(notify.GuardianCritical, map[string]any{
			"severity": string(model.SeverityCritical),
			"count":    len(g.recent),
			"window":   g.window.String(),
			"detail":   fmt.Sprintf("%d violations within %s", len(g.recent), g.window),
		})
		g.recent = g.recent[:0]
	}
}

// selfHeal re-checks the chain and drops volatile caches (tamper dedup,
// alert window). Healing never reverses or deletes a recorded violation.
func (g *Guardian) selfHeal() {
	g.publish(notify.GuardianHealing, nil)

	ok := g.engine.VerifyIntegrity()

	g.mu.Lock()
	if ok {
		g.verdict = model.VerdictIntact
	} else {
		g.verdict = model.VerdictCompromised
	}
	verdict := g.verdict
	g.seen = make(map[string]time.Time)
	g.recent = g.recent[:0]
	g.log.Record("healing_complete", fmt.Sprintf("verdict=%s", verdict))
	g.mu.Unlock()

	g.publish(notify.GuardianHealed, map[string]any{"verdict": string(verdict)})
}

func (g *Guardian) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-g.window)
	kept := g.recent[:0]
	for _, t := range g.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.recent = kept
}

func (g *Guardian) artifactCount() int {
	if g.scanner == nil {
		return 0
	}
	return len(g.scanner.Paths())
}

func (g *Guardian) publish(name string, fields map[string]any) {
	if g.bus != nil {
		g.bus.Publish(name, fields)
	}
}

// auditEventFor names the audit entry for a violation class.
func auditEventFor(t model.ViolationType) string {
	switch t {
	case model.ViolationTampering:
		return "tamper_detected"
	case model.ViolationChainBroken:
		return "integrity_breach"
	default:
		return "violation_blocked"
	}
}

func violationDetails(ev model.ViolationEvent) string {
	return fmt.Sprintf("%s: %s -> %s op=%s severity=%s blocked=%t",
		ev.Type, ev.Source, ev.Target, ev.Operation, ev.Severity, ev.Blocked)
}

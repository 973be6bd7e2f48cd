// Package ceremony runs the one-time activation workflow: an authorized
// principal swears the covenant terms, the ceremony seals itself and the
// policy engine, starts the guardian, and stores a durable sealed package.
package ceremony

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wardkeep/wardkeep/internal/authz"
	"github.com/wardkeep/wardkeep/internal/boundary"
	"github.com/wardkeep/wardkeep/internal/model"
	"github.com/wardkeep/wardkeep/internal/notify"
	"github.com/wardkeep/wardkeep/internal/sealvault"
)

// Engine is the policy engine surface the ceremony drives.
type Engine interface {
	Sealed() bool
	Seal() (string, error)
	Status() boundary.EngineStatus
	Domains() boundary.Domains
	Violations() []model.ViolationEvent
}

// Guardian is the monitoring surface the ceremony activates.
type Guardian interface {
	Start() error
	Status() model.GuardianStatus
}

// Sealer produces the durable sealed configuration package.
type Sealer interface {
	Seal(ctx context.Context, req sealvault.SealRequest) (string, error)
}

// Config holds orchestrator construction parameters.
type Config struct {
	Principal string // the single identity allowed to swear
	KeyID     string // sealing key identifier handed to the sealer
}

// Orchestrator coordinates the activation ceremony. State transitions are
// one-way: sworn and sealed never revert.
type Orchestrator struct {
	cfg      Config
	engine   Engine
	guardian Guardian
	sealer   Sealer
	verifier authz.Verifier
	bus      *notify.Bus
	now      func() time.Time

	mu        sync.Mutex
	promise   *CovenantPromise
	witnesses []string
	sealed    bool
	sealedAt  time.Time
	sealHash  string
	packageID string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSealer sets the external sealing collaborator.
func WithSealer(s Sealer) Option {
	return func(o *Orchestrator) { o.sealer = s }
}

// WithVerifier overrides the authorization verifier.
func WithVerifier(v authz.Verifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// WithBus sets the notification bus.
func WithBus(b *notify.Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator for the given engine and guardian.
func New(cfg Config, engine Engine, guard Guardian, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		engine:   engine,
		guardian: guard,
		verifier: authz.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Swear records the covenant promise. Only the configured principal with a
// token that passes verification may swear, exactly once.
func (o *Orchestrator) Swear(principal, token string) (*CovenantPromise, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.promise != nil {
		return nil, ErrAlreadySworn
	}
	if principal == "" || principal != o.cfg.Principal {
		return nil, fmt.Errorf("%w: principal %q is not the authorizing identity", ErrUnauthorized, principal)
	}
	if !o.verifier.Verify(token) {
		return nil, fmt.Errorf("%w: token failed verification", ErrUnauthorized)
	}

	promise := &CovenantPromise{
		Principal: principal,
		Terms:     buildTerms(o.engine.Domains()),
		SwornAt:   o.now(),
	}
	promise.SealHash = promiseHash(promise)
	o.promise = promise

	o.publish(notify.CovenantSworn, map[string]any{
		"principal": principal,
		"domains":   len(promise.Terms),
	})
	return clonePromise(promise), nil
}

// Seal completes the ceremony. The policy engine is sealed first when still
// open; the ceremony then derives its final hash and activates protection.
// Sealing is one-way: an activation failure leaves the ceremony sealed.
func (o *Orchestrator) Seal(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.promise == nil {
		return "", ErrNotSworn
	}
	if o.sealed {
		return "", ErrAlreadySealed
	}

	if !o.engine.Sealed() {
		if _, err := o.engine.Seal(); err != nil {
			return "", fmt.Errorf("seal policy engine: %w", err)
		}
	}

	o.sealedAt = o.now()
	o.sealHash = ceremonyHash(o.promise.SealHash, o.sealedAt)
	o.sealed = true

	o.publish(notify.CovenantSealed, map[string]any{"seal_hash": o.sealHash})

	if err := o.activateProtection(ctx); err != nil {
		return "", err
	}
	return o.sealHash, nil
}

// activateProtection starts monitoring and persists the sealed package.
// The sealed assertion guards against a substituted engine.
func (o *Orchestrator) activateProtection(ctx context.Context) error {
	if !o.engine.Sealed() {
		return ErrProtectionNotSealed
	}
	if err := o.guardian.Start(); err != nil {
		return fmt.Errorf("start guardian: %w", err)
	}

	if o.sealer != nil {
		status := o.engine.Status()
		pkgID, err := o.sealer.Seal(ctx, sealvault.SealRequest{
			EntityID:      status.EntityID,
			KeyID:         o.cfg.KeyID,
			IntegrityHash: status.IntegrityHash,
			Payload: activationRecord{
				Promise:   o.promise,
				SealHash:  o.sealHash,
				SealedAt:  o.sealedAt,
				Witnesses: append([]string(nil), o.witnesses...),
			},
		})
		if err != nil {
			return fmt.Errorf("seal configuration package: %w", err)
		}
		o.packageID = pkgID
	}

	o.publish(notify.CovenantActivated, map[string]any{"package_id": o.packageID})
	return nil
}

// activationRecord is the JSON body stored in the vault.
type activationRecord struct {
	Promise   *CovenantPromise `json:"promise"`
	SealHash  string           `json:"sealHash"`
	SealedAt  time.Time        `json:"sealedAt"`
	Witnesses []string         `json:"witnesses"`
}

// VerifyCovenant reports whether every protection holds: engine sealed,
// guardian active with an INTACT verdict, and every recorded violation
// blocked. A failed check publishes covenant.violation.
func (o *Orchestrator) VerifyCovenant() bool {
	if !o.engine.Sealed() {
		return o.breach("policy engine is not sealed")
	}
	st := o.guardian.Status()
	if !st.Active {
		return o.breach("guardian is not active")
	}
	if st.Verdict != model.VerdictIntact {
		return o.breach(fmt.Sprintf("integrity verdict is %s", st.Verdict))
	}
	for _, v := range o.engine.Violations() {
		if !v.Blocked {
			return o.breach(fmt.Sprintf("violation %s was not blocked", v.ID))
		}
	}
	return true
}

func (o *Orchestrator) breach(detail string) bool {
	o.publish(notify.CovenantViolation, map[string]any{"detail": detail})
	return false
}

// AddWitness records a witnessing principal. Witnesses may only join
// before sealing.
func (o *Orchestrator) AddWitness(principal string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sealed {
		return ErrSealedCannotWitness
	}
	if principal == "" {
		return fmt.Errorf("ceremony: witness principal must not be empty")
	}
	o.witnesses = append(o.witnesses, principal)
	o.publish(notify.CovenantWitnessed, map[string]any{
		"principal": principal,
		"witnesses": len(o.witnesses),
	})
	return nil
}

// CovenantCertificate is the exportable record of a sealed ceremony.
type CovenantCertificate struct {
	Principal string                   `json:"principal"`
	EntityID  string                   `json:"entityId"`
	Terms     map[string]CovenantTerms `json:"terms"`
	SwornAt   time.Time                `json:"swornAt"`
	SealedAt  time.Time                `json:"sealedAt"`
	SealHash  string                   `json:"sealHash"`
	Witnesses []string                 `json:"witnesses"`
	PackageID string                   `json:"packageId,omitempty"`
	Status    string                   `json:"status"`
}

// ExportCertificate returns the composite covenant record: promise, terms,
// witnesses, and the final seal hash.
func (o *Orchestrator) ExportCertificate() (*CovenantCertificate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.sealed {
		return nil, ErrNotSealed
	}

	witnesses := make([]string, len(o.witnesses))
	copy(witnesses, o.witnesses)

	return &CovenantCertificate{
		Principal: o.promise.Principal,
		EntityID:  o.engine.Status().EntityID,
		Terms:     clonePromise(o.promise).Terms,
		SwornAt:   o.promise.SwornAt,
		SealedAt:  o.sealedAt,
		SealHash:  o.sealHash,
		Witnesses: witnesses,
		PackageID: o.packageID,
		Status:    "SEALED",
	}, nil
}

// Status is a read-only snapshot of the ceremony.
type Status struct {
	Sworn     bool      `json:"sworn"`
	Sealed    bool      `json:"sealed"`
	SwornAt   time.Time `json:"sworn_at"`
	SealedAt  time.Time `json:"sealed_at"`
	SealHash  string    `json:"seal_hash,omitempty"`
	PackageID string    `json:"package_id,omitempty"`
	Witnesses []string  `json:"witnesses"`
}

// Status reports the ceremony state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		Sworn:     o.promise != nil,
		Sealed:    o.sealed,
		SealedAt:  o.sealedAt,
		SealHash:  o.sealHash,
		PackageID: o.packageID,
		Witnesses: append([]string(nil), o.witnesses...),
	}
	if o.promise != nil {
		st.SwornAt = o.promise.SwornAt
	}
	return st
}

// VerificationCheck is the result of one emergency-verification probe.
type VerificationCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// EmergencyReport aggregates read-only diagnostics across the engine, the
// guardian, and the ceremony.
type EmergencyReport struct {
	At       time.Time             `json:"at"`
	Valid    bool                  `json:"valid"`
	Checks   []VerificationCheck   `json:"checks"`
	Engine   boundary.EngineStatus `json:"engine"`
	Guardian model.GuardianStatus  `json:"guardian"`
	Ceremony Status                `json:"ceremony"`
}

// EmergencyVerification inspects all three components without mutating
// anything: no chain recomputation, no notifications, no state changes.
func (o *Orchestrator) EmergencyVerification() EmergencyReport {
	engineStatus := o.engine.Status()
	guardStatus := o.guardian.Status()
	ceremonyStatus := o.Status()

	checks := []VerificationCheck{
		check("engine_initialized", engineStatus.Initialized,
			"policy engine holds a boundary configuration",
			"policy engine was never initialized"),
		check("engine_sealed", engineStatus.Sealed,
			"policy engine is sealed",
			"policy engine is not sealed"),
		check("ceremony_sworn", ceremonyStatus.Sworn,
			"covenant promise is sworn",
			"covenant promise is missing"),
		check("ceremony_sealed", ceremonyStatus.Sealed,
			"ceremony is sealed",
			"ceremony is not sealed"),
		check("guardian_active", guardStatus.Active,
			"guardian is active",
			fmt.Sprintf("guardian state is %s", guardStatus.StateLabel)),
		check("integrity_verdict", guardStatus.Verdict == model.VerdictIntact,
			"integrity verdict is INTACT",
			fmt.Sprintf("integrity verdict is %s", guardStatus.Verdict)),
	}

	blocked := true
	for _, v := range o.engine.Violations() {
		if !v.Blocked {
			blocked = false
			break
		}
	}
	checks = append(checks, check("violations_blocked", blocked,
		"every recorded violation was blocked",
		"a recorded violation was not blocked"))

	valid := true
	for _, c := range checks {
		if !c.Passed {
			valid = false
			break
		}
	}

	return EmergencyReport{
		At:       o.now(),
		Valid:    valid,
		Checks:   checks,
		Engine:   engineStatus,
		Guardian: guardStatus,
		Ceremony: ceremonyStatus,
	}
}

func check(name string, passed bool, okMsg, failMsg string) VerificationCheck {
	msg := okMsg
	if !passed {
		msg = failMsg
	}
	return VerificationCheck{Name: name, Passed: passed, Message: msg}
}

func (o *Orchestrator) publish(name string, fields map[string]any) {
	if o.bus != nil {
		o.bus.Publish(name, fields)
	}
}

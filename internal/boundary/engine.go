// Package boundary implements the domain-separation policy engine: the
// boundary configuration, the append-only integrity hash chain, the
// in-memory violation log, and the synchronous allow/deny decision for
// (source, destination, operation) triples.
//
// The chain is tamper evidence, not cryptographic non-repudiation: it
// detects accidental or naive modification of in-process state, nothing
// stronger, and that limitation is deliberate.
package boundary

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardkeep/wardkeep/internal/authz"
	"github.com/wardkeep/wardkeep/internal/model"
	"github.com/wardkeep/wardkeep/internal/notify"
)

// sealConstant is folded into the seal link payload.
const sealConstant = "ETERNAL_BOUNDARY_SEAL_V1"

// Engine owns the boundary state. All mutation of the config, chain,
// and violation log happens under one mutex so chain verification
// always sees a consistent snapshot. The violation observer runs after
// the lock is released with a copy of the event.
type Engine struct {
	verifier authz.Verifier
	bus      *notify.Bus
	now      func() time.Time
	seed     string

	mu       sync.Mutex
	sets     domainSets
	config   *BoundaryConfig
	chain    *Chain
	sealed   bool
	sealedAt time.Time
	sealHash string
	log      []model.ViolationEvent
	observer func(model.ViolationEvent)
}

// Option customizes an Engine.
type Option func(*Engine)

// WithVerifier substitutes the authorization verifier.
func WithVerifier(v authz.Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

// WithBus attaches the notification bus.
func WithBus(b *notify.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithConfigProof seeds the integrity proof with the digest of the
// source configuration bytes, binding the engine to the exact file it
// was built from.
func WithConfigProof(digest string) Option {
	return func(e *Engine) { e.seed = digest }
}

// New builds an engine over the given domain partition. The engine is
// inert (every operation allowed) until initialized and sealed.
func New(domains Domains, opts ...Option) (*Engine, error) {
	sets, err := normalizeDomains(domains)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		verifier: authz.Default(),
		now:      time.Now,
		sets:     sets,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize validates the token, builds the boundary config, and
// pushes the genesis chain link. Runs at most once per engine.
func (e *Engine) Initialize(principal, token, entityID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config != nil {
		return ErrAlreadyInitialized
	}
	if !e.verifier.Verify(token) {
		return fmt.Errorf("%w: token for principal %q failed format check", ErrAuthorization, principal)
	}

	now := e.now().UTC()
	cfg := &BoundaryConfig{
		EntityID:  entityID,
		Principal: principal,
		Token:     token,
		CreatedAt: now,
		Domains:   e.sets.lists(),
	}
	cfg.Proof = configProof(cfg, e.seed)

	e.config = cfg
	e.chain = newChain(cfg.Proof, now)
	e.publish(notify.BoundaryInitialized, map[string]any{
		"entity_id": entityID,
		"principal": principal,
		"protected": len(cfg.Domains.Protected),
		"work":      len(cfg.Domains.Work),
		"immutable": len(cfg.Domains.Immutable),
	})
	return nil
}

// Seal is the one-way activation transition. It appends the seal link
// (hash over config proof, chain so far, the seal constant, and the
// timestamp), flips the sealed flag, and returns the seal hash. It can
// only ever succeed once per engine.
func (e *Engine) Seal() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config == nil {
		return "", ErrNotInitialized
	}
	if e.sealed {
		return "", ErrAlreadySealed
	}

	now := e.now().UTC()
	payload := e.config.Proof + "|" + sealConstant + "|" + now.Format(time.RFC3339Nano)
	link := e.chain.Append(LinkSeal, payload, now)

	e.sealed = true
	e.sealedAt = now
	e.sealHash = link.Hash
	e.publish(notify.BoundarySealed, map[string]any{
		"entity_id": e.config.EntityID,
		"seal_hash": link.Hash,
	})
	return link.Hash, nil
}

// Sealed reports whether the engine has been sealed.
func (e *Engine) Sealed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sealed
}

// CheckOperation decides whether source may perform op toward target.
//
// Rule order (must not be changed):
//  1. Write into an immutable domain: deny, CRITICAL.
//  2. Any flow from a work domain into a protected domain: deny, HIGH.
//  3. Transfer across the protected/work boundary, either direction:
//     deny, HIGH.
//  4. Anything else: allow.
//
// A denial records exactly one violation and one reinforcement link
// before returning false. An allow has no side effect. Before sealing
// the policy is inert and everything is allowed.
func (e *Engine) CheckOperation(source, target string, op model.Operation) bool {
	e.mu.Lock()

	if !e.sealed {
		e.mu.Unlock()
		return true
	}

	var p *model.ViolationParams
	switch {
	case e.sets.immutable[target] && op == model.OpWrite:
		p = &model.ViolationParams{
			Type:     model.ViolationImmutableWrite,
			Severity: model.SeverityCritical,
			Detail:   fmt.Sprintf("write into immutable domain %q", target),
		}
	case e.sets.work[source] && e.sets.protected[target]:
		p = &model.ViolationParams{
			Type:     model.ViolationCrossDomain,
			Severity: model.SeverityHigh,
			Detail:   fmt.Sprintf("flow from work domain %q into protected domain %q", source, target),
		}
	case op == model.OpTransfer &&
		((e.sets.protected[source] && e.sets.work[target]) ||
			(e.sets.work[source] && e.sets.protected[target])):
		p = &model.ViolationParams{
			Type:     model.ViolationIllegalTransfer,
			Severity: model.SeverityHigh,
			Detail:   fmt.Sprintf("transfer across boundary %q -> %q", source, target),
		}
	}

	if p == nil {
		e.mu.Unlock()
		return true
	}

	p.Source = source
	p.Target = target
	p.Operation = op
	ev := e.recordLocked(*p)
	obs := e.observer
	e.mu.Unlock()

	if obs != nil {
		obs(ev)
	}
	return false
}

// RecordViolation registers an externally detected violation (for
// example artifact tampering found by the guardian) so the log append
// and chain reinforcement stay inside the engine's lock.
func (e *Engine) RecordViolation(p model.ViolationParams) model.ViolationEvent {
	e.mu.Lock()
	ev := e.recordLocked(p)
	obs := e.observer
	e.mu.Unlock()

	if obs != nil {
		obs(ev)
	}
	return ev
}

// recordLocked appends the violation and its reinforcement link.
// Callers hold e.mu.
func (e *Engine) recordLocked(p model.ViolationParams) model.ViolationEvent {
	ev := model.ViolationEvent{
		ID:        uuid.NewString(),
		Type:      p.Type,
		Timestamp: e.now().UTC(),
		Source:    p.Source,
		Target:    p.Target,
		Operation: p.Operation,
		Severity:  p.Severity,
		Blocked:   true,
		Detail:    p.Detail,
	}
	e.log = append(e.log, ev)

	if e.chain != nil {
		payload := ev.ID + "|" + string(ev.Type) + "|" + string(ev.Severity)
		e.chain.Append(LinkReinforcement, payload, ev.Timestamp)
	}

	e.publish(notify.BoundaryViolation, map[string]any{
		"id":       ev.ID,
		"type":     string(ev.Type),
		"severity": string(ev.Severity),
		"source":   ev.Source,
		"target":   ev.Target,
		"detail":   ev.Detail,
	})
	e.publish(notify.BoundaryReinforced, map[string]any{
		"chain_length": e.chainLenLocked(),
	})
	return ev
}

// VerifyIntegrity recomputes every chain link from link 0 forward.
// A mismatch is recorded as a chain_broken violation (with its own
// reinforcement link) and the method returns false; it never returns
// an error. An engine with no chain yet is unverifiable: fail closed.
func (e *Engine) VerifyIntegrity() bool {
	e.mu.Lock()

	if e.chain == nil {
		e.mu.Unlock()
		return false
	}

	ok, bad := e.chain.Recompute()
	if ok {
		e.mu.Unlock()
		return true
	}

	ev := e.recordLocked(model.ViolationParams{
		Type:     model.ViolationChainBroken,
		Severity: model.SeverityCritical,
		Detail:   fmt.Sprintf("chain link %d does not reproduce", bad),
	})
	obs := e.observer
	e.mu.Unlock()

	if obs != nil {
		obs(ev)
	}
	return false
}

// SetObserver installs the single synchronous violation observer.
// Passing nil removes it.
func (e *Engine) SetObserver(fn func(model.ViolationEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = fn
}

// Violations returns a copy of the violation log in append order.
func (e *Engine) Violations() []model.ViolationEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ViolationEvent, len(e.log))
	copy(out, e.log)
	return out
}

// ViolationCount returns the cumulative number of blocked operations.
func (e *Engine) ViolationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.log)
}

// Domains returns the normalized domain partition.
func (e *Engine) Domains() Domains {
	return e.sets.lists()
}

// EngineStatus is a read-only snapshot of the engine.
type EngineStatus struct {
	EntityID      string    `json:"entity_id"`
	Initialized   bool      `json:"initialized"`
	Sealed        bool      `json:"sealed"`
	CreatedAt     time.Time `json:"created_at"`
	SealedAt      time.Time `json:"sealed_at"`
	ChainLength   int       `json:"chain_length"`
	Violations    int       `json:"violations"`
	SealHash      string    `json:"seal_hash,omitempty"`
	IntegrityHash string    `json:"integrity_hash,omitempty"`
}

// Status returns the current snapshot. IntegrityHash is the chain head
// at the instant of the call.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := EngineStatus{
		Initialized: e.config != nil,
		Sealed:      e.sealed,
		SealedAt:    e.sealedAt,
		Violations:  len(e.log),
		SealHash:    e.sealHash,
	}
	if e.config != nil {
		st.EntityID = e.config.EntityID
		st.CreatedAt = e.config.CreatedAt
	}
	if e.chain != nil {
		st.ChainLength = e.chain.Len()
		st.IntegrityHash = e.chain.Head().Hash
	}
	return st
}

// Certificate is the engine's exportable sealed record.
type Certificate struct {
	EntityID      string            `json:"entityId"`
	SealedAt      time.Time         `json:"sealedAt"`
	IntegrityHash string            `json:"integrityHash"`
	Status        string            `json:"status"`
	Covenant      map[string]string `json:"covenant"`
}

// ExportCertificate returns the certificate of a sealed engine.
func (e *Engine) ExportCertificate() (*Certificate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sealed {
		return nil, ErrNotSealed
	}

	covenant := make(map[string]string)
	for name := range e.sets.protected {
		covenant[name] = "protected"
	}
	for name := range e.sets.immutable {
		covenant[name] = "immutable"
	}
	for name := range e.sets.work {
		covenant[name] = "work"
	}

	return &Certificate{
		EntityID:      e.config.EntityID,
		SealedAt:      e.sealedAt,
		IntegrityHash: e.chain.Head().Hash,
		Status:        "SEALED",
		Covenant:      covenant,
	}, nil
}

// ChainLinks returns a copy of the chain for diagnostics.
func (e *Engine) ChainLinks() []Link {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chain == nil {
		return nil
	}
	return e.chain.Links()
}

func (e *Engine) chainLenLocked() int {
	if e.chain == nil {
		return 0
	}
	return e.chain.Len()
}

func (e *Engine) publish(name string, fields map[string]any) {
	if e.bus != nil {
		e.bus.Publish(name, fields)
	}
}

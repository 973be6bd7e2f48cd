package ceremony

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wardkeep/wardkeep/internal/boundary"
	"github.com/wardkeep/wardkeep/internal/guardian"
	"github.com/wardkeep/wardkeep/internal/model"
	"github.com/wardkeep/wardkeep/internal/notify"
	"github.com/wardkeep/wardkeep/internal/sealvault"
)

func testToken() string {
	return "AUTH_" + strings.Repeat("A", 64)
}

func newInitializedEngine(t *testing.T) *boundary.Engine {
	t.Helper()
	eng, err := boundary.New(boundary.Domains{
		Protected: []string{"personal-kb", "soul-kb"},
		Work:      []string{"work-kb"},
		Immutable: []string{"soul-kb"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.Initialize("P1", testToken(), "entity-1"); err != nil {
		t.Fatal(err)
	}
	return eng
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *boundary.Engine, *guardian.Guardian) {
	t.Helper()
	eng := newInitializedEngine(t)
	guard := guardian.New(eng, filepath.Join(t.TempDir(), "audit.log"), guardian.WithInterval(time.Hour))
	t.Cleanup(func() { guard.Stop() })
	o := New(Config{Principal: "P1", KeyID: "key-main"}, eng, guard, opts...)
	return o, eng, guard
}

type fakeSealer struct {
	req sealvault.SealRequest
	err error
}

func (f *fakeSealer) Seal(ctx context.Context, req sealvault.SealRequest) (string, error) {
	f.req = req
	if f.err != nil {
		return "", f.err
	}
	return "pkg-fake-1", nil
}

// unsealableEngine claims its Seal succeeded but never reports sealed,
// standing in for a substituted engine.
type unsealableEngine struct{}

func (unsealableEngine) Sealed() bool                  { return false }
func (unsealableEngine) Seal() (string, error)         { return "deadbeef", nil }
func (unsealableEngine) Status() boundary.EngineStatus { return boundary.EngineStatus{} }
func (unsealableEngine) Domains() boundary.Domains {
	return boundary.Domains{Protected: []string{"personal-kb"}}
}
func (unsealableEngine) Violations() []model.ViolationEvent { return nil }

type idleGuardian struct{ started bool }

func (g *idleGuardian) Start() error { g.started = true; return nil }
func (g *idleGuardian) Status() model.GuardianStatus {
	return model.GuardianStatus{Active: g.started, Verdict: model.VerdictIntact}
}

func drainNames(ch <-chan notify.Event) []string {
	var names []string
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return names
			}
			names = append(names, ev.Name)
		default:
			return names
		}
	}
}

func TestSwearRejectsUnknownPrincipal(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	_, err := o.Swear("intruder", testToken())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if o.Status().Sworn {
		t.Error("failed swear must not record a promise")
	}
}

func TestSwearRejectsMalformedToken(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	_, err := o.Swear("P1", "AUTH_tooshort")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSwearTwiceFails(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Swear("P1", testToken()); !errors.Is(err, ErrAlreadySworn) {
		t.Fatalf("expected ErrAlreadySworn, got %v", err)
	}
}

func TestSwearBuildsTermsPerProtectedDomain(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	promise, err := o.Swear("P1", testToken())
	if err != nil {
		t.Fatal(err)
	}

	if len(promise.Terms) != 2 {
		t.Fatalf("expected terms for 2 protected domains, got %d", len(promise.Terms))
	}

	personal := promise.Terms["personal-kb"]
	if personal.Status != "eternally pure" || personal.Protection != "absolute" || personal.Contamination != "impossible" {
		t.Errorf("unexpected terms for personal-kb: %+v", personal)
	}
	if personal.Immutability != "" {
		t.Error("personal-kb must not carry immutability")
	}

	soul := promise.Terms["soul-kb"]
	if soul.Immutability != "total" {
		t.Errorf("soul-kb must carry total immutability, got %q", soul.Immutability)
	}

	if _, ok := promise.Terms["work-kb"]; ok {
		t.Error("work domain must not receive covenant terms")
	}
	if promise.SealHash == "" {
		t.Error("promise seal hash missing")
	}
}

func TestSealRequiresSwear(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.Seal(context.Background()); !errors.Is(err, ErrNotSworn) {
		t.Fatalf("expected ErrNotSworn, got %v", err)
	}
}

func TestSealTwiceFails(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); !errors.Is(err, ErrAlreadySealed) {
		t.Fatalf("expected ErrAlreadySealed, got %v", err)
	}
}

func TestSealActivatesProtection(t *testing.T) {
	sealer := &fakeSealer{}
	o, eng, guard := newTestOrchestrator(t, WithSealer(sealer))

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	hash, err := o.Seal(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" {
		t.Fatal("empty ceremony hash")
	}

	if !eng.Sealed() {
		t.Error("policy engine must be sealed by the ceremony")
	}
	if !guard.Status().Active {
		t.Error("guardian must be active after the ceremony")
	}

	if sealer.req.EntityID != "entity-1" {
		t.Errorf("sealer got entity %q", sealer.req.EntityID)
	}
	if sealer.req.KeyID != "key-main" {
		t.Errorf("sealer got key %q", sealer.req.KeyID)
	}
	if sealer.req.IntegrityHash != eng.Status().IntegrityHash {
		t.Error("sealer integrity hash does not match the chain head")
	}

	st := o.Status()
	if !st.Sealed || st.PackageID != "pkg-fake-1" {
		t.Errorf("unexpected ceremony status: %+v", st)
	}
}

func TestSealAcceptsPreSealedEngine(t *testing.T) {
	o, eng, _ := newTestOrchestrator(t)

	if _, err := eng.Seal(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatalf("ceremony must accept an already-sealed engine: %v", err)
	}
}

func TestActivationGuardsAgainstSubstitutedEngine(t *testing.T) {
	o := New(Config{Principal: "P1"}, unsealableEngine{}, &idleGuardian{})

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	_, err := o.Seal(context.Background())
	if !errors.Is(err, ErrProtectionNotSealed) {
		t.Fatalf("expected ErrProtectionNotSealed, got %v", err)
	}
	if !o.Status().Sealed {
		t.Error("ceremony sealing is one-way even when activation fails")
	}
}

func TestVerifyCovenantAfterCeremony(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !o.VerifyCovenant() {
		t.Error("covenant must verify after a completed ceremony")
	}
}

func TestVerifyCovenantFailsBeforeCeremony(t *testing.T) {
	bus := notify.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(8)
	defer cancel()

	o, _, _ := newTestOrchestrator(t, WithBus(bus))

	if o.VerifyCovenant() {
		t.Fatal("covenant must not verify before the ceremony")
	}

	names := drainNames(ch)
	found := false
	for _, n := range names {
		if n == notify.CovenantViolation {
			found = true
		}
	}
	if !found {
		t.Errorf("expected covenant.violation notification, got %v", names)
	}
}

func TestVerifyCovenantFailsAfterGuardianStops(t *testing.T) {
	o, _, guard := newTestOrchestrator(t)

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := guard.Stop(); err != nil {
		t.Fatal(err)
	}

	if o.VerifyCovenant() {
		t.Error("covenant must not verify with a stopped guardian")
	}
}

func TestAddWitnessBeforeSealOnly(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if err := o.AddWitness("W1"); err != nil {
		t.Fatal(err)
	}
	if err := o.AddWitness("W2"); err != nil {
		t.Fatal(err)
	}

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := o.AddWitness("W3"); !errors.Is(err, ErrSealedCannotWitness) {
		t.Fatalf("expected ErrSealedCannotWitness, got %v", err)
	}

	cert, err := o.ExportCertificate()
	if err != nil {
		t.Fatal(err)
	}
	if len(cert.Witnesses) != 2 || cert.Witnesses[0] != "W1" || cert.Witnesses[1] != "W2" {
		t.Errorf("unexpected witnesses: %v", cert.Witnesses)
	}
}

func TestExportCertificateRequiresSeal(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.ExportCertificate(); !errors.Is(err, ErrNotSealed) {
		t.Fatalf("expected ErrNotSealed, got %v", err)
	}
}

func TestCertificateRoundTrip(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	hash, err := o.Seal(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	cert, err := o.ExportCertificate()
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(cert)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("certificate is not valid JSON: %v", err)
	}
	if parsed["entityId"] != "entity-1" {
		t.Errorf("expected entityId entity-1, got %v", parsed["entityId"])
	}
	if parsed["sealHash"] != hash {
		t.Errorf("certificate seal hash does not match Seal return")
	}
	if parsed["status"] != "SEALED" {
		t.Errorf("expected status SEALED, got %v", parsed["status"])
	}

	terms, ok := parsed["terms"].(map[string]any)
	if !ok {
		t.Fatal("expected terms object")
	}
	soul, ok := terms["soul-kb"].(map[string]any)
	if !ok {
		t.Fatal("expected terms for soul-kb")
	}
	if soul["immutability"] != "total" {
		t.Errorf("expected total immutability for soul-kb, got %v", soul["immutability"])
	}
}

func TestCeremonyStoresPackageInVault(t *testing.T) {
	vault, err := sealvault.Open(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer vault.Close()

	o, _, _ := newTestOrchestrator(t, WithSealer(vault))

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}

	pkgID := o.Status().PackageID
	if !strings.HasPrefix(pkgID, "pkg-") {
		t.Fatalf("unexpected package id %q", pkgID)
	}

	p, err := vault.Get(context.Background(), pkgID)
	if err != nil {
		t.Fatal(err)
	}
	if p.EntityID != "entity-1" {
		t.Errorf("expected entity-1, got %s", p.EntityID)
	}

	var rec struct {
		Promise  *CovenantPromise `json:"promise"`
		SealHash string           `json:"sealHash"`
	}
	if err := json.Unmarshal(p.Payload, &rec); err != nil {
		t.Fatalf("package payload is not valid JSON: %v", err)
	}
	if rec.Promise == nil || rec.Promise.Principal != "P1" {
		t.Errorf("unexpected promise in package: %+v", rec.Promise)
	}
	if rec.SealHash != o.Status().SealHash {
		t.Error("package seal hash does not match ceremony status")
	}
}

func TestEmergencyVerificationIsReadOnly(t *testing.T) {
	o, eng, _ := newTestOrchestrator(t)

	chainBefore := eng.Status().ChainLength
	report := o.EmergencyVerification()
	if report.Valid {
		t.Fatal("report must not be valid before the ceremony")
	}
	if eng.Status().ChainLength != chainBefore {
		t.Error("emergency verification must not touch the chain")
	}
	if eng.ViolationCount() != 0 {
		t.Error("emergency verification must not record violations")
	}

	var sealedCheck *VerificationCheck
	for i := range report.Checks {
		if report.Checks[i].Name == "engine_sealed" {
			sealedCheck = &report.Checks[i]
		}
	}
	if sealedCheck == nil || sealedCheck.Passed {
		t.Errorf("expected failing engine_sealed check, got %+v", sealedCheck)
	}

	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}

	report = o.EmergencyVerification()
	if !report.Valid {
		t.Errorf("report must be valid after the ceremony: %+v", report.Checks)
	}
	if !report.Guardian.Active {
		t.Error("report must show the guardian active")
	}
	if report.Engine.EntityID != "entity-1" {
		t.Errorf("unexpected engine status in report: %+v", report.Engine)
	}
}

func TestCeremonyNotificationOrder(t *testing.T) {
	bus := notify.NewBus()
	defer bus.Close()
	ch, cancel := bus.Subscribe(32)
	defer cancel()

	sealer := &fakeSealer{}
	o, _, _ := newTestOrchestrator(t, WithBus(bus), WithSealer(sealer))

	if err := o.AddWitness("W1"); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Swear("P1", testToken()); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Seal(context.Background()); err != nil {
		t.Fatal(err)
	}

	names := drainNames(ch)
	want := []string{
		notify.CovenantWitnessed,
		notify.CovenantSworn,
		notify.CovenantSealed,
		notify.CovenantActivated,
	}
	if len(names) != len(want) {
		t.Fatalf("expected %d notifications, got %v", len(want), names)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("notification %d: expected %s, got %s", i, n, names[i])
		}
	}
}

func TestFixedClockYieldsDeterministicHashes(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return at }

	run := func() (string, string) {
		o, _, _ := newTestOrchestrator(t, WithClock(clock))
		p, err := o.Swear("P1", testToken())
		if err != nil {
			t.Fatal(err)
		}
		hash, err := o.Seal(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return p.SealHash, hash
	}

	promise1, seal1 := run()
	promise2, seal2 := run()
	if promise1 != promise2 {
		t.Errorf("promise hashes differ: %s vs %s", promise1, promise2)
	}
	if seal1 != seal2 {
		t.Errorf("ceremony hashes differ: %s vs %s", seal1, seal2)
	}
}

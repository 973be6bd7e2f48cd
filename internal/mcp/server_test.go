package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wardkeep/wardkeep/internal/boundary"
	"github.com/wardkeep/wardkeep/internal/ceremony"
	"github.com/wardkeep/wardkeep/internal/guardian"
)

func testToken() string {
	return "AUTH_" + strings.Repeat("A", 64)
}

// newTestServer builds a fully activated system: initialized engine,
// sworn and sealed ceremony, running guardian.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	eng, err := boundary.New(boundary.Domains{
		Protected: []string{"personal-kb", "soul-kb"},
		Work:      []string{"work-kb"},
		Immutable: []string{"soul-kb"},
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := eng.Initialize("P1", testToken(), "entity-1"); err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}

	guard := guardian.New(eng, filepath.Join(t.TempDir(), "audit.log"), guardian.WithInterval(time.Hour))
	t.Cleanup(func() { guard.Stop() })

	orch := ceremony.New(ceremony.Config{Principal: "P1"}, eng, guard)
	if _, err := orch.Swear("P1", testToken()); err != nil {
		t.Fatalf("failed to swear: %v", err)
	}
	if _, err := orch.Seal(context.Background()); err != nil {
		t.Fatalf("failed to seal: %v", err)
	}

	return New(Config{Engine: eng, Guardian: guard, Ceremony: orch})
}

func TestBoundaryCheckAllowed(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleBoundaryCheck(ctx, &mcpsdk.CallToolRequest{}, BoundaryCheckInput{
		Source:      "personal-kb",
		Destination: "personal-kb",
		Operation:   "read",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success, got error result")
	}
	if !out.Allowed {
		t.Fatal("expected allowed")
	}
}

func TestBoundaryCheckBlocked(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleBoundaryCheck(ctx, &mcpsdk.CallToolRequest{}, BoundaryCheckInput{
		Source:      "work-kb",
		Destination: "personal-kb",
		Operation:   "write",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for blocked operation")
	}
	if out.Allowed {
		t.Fatal("expected allowed=false")
	}
	if out.Violation != "cross_domain_contamination" {
		t.Fatalf("expected cross_domain_contamination, got %q", out.Violation)
	}
	if out.Severity != "HIGH" {
		t.Fatalf("expected HIGH severity, got %q", out.Severity)
	}
}

func TestBoundaryCheckDefaultsToRead(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	// A read into an immutable domain is allowed; only writes are blocked.
	_, out, err := s.handleBoundaryCheck(ctx, &mcpsdk.CallToolRequest{}, BoundaryCheckInput{
		Source:      "personal-kb",
		Destination: "soul-kb",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Allowed {
		t.Fatal("expected read to be allowed")
	}
}

func TestBoundaryCheckRejectsUnknownOperation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, _, err := s.handleBoundaryCheck(ctx, &mcpsdk.CallToolRequest{}, BoundaryCheckInput{
		Source:      "work-kb",
		Destination: "work-kb",
		Operation:   "explode",
	})
	if err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestGuardianStatusTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handleGuardianStatus(ctx, &mcpsdk.CallToolRequest{}, GuardianStatusInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Active {
		t.Fatal("expected active guardian")
	}
	if out.State != "ACTIVE" {
		t.Fatalf("expected ACTIVE, got %q", out.State)
	}
	if out.ChecksRun < 1 {
		t.Fatalf("expected at least one check, got %d", out.ChecksRun)
	}
	if out.Verdict != "INTACT" {
		t.Fatalf("expected INTACT, got %q", out.Verdict)
	}
	if out.LastCheck == "" {
		t.Fatal("expected last check timestamp")
	}
}

func TestVerifyCovenantTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, out, err := s.handleVerifyCovenant(ctx, &mcpsdk.CallToolRequest{}, VerifyCovenantInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected valid covenant")
	}
	if !out.Valid {
		t.Fatal("expected valid=true")
	}

	// Stopping the guardian breaks the covenant.
	if _, err := s.guardian.Stop(); err != nil {
		t.Fatal(err)
	}
	result, out, err = s.handleVerifyCovenant(ctx, &mcpsdk.CallToolRequest{}, VerifyCovenantInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for broken covenant")
	}
	if out.Valid {
		t.Fatal("expected valid=false after guardian stop")
	}
	if len(out.Failures) == 0 {
		t.Fatal("expected failure messages")
	}
}

func TestViolationHistoryTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	s.handleBoundaryCheck(ctx, &mcpsdk.CallToolRequest{}, BoundaryCheckInput{
		Source: "work-kb", Destination: "personal-kb", Operation: "write",
	})
	s.handleBoundaryCheck(ctx, &mcpsdk.CallToolRequest{}, BoundaryCheckInput{
		Source: "personal-kb", Destination: "work-kb", Operation: "transfer",
	})

	_, out, err := s.handleViolationHistory(ctx, &mcpsdk.CallToolRequest{}, ViolationHistoryInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(out.Violations))
	}
	// Most recent first.
	if out.Violations[0].Type != "illegal_transfer" {
		t.Fatalf("expected illegal_transfer first, got %q", out.Violations[0].Type)
	}
	if !out.Violations[0].Blocked {
		t.Fatal("expected blocked violation")
	}

	_, limited, err := s.handleViolationHistory(ctx, &mcpsdk.CallToolRequest{}, ViolationHistoryInput{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited.Violations) != 1 {
		t.Fatalf("expected 1 violation with limit, got %d", len(limited.Violations))
	}
}

func TestExportCertificateTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handleExportCertificate(ctx, &mcpsdk.CallToolRequest{}, ExportCertificateInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Certificate == nil {
		t.Fatal("expected certificate")
	}
	if out.Certificate.Status != "SEALED" {
		t.Fatalf("expected SEALED, got %q", out.Certificate.Status)
	}
	if out.Certificate.EntityID != "entity-1" {
		t.Fatalf("expected entity-1, got %q", out.Certificate.EntityID)
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t)
	if s.mcpServer == nil {
		t.Fatal("expected MCP server to be initialized")
	}
}

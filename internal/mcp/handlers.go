package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wardkeep/wardkeep/internal/ceremony"
	"github.com/wardkeep/wardkeep/internal/model"
)

// --- Input/Output types ---

// BoundaryCheckInput defines parameters for the boundary_check tool.
type BoundaryCheckInput struct {
	Source      string `json:"source" jsonschema:"source domain"`
	Destination string `json:"destination" jsonschema:"destination domain"`
	Operation   string `json:"operation,omitempty" jsonschema:"operation kind (read/write/transfer), defaults to read"`
}

// BoundaryCheckOutput contains the boundary decision.
type BoundaryCheckOutput struct {
	Allowed   bool   `json:"allowed"`
	Violation string `json:"violation,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// GuardianStatusInput is empty, no parameters needed.
type GuardianStatusInput struct{}

// GuardianStatusOutput mirrors the guardian snapshot.
type GuardianStatusOutput struct {
	Active            bool   `json:"active"`
	State             string `json:"state"`
	ChecksRun         int    `json:"checks_run"`
	ViolationsBlocked int    `json:"violations_blocked"`
	Verdict           string `json:"verdict"`
	LastCheck         string `json:"last_check,omitempty"`
}

// VerifyCovenantInput is empty, no parameters needed.
type VerifyCovenantInput struct{}

// VerifyCovenantOutput reports whether every protection holds.
type VerifyCovenantOutput struct {
	Valid    bool     `json:"valid"`
	Failures []string `json:"failures,omitempty"`
}

// ViolationHistoryInput defines parameters for the violation_history tool.
type ViolationHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of violations to return, 0 for all"`
}

// ViolationHistoryOutput lists recorded violations, most recent first.
type ViolationHistoryOutput struct {
	Violations []ViolationItem `json:"violations"`
}

// ViolationItem describes a single recorded violation.
type ViolationItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Operation string `json:"operation"`
	Blocked   bool   `json:"blocked"`
	Timestamp string `json:"timestamp"`
	Detail    string `json:"detail,omitempty"`
}

// ExportCertificateInput is empty, no parameters needed.
type ExportCertificateInput struct{}

// ExportCertificateOutput wraps the covenant certificate.
type ExportCertificateOutput struct {
	Certificate *ceremony.CovenantCertificate `json:"certificate"`
}

// --- Handlers ---

func (s *Server) handleBoundaryCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input BoundaryCheckInput) (*mcpsdk.CallToolResult, BoundaryCheckOutput, error) {
	op := model.OpRead
	if input.Operation != "" {
		var err error
		op, err = model.ParseOperation(input.Operation)
		if err != nil {
			return nil, BoundaryCheckOutput{}, err
		}
	}

	if s.guardian.MonitorOperation(op, input.Source, input.Destination) {
		return nil, BoundaryCheckOutput{Allowed: true}, nil
	}

	out := BoundaryCheckOutput{Allowed: false}
	if history := s.guardian.ViolationHistory(1); len(history) == 1 {
		v := history[0]
		out.Violation = string(v.Type)
		out.Severity = string(v.Severity)
		out.Detail = v.Detail
	}
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}

func (s *Server) handleGuardianStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input GuardianStatusInput) (*mcpsdk.CallToolResult, GuardianStatusOutput, error) {
	st := s.guardian.Status()

	out := GuardianStatusOutput{
		Active:            st.Active,
		State:             st.StateLabel,
		ChecksRun:         st.ChecksRun,
		ViolationsBlocked: st.ViolationsBlocked,
		Verdict:           string(st.Verdict),
	}
	if !st.LastCheck.IsZero() {
		out.LastCheck = st.LastCheck.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleVerifyCovenant(ctx context.Context, req *mcpsdk.CallToolRequest, input VerifyCovenantInput) (*mcpsdk.CallToolResult, VerifyCovenantOutput, error) {
	out := VerifyCovenantOutput{Valid: s.ceremony.VerifyCovenant()}
	if out.Valid {
		return nil, out, nil
	}

	report := s.ceremony.EmergencyVerification()
	for _, c := range report.Checks {
		if !c.Passed {
			out.Failures = append(out.Failures, c.Message)
		}
	}
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}

func (s *Server) handleViolationHistory(ctx context.Context, req *mcpsdk.CallToolRequest, input ViolationHistoryInput) (*mcpsdk.CallToolResult, ViolationHistoryOutput, error) {
	history := s.guardian.ViolationHistory(input.Limit)

	items := make([]ViolationItem, len(history))
	for i, v := range history {
		items[i] = ViolationItem{
			ID:        v.ID,
			Type:      string(v.Type),
			Severity:  string(v.Severity),
			Source:    v.Source,
			Target:    v.Target,
			Operation: string(v.Operation),
			Blocked:   v.Blocked,
			Timestamp: v.Timestamp.Format(time.RFC3339),
			Detail:    v.Detail,
		}
	}
	return nil, ViolationHistoryOutput{Violations: items}, nil
}

func (s *Server) handleExportCertificate(ctx context.Context, req *mcpsdk.CallToolRequest, input ExportCertificateInput) (*mcpsdk.CallToolResult, ExportCertificateOutput, error) {
	cert, err := s.ceremony.ExportCertificate()
	if err != nil {
		return nil, ExportCertificateOutput{}, err
	}
	return nil, ExportCertificateOutput{Certificate: cert}, nil
}

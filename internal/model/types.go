package model

import (
	"fmt"
	"strings"
	"time"
)

// Operation is the kind of data-store access being gated.
type Operation string

const (
	OpRead     Operation = "read"
	OpWrite    Operation = "write"
	OpTransfer Operation = "transfer"
)

// ParseOperation maps a string to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(s) {
	case "read":
		return OpRead, nil
	case "write":
		return OpWrite, nil
	case "transfer":
		return OpTransfer, nil
	default:
		return "", fmt.Errorf("unknown operation %q (want read, write, or transfer)", s)
	}
}

// Severity classifies how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityRank maps severity to a comparable integer for threshold checks.
var SeverityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// ViolationType classifies why an operation was blocked.
type ViolationType string

const (
	ViolationCrossDomain     ViolationType = "cross_domain_contamination"
	ViolationImmutableWrite  ViolationType = "immutable_write"
	ViolationIllegalTransfer ViolationType = "illegal_transfer"
	ViolationTampering       ViolationType = "artifact_tampering"
	ViolationChainBroken     ViolationType = "chain_broken"
)

// ViolationEvent records one blocked operation. Immutable once created;
// the engine retains every event in an in-memory ordered log for the
// process lifetime.
type ViolationEvent struct {
	ID        string        `json:"id"`
	Type      ViolationType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Operation Operation     `json:"operation"`
	Severity  Severity      `json:"severity"`
	Blocked   bool          `json:"blocked"`
	Detail    string        `json:"detail,omitempty"`
}

// ViolationParams describes a violation about to be recorded. The
// engine assigns the ID, timestamp, and blocked flag.
type ViolationParams struct {
	Type      ViolationType
	Severity  Severity
	Source    string
	Target    string
	Operation Operation
	Detail    string
}

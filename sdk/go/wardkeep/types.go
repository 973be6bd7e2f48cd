package wardkeep

import (
	"fmt"

	"github.com/wardkeep/wardkeep/internal/model"
)

// Flow describes a data movement a tool intends to perform.
type Flow struct {
	Source      string // domain the data comes from
	Destination string // domain the data lands in
	Operation   string // "read", "write", or "transfer"; empty means read
}

// Violation describes the boundary violation that blocked a flow.
type Violation struct {
	ID       string
	Type     string
	Severity string
	Detail   string
}

// BlockedError is returned by a wrapped ToolFunc when the boundary blocks
// the flow. The wrapped function was not called.
type BlockedError struct {
	Flow      Flow
	Violation Violation
}

func (e *BlockedError) Error() string {
	if e.Violation.Type == "" {
		return fmt.Sprintf("wardkeep blocked %s -> %s", e.Flow.Source, e.Flow.Destination)
	}
	return fmt.Sprintf("wardkeep blocked (%s): %s", e.Violation.Type, e.Violation.Detail)
}

func toViolation(v model.ViolationEvent) Violation {
	return Violation{
		ID:       v.ID,
		Type:     string(v.Type),
		Severity: string(v.Severity),
		Detail:   v.Detail,
	}
}

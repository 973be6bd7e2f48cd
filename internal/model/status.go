package model

import "time"

// GuardianState represents the guardian lifecycle position.
// Can only advance (increase), never retreat.
type GuardianState int

const (
	GuardianInactive GuardianState = 0
	GuardianActive   GuardianState = 1
	GuardianStopped  GuardianState = 2
)

func (s GuardianState) String() string {
	switch s {
	case GuardianInactive:
		return "INACTIVE"
	case GuardianActive:
		return "ACTIVE"
	case GuardianStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Verdict is the guardian's coarse integrity assessment.
type Verdict string

const (
	VerdictIntact      Verdict = "INTACT"
	VerdictCompromised Verdict = "COMPROMISED"
	VerdictUnknown     Verdict = "UNKNOWN"
)

// GuardianStatus is a point-in-time snapshot of the guardian.
// ViolationsBlocked counts every blocked operation recorded by the
// engine the guardian watches, so the number is cumulative across
// guardian instances bound to the same engine.
type GuardianStatus struct {
	Active            bool          `json:"active"`
	State             GuardianState `json:"-"`
	StateLabel        string        `json:"state"`
	StartedAt         time.Time     `json:"started_at"`
	LastCheck         time.Time     `json:"last_check"`
	ChecksRun         int           `json:"checks_run"`
	ViolationsBlocked int           `json:"violations_blocked"`
	Verdict           Verdict       `json:"verdict"`
}

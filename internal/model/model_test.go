package model

import "testing"

func TestParseOperation(t *testing.T) {
	cases := []struct {
		in      string
		want    Operation
		wantErr bool
	}{
		{"read", OpRead, false},
		{"write", OpWrite, false},
		{"transfer", OpTransfer, false},
		{"WRITE", OpWrite, false},
		{"Transfer", OpTransfer, false},
		{"delete", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := ParseOperation(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseOperation(%q): expected error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOperation(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseOperation(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if SeverityRank[SeverityLow] >= SeverityRank[SeverityMedium] ||
		SeverityRank[SeverityMedium] >= SeverityRank[SeverityHigh] ||
		SeverityRank[SeverityHigh] >= SeverityRank[SeverityCritical] {
		t.Fatalf("severity ranks out of order: %v", SeverityRank)
	}
}

func TestGuardianStateString(t *testing.T) {
	cases := map[GuardianState]string{
		GuardianInactive: "INACTIVE",
		GuardianActive:   "ACTIVE",
		GuardianStopped:  "STOPPED",
		GuardianState(9): "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("state %d: got %q, want %q", state, got, want)
		}
	}
}

func TestGuardianStateOnlyAdvances(t *testing.T) {
	if !(GuardianInactive < GuardianActive && GuardianActive < GuardianStopped) {
		t.Fatal("lifecycle states must be strictly increasing")
	}
}

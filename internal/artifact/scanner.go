// Package artifact watches the protected artifact set (the files that
// make up the policy machinery itself) for post-activation
// modification.
//
// The signal is the mtime heuristic: a file whose modification time is
// later than the guardian's start time counts as tampered. This is
// tamper evidence, not proof; timestamps can be forged or coarse.
package artifact

import (
	"os"
	"time"
)

// Finding is one artifact whose mtime post-dates the reference time.
type Finding struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
}

// Scanner stats a fixed set of artifact paths.
type Scanner struct {
	paths []string
}

// NewScanner builds a scanner over the given paths. Empty entries are
// dropped.
func NewScanner(paths []string) *Scanner {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &Scanner{paths: kept}
}

// Paths returns the watched set.
func (s *Scanner) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Scan returns every artifact modified after since. A path that cannot
// be statted is skipped: with no timestamp there is nothing to compare,
// and absence is a deployment concern rather than a tamper signal.
func (s *Scanner) Scan(since time.Time) []Finding {
	var out []Finding
	for _, p := range s.paths {
		if f, ok := statAfter(p, since); ok {
			out = append(out, f)
		}
	}
	return out
}

// ScanPath checks one path against since.
func (s *Scanner) ScanPath(path string, since time.Time) (Finding, bool) {
	return statAfter(path, since)
}

func statAfter(path string, since time.Time) (Finding, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Finding{}, false
	}
	if !info.ModTime().After(since) {
		return Finding{}, false
	}
	return Finding{Path: path, ModTime: info.ModTime()}, true
}

package boundary

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Domains lists the domain names per class. Immutable domains are a
// subset of protected ones; they are listed separately because their
// rule is stricter (no write, ever, regardless of authorization).
type Domains struct {
	Protected []string `json:"protected"`
	Work      []string `json:"work"`
	Immutable []string `json:"immutable"`
}

// domainSets is the normalized form the engine evaluates against.
type domainSets struct {
	protected map[string]bool
	work      map[string]bool
	immutable map[string]bool
}

// normalizeDomains validates the partition and builds lookup sets.
// Immutable names are folded into the protected set; a name appearing
// in both protected and work is a configuration mistake.
func normalizeDomains(d Domains) (domainSets, error) {
	sets := domainSets{
		protected: make(map[string]bool),
		work:      make(map[string]bool),
		immutable: make(map[string]bool),
	}
	for _, name := range d.Protected {
		if name == "" {
			return sets, fmt.Errorf("boundary: empty protected domain name")
		}
		sets.protected[name] = true
	}
	for _, name := range d.Immutable {
		if name == "" {
			return sets, fmt.Errorf("boundary: empty immutable domain name")
		}
		sets.immutable[name] = true
		sets.protected[name] = true
	}
	for _, name := range d.Work {
		if name == "" {
			return sets, fmt.Errorf("boundary: empty work domain name")
		}
		if sets.protected[name] {
			return sets, fmt.Errorf("boundary: domain %q cannot be both protected and work", name)
		}
		sets.work[name] = true
	}
	return sets, nil
}

func (s domainSets) lists() Domains {
	return Domains{
		Protected: sortedKeys(s.protected),
		Work:      sortedKeys(s.work),
		Immutable: sortedKeys(s.immutable),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BoundaryConfig is the partition record built once at initialization
// and never mutated after sealing.
type BoundaryConfig struct {
	EntityID  string
	Principal string
	Token     string
	CreatedAt time.Time
	Domains   Domains
	Proof     string
}

// configProof digests the canonical config material. The proof seed,
// when present, binds the engine to the exact bytes of the source
// configuration file.
func configProof(cfg *BoundaryConfig, seed string) string {
	material := strings.Join([]string{
		cfg.EntityID,
		cfg.Principal,
		cfg.Token,
		strings.Join(cfg.Domains.Protected, ","),
		strings.Join(cfg.Domains.Work, ","),
		strings.Join(cfg.Domains.Immutable, ","),
		cfg.CreatedAt.UTC().Format(time.RFC3339Nano),
		seed,
	}, "|")
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

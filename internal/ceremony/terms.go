package ceremony

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/wardkeep/wardkeep/internal/boundary"
)

// Fixed term values declared for every protected domain at swear time.
const (
	TermStatus        = "eternally pure"
	TermProtection    = "absolute"
	TermContamination = "impossible"
	TermImmutability  = "total"
)

const covenantSealConstant = "ETERNAL_COVENANT_SEAL_V1"

// CovenantTerms is the declaration recorded for one protected domain.
type CovenantTerms struct {
	Status        string `json:"status"`
	Protection    string `json:"protection"`
	Contamination string `json:"contamination"`
	Immutability  string `json:"immutability,omitempty"`
}

// CovenantPromise is the sworn declaration: the fixed terms per protected
// domain plus a digest binding them to the principal and the swear time.
type CovenantPromise struct {
	Principal string                   `json:"principal"`
	Terms     map[string]CovenantTerms `json:"terms"`
	SwornAt   time.Time                `json:"swornAt"`
	SealHash  string                   `json:"sealHash"`
}

// buildTerms declares the covenant terms for each protected domain.
// Immutable domains additionally carry total immutability.
func buildTerms(d boundary.Domains) map[string]CovenantTerms {
	terms := make(map[string]CovenantTerms, len(d.Protected))
	for _, name := range d.Protected {
		terms[name] = CovenantTerms{
			Status:        TermStatus,
			Protection:    TermProtection,
			Contamination: TermContamination,
		}
	}
	for _, name := range d.Immutable {
		t := terms[name]
		t.Immutability = TermImmutability
		terms[name] = t
	}
	return terms
}

func promiseHash(p *CovenantPromise) string {
	names := make([]string, 0, len(p.Terms))
	for name := range p.Terms {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := []string{p.Principal}
	for _, name := range names {
		t := p.Terms[name]
		parts = append(parts, name+"="+t.Status+","+t.Protection+","+t.Contamination+","+t.Immutability)
	}
	parts = append(parts, p.SwornAt.UTC().Format(time.RFC3339Nano))

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func ceremonyHash(promiseSeal string, at time.Time) string {
	material := strings.Join([]string{
		promiseSeal,
		covenantSealConstant,
		at.UTC().Format(time.RFC3339Nano),
	}, "|")
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

func clonePromise(p *CovenantPromise) *CovenantPromise {
	cp := *p
	cp.Terms = make(map[string]CovenantTerms, len(p.Terms))
	for k, v := range p.Terms {
		cp.Terms[k] = v
	}
	return &cp
}

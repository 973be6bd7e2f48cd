package boundary

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Link kinds in the integrity chain.
const (
	LinkGenesis       = "genesis"
	LinkSeal          = "seal"
	LinkReinforcement = "reinforcement"
)

// Link is one element of the append-only integrity chain. Each hash
// covers the previous link's hash plus this link's own material, so
// editing, removing, or reordering any link breaks every recomputation
// from that position on.
type Link struct {
	Index   int       `json:"index"`
	Kind    string    `json:"kind"`
	Payload string    `json:"payload"`
	At      time.Time `json:"at"`
	Hash    string    `json:"hash"`
}

// Chain is the in-memory hash chain. Append-only; not safe for
// concurrent use on its own, the engine serializes all access.
type Chain struct {
	links []Link
}

// newChain derives link 0 from the boundary config proof.
func newChain(proof string, at time.Time) *Chain {
	c := &Chain{}
	c.links = append(c.links, Link{
		Index:   0,
		Kind:    LinkGenesis,
		Payload: proof,
		At:      at.UTC(),
		Hash:    linkHash("", LinkGenesis, proof, at),
	})
	return c
}

// Append adds one link derived from the current tail and returns it.
func (c *Chain) Append(kind, payload string, at time.Time) Link {
	prev := c.links[len(c.links)-1].Hash
	link := Link{
		Index:   len(c.links),
		Kind:    kind,
		Payload: payload,
		At:      at.UTC(),
		Hash:    linkHash(prev, kind, payload, at),
	}
	c.links = append(c.links, link)
	return link
}

// Recompute walks the chain from link 0, recomputing every hash from
// the stored material, and reports the first position that fails to
// reproduce its stored hash.
func (c *Chain) Recompute() (ok bool, badIndex int) {
	prev := ""
	for i, l := range c.links {
		if want := linkHash(prev, l.Kind, l.Payload, l.At); l.Hash != want {
			return false, i
		}
		prev = l.Hash
	}
	return true, -1
}

// Len returns the number of links.
func (c *Chain) Len() int { return len(c.links) }

// Head returns the most recent link.
func (c *Chain) Head() Link { return c.links[len(c.links)-1] }

// Links returns a copy for read-only inspection.
func (c *Chain) Links() []Link {
	out := make([]Link, len(c.links))
	copy(out, c.links)
	return out
}

func linkHash(prev, kind, payload string, at time.Time) string {
	material := prev + "|" + kind + "|" + payload + "|" + at.UTC().Format(time.RFC3339Nano)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

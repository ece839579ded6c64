// Package node implements URL-derived node identity for the webgraph: the
// canonicalization rule that turns a raw URL/host string into a Node, and
// the deterministic 64-bit fingerprint (NodeID) derived from it.
package node

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NodeID is the 64-bit fingerprint of a canonical Node string. Collisions
// are treated as identity: the core does not resolve them. This is a
// documented design concession, not a bug.
type NodeID uint64

// Node is the canonical string form of a page or host. Two Nodes are
// equal iff their canonical strings are equal.
type Node struct {
	s string
}

// From canonicalizes s into a Node:
//   - lowercase
//   - strip a leading "http://" or "https://" scheme
//   - strip a leading "www." host label
//   - drop the URL fragment ("#...")
//
// From is idempotent: From(From(s).String()).String() == From(s).String().
func From(s string) Node {
	s = strings.ToLower(strings.TrimSpace(s))

	if rest, ok := cutScheme(s); ok {
		s = rest
	}

	if h := strings.Index(s, "#"); h >= 0 {
		s = s[:h]
	}

	s = strings.TrimPrefix(s, "www.")

	return Node{s: s}
}

func cutScheme(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "https://"); ok {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(s, "http://"); ok {
		return rest, true
	}
	return s, false
}

// String returns the canonical string form.
func (n Node) String() string {
	return n.s
}

// IsZero reports whether n is the zero-value Node.
func (n Node) IsZero() bool {
	return n.s == ""
}

// IntoHost reduces n to its host, dropping any path, query, or port
// component. Subdomains are kept: no reduction to the registrable
// domain (public suffix plus one label) is made, so
// "blog.example.com/x" becomes "blog.example.com".
func (n Node) IntoHost() Node {
	host := n.s
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, ":"); i >= 0 {
		if _, ok := isAllDigits(host[i+1:]); ok {
			host = host[:i]
		}
	}
	return Node{s: host}
}

func isAllDigits(s string) (string, bool) {
	if s == "" {
		return s, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s, false
		}
	}
	return s, true
}

// ID returns the 64-bit fingerprint of n, stable across process runs.
// Changing the hash function is a format-breaking event for any
// persisted segment or id2node store.
func (n Node) ID() NodeID {
	return NodeID(xxhash.Sum64String(n.s))
}

// Less provides the lexicographic order on canonical form, used when a
// total order over Nodes (rather than NodeIDs) is required.
func (n Node) Less(other Node) bool {
	return n.s < other.s
}

// Equal reports whether two Nodes have the same canonical string.
func (n Node) Equal(other Node) bool {
	return n.s == other.s
}

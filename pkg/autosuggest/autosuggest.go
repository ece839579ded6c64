// Package autosuggest serves query completions: given a host prefix
// typed by a user, it returns known pages under matching hosts, each
// with the matched prefix bolded in the response.
//
// Grounded on original_source/src/frontend/autosuggest.rs's highlight
// function and its route handler (extract ?q=, look up suggestions,
// highlight each, return a JSON array), reshaped onto the teacher's
// net/http + writeJSON idiom from pkg/server/server.go rather than axum.
// HostPrefixSuggester's two-step host-scan-then-PagesByHost lookup is
// grounded on Segment.pages_by_host (pkg/segment/segment.go).
package autosuggest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/orneryd/webgraph/pkg/node"
	"github.com/orneryd/webgraph/pkg/webgraph"
)

// Highlight bolds the suffix of suggestion starting at the first rune
// where suggestion and query diverge, or at len(query) runes if every
// rune up to that point matches. It mirrors original_source's
// character-by-character zip-and-compare, operating on runes rather
// than bytes so multi-byte UTF-8 text splits the same way Rust's
// char-indexed version does.
func Highlight(query, suggestion string) string {
	qRunes := []rune(query)
	sRunes := []rune(suggestion)

	idx := len(qRunes)
	for i := 0; i < len(qRunes) && i < len(sRunes); i++ {
		if qRunes[i] != sRunes[i] {
			idx = i
			break
		}
	}
	if idx > len(sRunes) {
		idx = len(sRunes)
	}

	return string(sRunes[:idx]) + "<b>" + string(sRunes[idx:]) + "</b>"
}

// Suggester returns candidate completions for a query, most relevant
// first. The core never ranks or tokenizes queries itself; this is the
// seam a real suggestion-ranking collaborator plugs into.
type Suggester interface {
	Suggestions(query string) ([]string, error)
}

// HostPrefixSuggester answers Suggestions in two steps: first a
// host-prefix scan of the Webgraph's id2node store finds every
// distinct host whose canonical string starts with query, then each
// matching host is resolved to its pages via Graph.PagesByHost. It is
// a direct, in-process stand-in for a dedicated suggestion index.
type HostPrefixSuggester struct {
	Graph *webgraph.Webgraph
	Limit int
}

// NewHostPrefixSuggester builds a HostPrefixSuggester over g, capping
// the number of returned suggestions at limit (0 means unlimited).
func NewHostPrefixSuggester(g *webgraph.Webgraph, limit int) *HostPrefixSuggester {
	return &HostPrefixSuggester{Graph: g, Limit: limit}
}

// Suggestions implements Suggester.
func (s *HostPrefixSuggester) Suggestions(query string) ([]string, error) {
	pairs, err := s.Graph.Id2NodeIter()
	if err != nil {
		return nil, err
	}

	prefix := node.From(query).String()

	seenHost := map[node.NodeID]struct{}{}
	var hosts []node.NodeID
	for _, p := range pairs {
		host := p.Node.IntoHost()
		if !strings.HasPrefix(host.String(), prefix) {
			continue
		}
		if _, ok := seenHost[host.ID()]; ok {
			continue
		}
		seenHost[host.ID()] = struct{}{}
		hosts = append(hosts, host.ID())
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i] < hosts[j] })

	var matches []string
	for _, hostID := range hosts {
		pageIDs, err := s.Graph.PagesByHost(hostID)
		if err != nil {
			return nil, err
		}
		for _, pageID := range pageIDs {
			if n, ok := s.Graph.Id2Node(pageID); ok {
				matches = append(matches, n.String())
			}
		}
		if s.Limit > 0 && len(matches) >= s.Limit {
			break
		}
	}
	sort.Strings(matches)

	if s.Limit > 0 && len(matches) > s.Limit {
		matches = matches[:s.Limit]
	}
	return matches, nil
}

// Handler serves GET requests with a "q" query parameter, returning a
// JSON array of highlighted suggestions. A missing or empty q yields an
// empty array, matching original_source's route.
func Handler(s Suggester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		suggestions := []string{}
		if query != "" {
			raw, err := s.Suggestions(query)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"error":   true,
					"message": err.Error(),
				})
				return
			}
			for _, suggestion := range raw {
				suggestions = append(suggestions, Highlight(query, suggestion))
			}
		}

		writeJSON(w, http.StatusOK, suggestions)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

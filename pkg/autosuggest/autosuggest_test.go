package autosuggest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/webgraph/pkg/autosuggest"
	"github.com/orneryd/webgraph/pkg/config"
	"github.com/orneryd/webgraph/pkg/writer"
)

// TestHighlight replicates original_source's five exact assertions.
func TestHighlight(t *testing.T) {
	cases := []struct {
		query, suggestion, want string
	}{
		{"", "test", "<b>test</b>"},
		{"t", "test", "t<b>est</b>"},
		{"te", "test", "te<b>st</b>"},
		{"tes", "test", "tes<b>t</b>"},
		{"test", "test", "test<b></b>"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, autosuggest.Highlight(c.query, c.suggestion))
	}
}

type fakeSuggester struct {
	suggestions []string
}

func (f fakeSuggester) Suggestions(query string) ([]string, error) {
	return f.suggestions, nil
}

func TestHandlerReturnsHighlightedSuggestions(t *testing.T) {
	h := autosuggest.Handler(fakeSuggester{suggestions: []string{"test", "testing"}})

	req := httptest.NewRequest(http.MethodGet, "/autosuggest?q=te", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"te<b>st</b>", "te<b>sting</b>"}, got)
}

func TestHostPrefixSuggesterMatchesRegisteredNodes(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir

	w, err := writer.New(dir, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Insert("example.com/a", "example.com/b", "", 0))
	require.NoError(t, w.Insert("example.org/c", "example.com/a", "", 0))

	g, err := w.Finalize()
	require.NoError(t, err)

	s := autosuggest.NewHostPrefixSuggester(g, 0)
	matches, err := s.Suggestions("example.com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"example.com/a", "example.com/b"}, matches)
}

func TestHandlerEmptyQueryReturnsEmptyArray(t *testing.T) {
	h := autosuggest.Handler(fakeSuggester{suggestions: []string{"anything"}})

	req := httptest.NewRequest(http.MethodGet, "/autosuggest", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got)
}

package europepmc

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neuro-news/config"
)

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{EuropePMCBaseURL: baseURL}, zap.NewNop())
}

func TestCitationCountsBatching(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("query"))
		fmt.Fprint(w, `{"resultList":{"result":[{"pmid":"1","citedByCount":5}]}}`)
	}))
	defer srv.Close()

	pmids := make([]string, 120)
	for i := range pmids {
		pmids[i] = fmt.Sprintf("%d", i+1)
	}

	counts := testClient(srv.URL).CitationCounts(pmids)

	// 120 IDs → genau 3 Batches (50/50/20)
	require.Len(t, queries, 3)
	assert.Len(t, strings.Split(queries[0], " OR "), 50)
	assert.Len(t, strings.Split(queries[1], " OR "), 50)
	assert.Len(t, strings.Split(queries[2], " OR "), 20)
	assert.True(t, strings.HasPrefix(queries[0], "EXT_ID:1 OR EXT_ID:2"))

	// Jede Eingabe-ID ist im Ergebnis, nicht gemeldete mit 0
	require.Len(t, counts, 120)
	assert.Equal(t, 5, counts["1"])
	assert.Equal(t, 0, counts["120"])
}

func TestCitationCountsFailedBatchContributesZeros(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"resultList":{"result":[{"pmid":"51","citedByCount":2}]}}`)
	}))
	defer srv.Close()

	pmids := make([]string, 60)
	for i := range pmids {
		pmids[i] = fmt.Sprintf("%d", i+1)
	}

	counts := testClient(srv.URL).CitationCounts(pmids)

	// Der erste Batch schlägt fehl, der zweite läuft trotzdem
	require.Equal(t, 2, calls)
	assert.Equal(t, 0, counts["1"])
	assert.Equal(t, 2, counts["51"])
	assert.Len(t, counts, 60)
}

func TestCitationCountsEmptyInput(t *testing.T) {
	counts := testClient("http://unused.invalid").CitationCounts(nil)
	assert.Empty(t, counts)
}

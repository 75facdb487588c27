package openalex

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neuro-news/config"
)

func testClient(baseURL string) *Client {
	return NewClient(&config.Config{OpenAlexBaseURL: baseURL, OpenAlexMailto: "test@example.com"}, zap.NewNop())
}

func TestLookupByISSN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sources/issn:1234-5678", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "mailto:test@example.com")
		fmt.Fprint(w, `{"id":"https://openalex.org/S1","display_name":"Journal of Neurosurgery","summary_stats":{"2yr_mean_citedness":4.567}}`)
	}))
	defer srv.Close()

	source, err := testClient(srv.URL).LookupByISSN("1234-5678")
	require.NoError(t, err)
	assert.Equal(t, "https://openalex.org/S1", source.ID)
}

func TestLookupByISSNNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LookupByISSN("0000-0000")
	assert.Error(t, err)
}

func TestSearchByNameTakesFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sources", r.URL.Path)
		assert.Equal(t, "Neurosurgery", r.URL.Query().Get("search"))
		fmt.Fprint(w, `{"results":[{"id":"https://openalex.org/S2","summary_stats":{"2yr_mean_citedness":2.345}},{"id":"https://openalex.org/S3"}]}`)
	}))
	defer srv.Close()

	source, err := testClient(srv.URL).SearchByName("Neurosurgery")
	require.NoError(t, err)
	assert.Equal(t, "https://openalex.org/S2", source.ID)
}

func TestSearchByNameNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).SearchByName("Does Not Exist")
	assert.Error(t, err)
}

func TestExtractIF(t *testing.T) {
	src := &Source{}
	src.SummaryStats.TwoYearMeanCitedness = 4.567
	v := ExtractIF(src)
	require.NotNil(t, v)
	assert.Equal(t, 4.57, *v)
}

func TestExtractIFRejectsNonPositive(t *testing.T) {
	src := &Source{}
	assert.Nil(t, ExtractIF(src))

	src.SummaryStats.TwoYearMeanCitedness = -1
	assert.Nil(t, ExtractIF(src))
}

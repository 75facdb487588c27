// Package europepmc fragt Zitationszahlen über die Europe PMC REST-API ab.
package europepmc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"neuro-news/config"
)

// batchSize ist die maximale Anzahl IDs pro Disjunktions-Query, die die
// Europe PMC API akzeptiert.
const batchSize = 50

var httpClient = &http.Client{Timeout: 60 * time.Second}

// SearchResponse ist die Top-Level-Struktur der Europe PMC API-Antwort.
type SearchResponse struct {
	ResultList struct {
		Result []Result `json:"result"`
	} `json:"resultList"`
}

// Result repräsentiert einen einzelnen Treffer mit Zitationszahl.
type Result struct {
	PMID         string `json:"pmid"`
	CitedByCount int    `json:"citedByCount"`
}

// Client kapselt die Interaktion mit Europe PMC.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen Europe PMC Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// CitationCounts liefert für jede übergebene PMID die Zitationszahl.
// Die IDs werden in Batches von höchstens 50 disjunktiv abgefragt
// (EXT_ID:A OR EXT_ID:B ...). Jede Eingabe-ID ist im Ergebnis enthalten,
// nicht zurückgemeldete IDs mit 0. Ein fehlgeschlagener Batch wird geloggt
// und trägt Nullen bei, bricht die übrigen Batches aber nicht ab.
func (c *Client) CitationCounts(pmids []string) map[string]int {
	counts := make(map[string]int, len(pmids))
	for _, pmid := range pmids {
		counts[pmid] = 0
	}

	for i := 0; i < len(pmids); i += batchSize {
		end := i + batchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		batch := pmids[i:end]

		if err := c.fetchBatch(batch, counts); err != nil {
			c.Logger.Warn("Europe PMC Batch fehlgeschlagen, IDs behalten Zählerstand 0",
				zap.Int("batch_start", i),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
		}
	}
	return counts
}

// fetchBatch fragt einen Batch ab und trägt die Treffer in counts ein.
func (c *Client) fetchBatch(batch []string, counts map[string]int) error {
	terms := make([]string, 0, len(batch))
	for _, pmid := range batch {
		terms = append(terms, "EXT_ID:"+pmid)
	}

	params := url.Values{}
	params.Set("query", strings.Join(terms, " OR "))
	params.Set("format", "json")
	params.Set("resultType", "core")
	params.Set("pageSize", fmt.Sprintf("%d", len(batch)))

	searchURL := fmt.Sprintf("%s/search?%s", c.Config.EuropePMCBaseURL, params.Encode())
	c.Logger.Debug("Rufe Europe PMC API auf", zap.String("url", searchURL))

	resp, err := httpClient.Get(searchURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("europepmc search failed: status %d", resp.StatusCode)
	}

	var searchResponse SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return err
	}

	for _, result := range searchResponse.ResultList.Result {
		if result.PMID != "" {
			counts[result.PMID] = result.CitedByCount
		}
	}
	return nil
}

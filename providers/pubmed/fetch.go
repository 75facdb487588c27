package pubmed

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"neuro-news/config"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher ist eine Struktur, die die Logik zur Interaktion mit PubMed kapselt.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// SearchIDs führt eine ESearch-Abfrage mit edat-Datumsfenster durch und gibt
// die Liste der gefundenen PMIDs zurück. Transport- und Decode-Fehler sind
// fatal für den laufenden Batch.
func (f *Fetcher) SearchIDs(query string, days, maxResults int) ([]string, error) {
	log := f.Logger.With(zap.String("query", query), zap.Int("days", days))
	log.Info("Starte PubMed ESearch für IDs.")

	now := time.Now()
	minDate := now.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	params.Set("datetype", "edat")
	params.Set("mindate", minDate.Format("2006/01/02"))
	params.Set("maxdate", now.Format("2006/01/02"))
	params.Set("retmode", "json")
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}

	searchURL := fmt.Sprintf("%s/esearch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())
	log.Debug("Rufe ESearch-URL auf", zap.String("url", searchURL))

	resp, err := httpClient.Get(searchURL)
	if err != nil {
		return nil, fmt.Errorf("esearch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Error("ESearch-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("esearch failed: status %d", resp.StatusCode)
	}

	var esearchResp ESearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&esearchResp); err != nil {
		return nil, fmt.Errorf("esearch decode failed: %w", err)
	}

	ids := esearchResp.ESearchResult.IdList
	log.Info("PubMed ESearch abgeschlossen", zap.Int("total_ids", len(ids)))
	return ids, nil
}

// FetchRaw holt das rohe EFetch-XML für einen Batch von PMIDs. Der Aufrufer
// garantiert eine sichere Batch-Größe.
func (f *Fetcher) FetchRaw(pmids []string) ([]byte, error) {
	if len(pmids) == 0 {
		return nil, fmt.Errorf("no pmids given")
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}

	efetchURL := fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())
	f.Logger.Debug("Rufe EFetch-URL auf", zap.String("url", efetchURL), zap.Int("batch_size", len(pmids)))

	resp, err := httpClient.Get(efetchURL)
	if err != nil {
		return nil, fmt.Errorf("efetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("efetch failed: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Package openalex löst Journal-Impact-Faktoren über die OpenAlex API auf.
package openalex

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"neuro-news/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Source repräsentiert ein OpenAlex-Source-Objekt (Journal).
type Source struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	SummaryStats struct {
		TwoYearMeanCitedness float64 `json:"2yr_mean_citedness"`
	} `json:"summary_stats"`
}

// searchResponse ist die Antwort der Source-Suche.
type searchResponse struct {
	Results []Source `json:"results"`
}

// Client kapselt die Interaktion mit OpenAlex.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient erstellt einen neuen OpenAlex Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// LookupByISSN schlägt ein Journal per ISSN nach. Ein Fehler ist nicht fatal:
// der Aufrufer fällt auf die Namenssuche zurück.
func (c *Client) LookupByISSN(issn string) (*Source, error) {
	u := fmt.Sprintf("%s/sources/issn:%s", c.Config.OpenAlexBaseURL, url.PathEscape(issn))
	var source Source
	if err := c.get(u, &source); err != nil {
		return nil, err
	}
	if source.ID == "" {
		return nil, fmt.Errorf("no source for issn %s", issn)
	}
	return &source, nil
}

// SearchByName sucht ein Journal per Name und nimmt den ersten Treffer.
func (c *Client) SearchByName(name string) (*Source, error) {
	params := url.Values{}
	params.Set("search", name)
	u := fmt.Sprintf("%s/sources?%s", c.Config.OpenAlexBaseURL, params.Encode())

	var resp searchResponse
	if err := c.get(u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no source results for %q", name)
	}
	return &resp.Results[0], nil
}

// ExtractIF liefert die 2-Jahres-Mean-Citedness auf 2 Nachkommastellen
// gerundet, oder nil, wenn der Wert fehlt bzw. nicht strikt positiv ist.
func ExtractIF(source *Source) *float64 {
	v := source.SummaryStats.TwoYearMeanCitedness
	if v <= 0 {
		return nil
	}
	rounded := math.Round(v*100) / 100
	return &rounded
}

// get führt einen GET-Request mit höflichem User-Agent aus und dekodiert
// JSON in out.
func (c *Client) get(rawURL string, out any) error {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", fmt.Sprintf("neuro-news/1.0 (mailto:%s)", c.Config.OpenAlexMailto))

	c.Logger.Debug("Rufe OpenAlex API auf", zap.String("url", rawURL))
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openalex request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Shared Secret für die Cron-Trigger-Endpoints (Bearer-Token).
	CronSecret string `envconfig:"CRON_SECRET" required:"true"`

	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey  string `envconfig:"PUBMED_API_KEY"`

	EuropePMCBaseURL string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest"`
	OpenAlexBaseURL  string `envconfig:"OPENALEX_BASE_URL" default:"https://api.openalex.org"`
	OpenAlexMailto   string `envconfig:"OPENALEX_MAILTO" default:"noreply@example.com"`

	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `envconfig:"ANTHROPIC_MODEL" default:"claude-haiku-4-5-20251001"`

	// Such-Parameter für den Ingestion-Lauf.
	SearchQuery      string `envconfig:"SEARCH_QUERY" default:"\"Neurosurgery\"[MeSH] OR \"Neurosurgical Procedures\"[MeSH]"`
	SearchDays       int    `envconfig:"SEARCH_DAYS" default:"7"`
	SearchMaxResults int    `envconfig:"SEARCH_MAX_RESULTS" default:"200"`

	// Obergrenze an Artikeln pro Enrichment-Lauf (Zeitbudget).
	EnrichBatchSize int `envconfig:"ENRICH_BATCH_SIZE" default:"10"`

	FetchCronSchedule  string `envconfig:"FETCH_CRON_SCHEDULE" default:"0 6 * * *"`
	EnrichCronSchedule string `envconfig:"ENRICH_CRON_SCHEDULE" default:"30 6 * * *"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}

package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neuro-news/config"
	"neuro-news/models"
	"neuro-news/providers/openalex"
	"neuro-news/providers/pubmed"
)

// issnBackfillBatchSize ist die EFetch-Batch-Größe beim ISSN-Backfill.
const issnBackfillBatchSize = 100

// PubMedClient ist die vom Orchestrator benötigte PubMed-Schnittstelle.
type PubMedClient interface {
	SearchIDs(query string, days, maxResults int) ([]string, error)
	FetchRaw(pmids []string) ([]byte, error)
}

// CitationClient liefert Zitationszahlen pro PMID.
type CitationClient interface {
	CitationCounts(pmids []string) map[string]int
}

// ImpactFactorClient löst Journale in der Bibliometrie-Quelle auf.
type ImpactFactorClient interface {
	LookupByISSN(issn string) (*openalex.Source, error)
	SearchByName(name string) (*openalex.Source, error)
}

// RunResult ist das Ergebnis eines Batch-Laufs: Erfolgsflag, optionale
// Fehlermeldung und ein geordnetes, menschenlesbares Fortschrittslog.
type RunResult struct {
	OK          bool     `json:"ok"`
	Error       string   `json:"error,omitempty"`
	Log         []string `json:"log"`
	NewArticles int      `json:"new_articles,omitempty"`
	Enriched    int      `json:"enriched,omitempty"`
}

func (r *RunResult) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

func (r *RunResult) fail(stage string, err error) *RunResult {
	r.OK = false
	r.Error = fmt.Sprintf("%s: %v", stage, err)
	r.logf("Error in %s: %v", stage, err)
	return r
}

// IngestService orchestriert den Ingestion-Lauf: Suche, Fetch, Parse,
// Zitationszahlen, Persistenz, Journal-Sync und Impact-Factor-Auflösung.
// Alle externen Clients werden injiziert, damit Tests sie ersetzen können.
type IngestService struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *zap.Logger
	PubMed    PubMedClient
	Citations CitationClient
	OpenAlex  ImpactFactorClient
}

// NewIngestService erstellt eine neue Instanz des IngestService.
func NewIngestService(cfg *config.Config, db *gorm.DB, logger *zap.Logger,
	pm PubMedClient, cit CitationClient, oa ImpactFactorClient) *IngestService {
	return &IngestService{Config: cfg, DB: db, Logger: logger, PubMed: pm, Citations: cit, OpenAlex: oa}
}

// Run führt einen vollständigen Ingestion-Lauf aus. Harte Fehler in Suche,
// Fetch oder Artikel-Upsert brechen den Lauf ab; alles Weitere ist
// per-item-tolerant und wartet bei Misserfolg auf den nächsten Lauf.
func (s *IngestService) Run(ctx context.Context) *RunResult {
	res := &RunResult{OK: true}
	db := s.DB.WithContext(ctx)

	// search
	ids, err := s.PubMed.SearchIDs(s.Config.SearchQuery, s.Config.SearchDays, s.Config.SearchMaxResults)
	if err != nil {
		return res.fail("search", err)
	}
	res.logf("Found %d articles on PubMed", len(ids))
	if len(ids) == 0 {
		return res
	}

	// fetch
	raw, err := s.PubMed.FetchRaw(ids)
	if err != nil {
		return res.fail("fetch", err)
	}

	// parse
	articles := pubmed.ParseArticles(raw, s.Logger)
	res.logf("Parsed %d articles", len(articles))

	// count-citations
	var pmids []string
	for _, a := range articles {
		if a.PMID != "" {
			pmids = append(pmids, a.PMID)
		}
	}
	counts := s.Citations.CitationCounts(pmids)
	cited := 0
	for _, a := range articles {
		a.CitationCount = counts[a.PMID]
		if a.CitationCount > 0 {
			cited++
		}
	}
	res.logf("Citations found for %d articles", cited)

	// upsert-articles (ON CONFLICT (url) DO NOTHING: Re-Ingest derselben
	// PMID erzeugt nie ein Duplikat)
	var toInsert []*models.Article
	for _, a := range articles {
		if a.URL != "" {
			toInsert = append(toInsert, a)
		}
	}
	if len(toInsert) > 0 {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).Create(&toInsert)
		if result.Error != nil {
			return res.fail("upsert-articles", result.Error)
		}
		res.NewArticles = int(result.RowsAffected)
		res.logf("Saved %d new articles (%d duplicates skipped)", res.NewArticles, len(toInsert)-res.NewArticles)
	}

	// sync-journals
	if err := s.syncJournals(db); err != nil {
		s.Logger.Warn("Journal-Sync fehlgeschlagen", zap.Error(err))
		res.logf("Journal sync failed: %v", err)
	} else {
		res.logf("Synced journals from articles")
	}

	// resolve-impact-factors
	resolved, visited := s.resolveImpactFactors(db)
	res.logf("Updated IF for %d of %d journals", resolved, visited)

	// denormalize-impact-factors
	denorm := s.denormalizeImpactFactors(db)
	res.logf("Denormalized IF to %d articles", denorm)

	return res
}

// syncJournals legt pro Journal aus den Artikeln einen Journal-Record an
// (bestehende bleiben unberührt) und füllt anschließend leere Journal-ISSNs
// aus einem beliebigen Artikel des Journals nach.
func (s *IngestService) syncJournals(db *gorm.DB) error {
	if err := db.Exec(`
		INSERT INTO journals (journal_name, issn, created_at, updated_at)
		SELECT DISTINCT journal, issn, NOW(), NOW() FROM articles WHERE journal <> ''
		ON CONFLICT (journal_name) DO NOTHING
	`).Error; err != nil {
		return err
	}

	// backfill-journal-issn: eine vorhandene ISSN wird nie überschrieben
	return db.Exec(`
		UPDATE journals SET issn = (
			SELECT a.issn FROM articles a
			WHERE a.journal = journals.journal_name AND a.issn <> ''
			LIMIT 1
		)
		WHERE (issn IS NULL OR issn = '') AND journal_name IN (
			SELECT journal FROM articles WHERE issn <> ''
		)
	`).Error
}

// resolveImpactFactors besucht jedes Journal ohne Impact Factor genau einmal
// pro Lauf: erst ISSN-Lookup, dann Namenssuche. Fehlschläge sind per-item
// und lassen das Journal für den nächsten Lauf unaufgelöst.
func (s *IngestService) resolveImpactFactors(db *gorm.DB) (resolved, visited int) {
	var journals []models.Journal
	if err := db.Where("impact_factor IS NULL").Find(&journals).Error; err != nil {
		s.Logger.Warn("Journale ohne IF konnten nicht geladen werden", zap.Error(err))
		return 0, 0
	}

	for _, j := range journals {
		visited++
		log := s.Logger.With(zap.String("journal", j.JournalName))

		var source *openalex.Source
		if j.ISSN != "" {
			src, err := s.OpenAlex.LookupByISSN(j.ISSN)
			if err != nil {
				log.Debug("ISSN-Lookup ohne Treffer", zap.String("issn", j.ISSN), zap.Error(err))
			} else {
				source = src
			}
		}
		if source == nil {
			src, err := s.OpenAlex.SearchByName(j.JournalName)
			if err != nil {
				log.Warn("Journal in OpenAlex nicht gefunden", zap.Error(err))
				continue
			}
			source = src
		}

		// openalex_id und Zeitstempel werden auch gesetzt, wenn die Quelle
		// (noch) keinen brauchbaren IF-Wert liefert.
		updates := map[string]any{
			"openalex_id":   source.ID,
			"if_updated_at": time.Now(),
		}
		if ifValue := openalex.ExtractIF(source); ifValue != nil {
			updates["impact_factor"] = *ifValue
			resolved++
			log.Info("Impact Factor aufgelöst", zap.Float64("impact_factor", *ifValue))
		} else {
			log.Info("Keine IF-Daten in OpenAlex")
		}

		if err := db.Model(&models.Journal{}).Where("id = ?", j.ID).Updates(updates).Error; err != nil {
			log.Warn("Journal-Update fehlgeschlagen", zap.Error(err))
		}
	}
	return resolved, visited
}

// denormalizeImpactFactors kopiert aufgelöste Journal-IFs auf Artikel ohne
// eigenen IF. Append-only: ein bereits gesetzter Wert wird nie überschrieben.
func (s *IngestService) denormalizeImpactFactors(db *gorm.DB) int {
	result := db.Exec(`
		UPDATE articles SET impact_factor = (
			SELECT j.impact_factor FROM journals j
			WHERE j.journal_name = articles.journal AND j.impact_factor IS NOT NULL
		)
		WHERE impact_factor IS NULL AND journal IN (
			SELECT journal_name FROM journals WHERE impact_factor IS NOT NULL
		)
	`)
	if result.Error != nil {
		s.Logger.Warn("IF-Denormalisierung fehlgeschlagen", zap.Error(result.Error))
		return 0
	}
	return int(result.RowsAffected)
}

// BackfillISSNs holt für bestehende Artikel ohne ISSN die ISSN per EFetch
// nach, in Batches von 100. Ein fehlgeschlagener Batch wird geloggt und
// übersprungen.
func (s *IngestService) BackfillISSNs(ctx context.Context) *RunResult {
	res := &RunResult{OK: true}
	db := s.DB.WithContext(ctx)

	var pmids []string
	if err := db.Model(&models.Article{}).
		Where("(issn IS NULL OR issn = '') AND pmid <> ''").
		Pluck("pmid", &pmids).Error; err != nil {
		return res.fail("select-missing-issn", err)
	}
	if len(pmids) == 0 {
		res.logf("All articles already have ISSNs")
		return res
	}
	res.logf("Found %d articles without ISSN", len(pmids))

	updated := 0
	for i := 0; i < len(pmids); i += issnBackfillBatchSize {
		end := i + issnBackfillBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		batch := pmids[i:end]

		raw, err := s.PubMed.FetchRaw(batch)
		if err != nil {
			s.Logger.Warn("ISSN-Backfill-Batch fehlgeschlagen", zap.Int("batch_start", i), zap.Error(err))
			res.logf("Batch %d failed: %v", i/issnBackfillBatchSize+1, err)
			continue
		}

		for pmid, issn := range pubmed.ParseISSNs(raw, s.Logger) {
			if err := db.Model(&models.Article{}).
				Where("pmid = ?", pmid).
				Update("issn", issn).Error; err != nil {
				s.Logger.Warn("ISSN-Update fehlgeschlagen", zap.String("pmid", pmid), zap.Error(err))
				continue
			}
			updated++
		}
	}

	res.logf("Updated ISSN for %d of %d articles", updated, len(pmids))
	return res
}

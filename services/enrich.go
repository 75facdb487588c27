package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"neuro-news/config"
	"neuro-news/models"
)

// systemPrompt bindet das Modell strikt an Titel und Abstract.
const systemPrompt = `You are analyzing a scientific article. You must ONLY use information that is explicitly stated in the title and abstract provided.

CRITICAL RULES:
- If information is not explicitly mentioned, respond with 'Unknown'
- Do NOT infer, assume, or extrapolate beyond what is written
- Do NOT use your general medical knowledge to fill in gaps
- Do NOT make educated guesses
- For categories, if unclear choose the most conservative option
- For each field, if you cannot determine the answer with 100% confidence from the text provided, mark it as 'Unknown' or 'Not specified'

Always respond with valid JSON and nothing else.`

// userPromptTemplate trägt Titel, Journal, Abstract und das Zielschema.
const userPromptTemplate = `Analyze ONLY the title and abstract below. Do not use any outside knowledge.

Title: %s
Journal: %s
Abstract: %s

Based STRICTLY on the text above, generate the following in English:

1. "summary": A short summary (2-3 sentences) using ONLY facts stated in the abstract. Do not add context or background not present in the text.
2. "importance": Why is this important based on what the authors explicitly state? (1-2 sentences). If the abstract does not state importance, write "Not specified in abstract".
3. "news_value": A score from 1-10 (integer). ONLY score highly (7+) if the abstract explicitly reports significant/novel results. If the abstract is vague or results are unclear, score conservatively (1-4). 10 = abstract explicitly describes paradigm-shifting results; 1 = routine/incremental or unclear findings.
4. "subspecialty": Choose exactly one from: "Oncology", "Vascular", "Spine", "Functional", "Trauma", "Pediatric", "Skull base", "General". Choose "General" if the subspecialty is not clearly identifiable from the title and abstract.
5. "article_type": Choose exactly one from: "Clinical trial", "Case report", "Review", "Technical note", "Outcomes study", "Basic research". Choose based on what the abstract explicitly describes (e.g. "randomized trial", "case series", "systematic review"). If unclear, choose "Outcomes study" as default.
6. "clinical_relevance": Choose exactly one from: "Practice-changing", "Important update", "Background knowledge", "Research only". Use "Practice-changing" ONLY if the abstract explicitly states results that would change clinical practice. Default to "Background knowledge" if uncertain.

Respond ONLY with JSON in this exact format:
{"summary": "...", "importance": "...", "news_value": N, "subspecialty": "...", "article_type": "...", "clinical_relevance": "..."}`

// Geschlossene Wertemengen der Klassifikationsfelder. Jede Antwort
// außerhalb dieser Mengen ist ein Schema-Verstoß.
var (
	validSubspecialties = map[string]bool{
		"Oncology": true, "Vascular": true, "Spine": true, "Functional": true,
		"Trauma": true, "Pediatric": true, "Skull base": true, "General": true,
	}
	validArticleTypes = map[string]bool{
		"Clinical trial": true, "Case report": true, "Review": true,
		"Technical note": true, "Outcomes study": true, "Basic research": true,
	}
	validClinicalRelevance = map[string]bool{
		"Practice-changing": true, "Important update": true,
		"Background knowledge": true, "Research only": true,
	}
)

// Enrichment ist das validierte Ergebnis eines Enrichment-Aufrufs.
type Enrichment struct {
	Summary           string `json:"summary"`
	Importance        string `json:"importance"`
	NewsValue         int    `json:"news_value"`
	Subspecialty      string `json:"subspecialty"`
	ArticleType       string `json:"article_type"`
	ClinicalRelevance string `json:"clinical_relevance"`
}

// Completer ist die Text-Completion-Schnittstelle des Enrichment-Laufs.
type Completer interface {
	Complete(system, prompt string) (string, error)
}

// EnrichService orchestriert den Enrichment-Lauf über unangereicherte
// Artikel.
type EnrichService struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
	LLM    Completer
}

// NewEnrichService erstellt eine neue Instanz des EnrichService.
func NewEnrichService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, llm Completer) *EnrichService {
	return &EnrichService{Config: cfg, DB: db, Logger: logger, LLM: llm}
}

// Run wählt bis zu EnrichBatchSize Artikel ohne Summary aber mit Abstract
// (älteste zuerst) und reichert sie an. Fehler eines Artikels werden geloggt
// und übersprungen; der Artikel wird beim nächsten Lauf erneut versucht.
func (s *EnrichService) Run(ctx context.Context) *RunResult {
	res := &RunResult{OK: true}
	db := s.DB.WithContext(ctx)

	var articles []models.Article
	if err := db.Select("id", "title", "journal", "abstract").
		Where("summary = '' AND abstract <> ''").
		Order("id ASC").
		Limit(s.Config.EnrichBatchSize).
		Find(&articles).Error; err != nil {
		return res.fail("select-unenriched", err)
	}
	res.logf("Found %d articles to enrich", len(articles))

	enriched := 0
	for _, a := range articles {
		log := s.Logger.With(zap.Uint("article_id", a.ID))

		data, raw, err := s.enrichOne(&a)
		if err != nil {
			log.Warn("Enrichment fehlgeschlagen, Artikel wird übersprungen", zap.Error(err))
			res.logf("Article %d failed: %v", a.ID, err)
			continue
		}

		updates := map[string]any{
			"summary":            data.Summary,
			"importance":         data.Importance,
			"news_value":         data.NewsValue,
			"subspecialty":       data.Subspecialty,
			"article_type":       data.ArticleType,
			"clinical_relevance": data.ClinicalRelevance,
			"enrichment_raw":     datatypes.JSON(raw),
		}
		if err := db.Model(&models.Article{}).Where("id = ?", a.ID).Updates(updates).Error; err != nil {
			log.Warn("Enrichment-Update fehlgeschlagen", zap.Error(err))
			res.logf("Article %d failed: %v", a.ID, err)
			continue
		}

		enriched++
		res.logf("Article %d: %s | %s | %s | NV:%d",
			a.ID, data.Subspecialty, data.ArticleType, data.ClinicalRelevance, data.NewsValue)
	}

	res.Enriched = enriched
	res.logf("Enriched %d of %d articles", enriched, len(articles))
	return res
}

// enrichOne ruft das Completion-Modell für einen Artikel auf und liefert
// das validierte Ergebnis plus das rohe JSON.
func (s *EnrichService) enrichOne(a *models.Article) (*Enrichment, []byte, error) {
	prompt := fmt.Sprintf(userPromptTemplate, a.Title, a.Journal, a.Abstract)
	resp, err := s.LLM.Complete(systemPrompt, prompt)
	if err != nil {
		return nil, nil, err
	}
	return ParseEnrichment(resp)
}

// ParseEnrichment behandelt die Modellantwort als unvertrauten String:
// Code-Fences werden entfernt, der Rest als ein JSON-Objekt geparst und
// gegen die geschlossenen Wertemengen validiert. news_value wird auf die
// nächste Ganzzahl gerundet.
func ParseEnrichment(resp string) (*Enrichment, []byte, error) {
	raw := strings.TrimSpace(resp)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}

	var decoded struct {
		Summary           string  `json:"summary"`
		Importance        string  `json:"importance"`
		NewsValue         float64 `json:"news_value"`
		Subspecialty      string  `json:"subspecialty"`
		ArticleType       string  `json:"article_type"`
		ClinicalRelevance string  `json:"clinical_relevance"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, nil, fmt.Errorf("invalid enrichment JSON: %w", err)
	}

	e := &Enrichment{
		Summary:           decoded.Summary,
		Importance:        decoded.Importance,
		NewsValue:         int(math.Round(decoded.NewsValue)),
		Subspecialty:      decoded.Subspecialty,
		ArticleType:       decoded.ArticleType,
		ClinicalRelevance: decoded.ClinicalRelevance,
	}

	if e.Summary == "" {
		return nil, nil, fmt.Errorf("enrichment missing summary")
	}
	if e.NewsValue < 1 || e.NewsValue > 10 {
		return nil, nil, fmt.Errorf("news_value %d outside 1-10", e.NewsValue)
	}
	if !validSubspecialties[e.Subspecialty] {
		return nil, nil, fmt.Errorf("invalid subspecialty %q", e.Subspecialty)
	}
	if !validArticleTypes[e.ArticleType] {
		return nil, nil, fmt.Errorf("invalid article_type %q", e.ArticleType)
	}
	if !validClinicalRelevance[e.ClinicalRelevance] {
		return nil, nil, fmt.Errorf("invalid clinical_relevance %q", e.ClinicalRelevance)
	}

	validated, err := json.Marshal(e)
	if err != nil {
		return nil, nil, err
	}
	return e, validated, nil
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article repräsentiert einen normalisierten PubMed-Artikel samt
// Anreicherungsfeldern. Die URL ist der natürliche Unique-Key: ein erneuter
// Ingest derselben PMID erzeugt nie eine zweite Zeile.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PMID        string `json:"pmid" gorm:"column:pmid;index"`
	Title       string `json:"title" gorm:"type:text"`
	Authors     string `json:"authors"`
	AuthorsFull string `json:"authors_full" gorm:"type:text"`
	Journal     string `json:"journal" gorm:"index"`
	PubDate     string `json:"pub_date"`
	Abstract    string `json:"abstract,omitempty" gorm:"type:text"`
	DOI         string `json:"doi,omitempty" gorm:"column:doi"`
	PubTypes    string `json:"pub_types,omitempty"`
	MeshTerms   string `json:"mesh_terms,omitempty" gorm:"type:text"`
	Affiliation string `json:"affiliation,omitempty" gorm:"type:text"`
	Grants      string `json:"grants,omitempty"`
	CoiStmt     string `json:"coi_statement,omitempty" gorm:"column:coi_statement;type:text"`

	ISSN         string `json:"issn,omitempty" gorm:"column:issn"`
	PMCID        string `json:"pmc_id,omitempty" gorm:"column:pmc_id"`
	IsOpenAccess int    `json:"is_open_access"`

	CitationCount int      `json:"citation_count" gorm:"default:0"`
	ImpactFactor  *float64 `json:"impact_factor,omitempty"`

	URL string `json:"url" gorm:"uniqueIndex;not null"`

	// Ergebnis des Enrichment-Laufs; leerer Summary = noch nicht angereichert.
	Summary           string         `json:"summary" gorm:"type:text;default:''"`
	Importance        string         `json:"importance" gorm:"type:text;default:''"`
	NewsValue         int            `json:"news_value" gorm:"default:0"`
	Subspecialty      string         `json:"subspecialty" gorm:"index;default:''"`
	ArticleType       string         `json:"article_type" gorm:"index;default:''"`
	ClinicalRelevance string         `json:"clinical_relevance" gorm:"default:''"`
	EnrichmentRaw     datatypes.JSON `json:"enrichment_raw,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (Article) TableName() string {
	return "articles"
}

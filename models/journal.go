package models

import "time"

// Journal hält pro Zeitschrift den aufgelösten Impact Factor aus OpenAlex.
// ImpactFactor bleibt NULL, solange die Auflösung noch aussteht; solche
// Journale werden bei jedem Lauf erneut versucht.
type Journal struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JournalName  string     `json:"journal_name" gorm:"uniqueIndex;not null"`
	ISSN         string     `json:"issn,omitempty" gorm:"column:issn"`
	ImpactFactor *float64   `json:"impact_factor,omitempty"`
	OpenAlexID   string     `json:"openalex_id,omitempty" gorm:"column:openalex_id"`
	IFUpdatedAt  *time.Time `json:"if_updated_at,omitempty" gorm:"column:if_updated_at"`
}

// TableName gibt explizit den Tabellennamen an.
func (Journal) TableName() string {
	return "journals"
}

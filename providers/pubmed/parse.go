package pubmed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"neuro-news/models"
)

// fieldDefault ist die zentrale Default-Policy für fehlende Quellfelder.
// Jede Extraktionsregel greift bei leerem Ergebnis auf genau diese Tabelle
// zurück, damit Tests die Defaults einzeln prüfen können.
var fieldDefault = map[string]string{
	"title":         "N/A",
	"journal":       "N/A",
	"pub_date":      "N/A",
	"grants":        "Unknown",
	"coi_statement": "Unknown",
}

func defaultFor(field, value string) string {
	if value != "" {
		return value
	}
	return fieldDefault[field]
}

// maxAuthorsShort ist die Anzahl Namen in der Kurzform, danach "et al.".
const maxAuthorsShort = 3

// maxMeshTerms begrenzt die Anzahl übernommener MeSH-Begriffe.
const maxMeshTerms = 10

// ParseArticles zerlegt ein rohes EFetch-XML-Dokument in normalisierte
// Article-Records, in Dokumentreihenfolge. Jeder PubmedArticle-Eintrag wird
// unabhängig dekodiert: ein fehlerhafter Eintrag liefert einen
// Best-Effort-Teilrecord und bricht den Batch nicht ab.
func ParseArticles(raw []byte, logger *zap.Logger) []*models.Article {
	var articles []*models.Article

	d := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "PubmedArticle" {
			continue
		}

		// Bei einem Decode-Fehler bleibt entry teilbefüllt; die Feldregeln
		// liefern dann ihre dokumentierten Defaults (Best-Effort-Teilrecord).
		var entry ArticleEntry
		if err := d.DecodeElement(&entry, &se); err != nil {
			logger.Warn("PubmedArticle-Eintrag konnte nicht dekodiert werden, Teilrecord wird übernommen", zap.Error(err))
		}
		articles = append(articles, mapEntry(&entry))
	}

	return articles
}

// ParseISSNs extrahiert aus einem EFetch-XML-Dokument nur die ISSN pro PMID
// (für den Backfill bestehender Artikel). Einträge ohne PMID oder ISSN
// werden übersprungen.
func ParseISSNs(raw []byte, logger *zap.Logger) map[string]string {
	results := map[string]string{}
	for _, a := range ParseArticles(raw, logger) {
		if a.PMID != "" && a.ISSN != "" {
			results[a.PMID] = a.ISSN
		}
	}
	return results
}

// mapEntry wendet alle Feldregeln auf einen dekodierten Eintrag an.
func mapEntry(entry *ArticleEntry) *models.Article {
	citation := &entry.MedlineCitation
	article := &citation.Article

	pmid := strings.TrimSpace(citation.PMID)

	authorsShort, authorsFull, affiliation := extractAuthors(article.Authors)

	a := &models.Article{
		PMID:         pmid,
		Title:        defaultFor("title", strings.TrimSpace(string(article.Title))),
		Authors:      authorsShort,
		AuthorsFull:  authorsFull,
		Affiliation:  affiliation,
		Journal:      defaultFor("journal", strings.TrimSpace(article.Journal.Title)),
		ISSN:         extractISSN(article.Journal.ISSNs),
		PubDate:      extractPubDate(&article.Journal.PubDate),
		DOI:          extractDOI(article.ELocationIDs, entry.PubmedData.ArticleIDs),
		PubTypes:     extractPubTypes(article.PubTypes),
		MeshTerms:    extractMeshTerms(citation.MeshHeadings),
		Grants:       extractGrants(article.Grants),
		CoiStmt:      defaultFor("coi_statement", strings.TrimSpace(string(citation.CoiStatement))),
		Abstract:     extractAbstract(article.AbstractTexts),
		PMCID:        extractArticleID(entry.PubmedData.ArticleIDs, "pmc"),
		IsOpenAccess: 0,
	}
	if a.PMCID != "" {
		a.IsOpenAccess = 1
	}
	if pmid != "" {
		a.URL = fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid)
	}
	return a
}

// extractAuthors liefert Kurzform (max. 3 Namen + "et al."), Langform und
// die Affiliation des ersten Autors, der eine hat.
func extractAuthors(authors []AuthorNode) (short, full, affiliation string) {
	var names []string
	for _, author := range authors {
		last := strings.TrimSpace(author.LastName)
		if last == "" {
			continue
		}
		names = append(names, strings.TrimSpace(last+" "+strings.TrimSpace(author.Initials)))
		if affiliation == "" {
			for _, aff := range author.Affiliations {
				if s := strings.TrimSpace(string(aff)); s != "" {
					affiliation = s
					break
				}
			}
		}
	}

	full = strings.Join(names, ", ")
	if len(names) > maxAuthorsShort {
		short = strings.Join(names[:maxAuthorsShort], ", ") + " et al."
	} else {
		short = full
	}
	return short, full, affiliation
}

// extractISSN bevorzugt die elektronische ISSN, fällt auf Print zurück.
func extractISSN(issns []ISSN) string {
	for _, issnType := range []string{"Electronic", "Print"} {
		for _, issn := range issns {
			if issn.IssnType == issnType && strings.TrimSpace(issn.Value) != "" {
				return strings.TrimSpace(issn.Value)
			}
		}
	}
	return ""
}

// extractPubDate fügt vorhandene Year/Month/Day-Teile zusammen, sonst
// MedlineDate, sonst Default.
func extractPubDate(pd *PubDate) string {
	var parts []string
	for _, p := range []string{pd.Year, pd.Month, pd.Day} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if strings.TrimSpace(pd.MedlineDate) != "" {
		return strings.TrimSpace(pd.MedlineDate)
	}
	return fieldDefault["pub_date"]
}

// extractDOI nimmt die ELocationID mit EIdType "doi", sonst den
// ArticleIdList-Eintrag mit IdType "doi".
func extractDOI(elocations []ELocationID, articleIDs []ArticleID) string {
	for _, el := range elocations {
		if el.EIdType == "doi" && strings.TrimSpace(el.Value) != "" {
			return strings.TrimSpace(el.Value)
		}
	}
	return extractArticleID(articleIDs, "doi")
}

// extractArticleID sucht den ersten ArticleId-Eintrag des gegebenen Typs.
func extractArticleID(articleIDs []ArticleID, idType string) string {
	for _, aid := range articleIDs {
		if aid.IdType == idType && strings.TrimSpace(aid.Value) != "" {
			return strings.TrimSpace(aid.Value)
		}
	}
	return ""
}

// extractPubTypes joint alle Publikationstypen außer dem nichtssagenden
// Standardtyp "Journal Article".
func extractPubTypes(pubTypes []string) string {
	var kept []string
	for _, pt := range pubTypes {
		pt = strings.TrimSpace(pt)
		if pt != "" && pt != "Journal Article" {
			kept = append(kept, pt)
		}
	}
	return strings.Join(kept, ", ")
}

// extractMeshTerms markiert Major-Topic-Begriffe mit "*", sortiert sie vor
// die übrigen (innerhalb der Gruppen alphabetisch) und begrenzt auf 10.
func extractMeshTerms(headings []MeshHeading) string {
	var terms []string
	for _, h := range headings {
		name := strings.TrimSpace(h.Descriptor.Value)
		if name == "" {
			continue
		}
		if h.Descriptor.MajorTopicYN == "Y" {
			terms = append(terms, "*"+name)
		} else {
			terms = append(terms, name)
		}
	}

	sort.Slice(terms, func(i, j int) bool {
		mi := strings.HasPrefix(terms[i], "*")
		mj := strings.HasPrefix(terms[j], "*")
		if mi != mj {
			return mi
		}
		return terms[i] < terms[j]
	})

	if len(terms) > maxMeshTerms {
		terms = terms[:maxMeshTerms]
	}
	return strings.Join(terms, ", ")
}

// extractGrants dedupliziert Förderinstitutionen in Erstnennungsreihenfolge.
func extractGrants(grants []Grant) string {
	var agencies []string
	seen := map[string]bool{}
	for _, g := range grants {
		agency := strings.TrimSpace(g.Agency)
		if agency == "" || seen[agency] {
			continue
		}
		seen[agency] = true
		agencies = append(agencies, agency)
	}
	if len(agencies) == 0 {
		return fieldDefault["grants"]
	}
	return strings.Join(agencies, ", ")
}

// extractAbstract rendert gelabelte Segmente als "Label: text" und trennt
// Segmente durch eine Leerzeile.
func extractAbstract(texts []AbstractText) string {
	var parts []string
	for _, t := range texts {
		text := strings.TrimSpace(t.Text)
		if t.Label != "" {
			parts = append(parts, t.Label+": "+text)
		} else if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

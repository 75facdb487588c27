// Package pubmed enthält die Logik für die Interaktion mit der PubMed E-Utilities API.
package pubmed

import (
	"encoding/xml"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ESearchResponse repräsentiert die JSON-Antwort von ESearch für die ID-Suche.
type ESearchResponse struct {
	ESearchResult struct {
		IdList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// FlatText sammelt beim Unmarshalling rekursiv allen Text eines Elements ein,
// inklusive Text unter Markup-Kindelementen (<i>, <sup>, ...), der sonst
// verloren ginge. Das Ergebnis wird NFC-normalisiert.
type FlatText string

// UnmarshalXML implementiert xml.Unmarshaler.
func (t *FlatText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	text, err := collectText(d)
	if err != nil {
		return err
	}
	*t = FlatText(text)
	return nil
}

// collectText liest Tokens bis zum schließenden Element des bereits
// konsumierten Start-Elements und konkateniert alle CharData.
func collectText(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(v)
		}
	}
	return norm.NFC.String(sb.String()), nil
}

// ArticleSet repräsentiert das gesamte XML-Dokument von EFetch.
type ArticleSet struct {
	XMLName  xml.Name       `xml:"PubmedArticleSet"`
	Articles []ArticleEntry `xml:"PubmedArticle"`
}

// ArticleEntry repräsentiert einen einzelnen Artikel in der EFetch-Antwort.
type ArticleEntry struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
	PubmedData      PubmedData      `xml:"PubmedData"`
}

// MedlineCitation bündelt die Citation-Ebene eines Artikels.
type MedlineCitation struct {
	PMID         string        `xml:"PMID"`
	Article      ArticleNode   `xml:"Article"`
	MeshHeadings []MeshHeading `xml:"MeshHeadingList>MeshHeading"`
	CoiStatement FlatText      `xml:"CoiStatement"`
}

// ArticleNode repräsentiert das Article-Element. Alle wiederholbaren Elemente
// sind Slices: encoding/xml füllt sie unabhängig davon, ob die Quelle ein
// Singleton oder eine Sequenz liefert.
type ArticleNode struct {
	Title         FlatText       `xml:"ArticleTitle"`
	Journal       JournalNode    `xml:"Journal"`
	Authors       []AuthorNode   `xml:"AuthorList>Author"`
	ELocationIDs  []ELocationID  `xml:"ELocationID"`
	PubTypes      []string       `xml:"PublicationTypeList>PublicationType"`
	AbstractTexts []AbstractText `xml:"Abstract>AbstractText"`
	Grants        []Grant        `xml:"GrantList>Grant"`
}

// JournalNode repräsentiert die Journal-Metadaten eines Artikels.
type JournalNode struct {
	Title   string  `xml:"Title"`
	ISSNs   []ISSN  `xml:"ISSN"`
	PubDate PubDate `xml:"JournalIssue>PubDate"`
}

// ISSN trägt den Typ (Electronic/Print) als Attribut.
type ISSN struct {
	IssnType string `xml:"IssnType,attr"`
	Value    string `xml:",chardata"`
}

// PubDate enthält entweder Year/Month/Day-Komponenten oder ein
// MedlineDate-Freitextdatum.
type PubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

// AuthorNode repräsentiert einen Autor samt Affiliationen.
type AuthorNode struct {
	LastName     string     `xml:"LastName"`
	ForeName     string     `xml:"ForeName"`
	Initials     string     `xml:"Initials"`
	Affiliations []FlatText `xml:"AffiliationInfo>Affiliation"`
}

// ELocationID repräsentiert eine E-Location-Kennung (z.B. DOI).
type ELocationID struct {
	EIdType string `xml:"EIdType,attr"`
	Value   string `xml:",chardata"`
}

// MeshHeading repräsentiert ein Subject Heading mit Major-Topic-Markierung.
type MeshHeading struct {
	Descriptor DescriptorName `xml:"DescriptorName"`
}

// DescriptorName trägt den Begriff und das MajorTopicYN-Attribut.
type DescriptorName struct {
	MajorTopicYN string `xml:"MajorTopicYN,attr"`
	Value        string `xml:",chardata"`
}

// Grant repräsentiert einen Förder-Eintrag.
type Grant struct {
	GrantID string `xml:"GrantID"`
	Agency  string `xml:"Agency"`
}

// AbstractText ist ein Abstract-Segment mit optionalem Struktur-Label
// (z.B. "METHODS"). Der Text wird rekursiv eingesammelt, damit Markup
// innerhalb eines Satzes keinen Inhalt verschluckt.
type AbstractText struct {
	Label string
	Text  string
}

// UnmarshalXML implementiert xml.Unmarshaler.
func (a *AbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	text, err := collectText(d)
	if err != nil {
		return err
	}
	a.Text = text
	return nil
}

// PubmedData enthält die ArticleId-Liste (DOI-Fallback, PMC-ID).
type PubmedData struct {
	ArticleIDs []ArticleID `xml:"ArticleIdList>ArticleId"`
}

// ArticleID repräsentiert eine Kennung aus der ArticleIdList.
type ArticleID struct {
	IdType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

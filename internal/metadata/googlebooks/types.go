package googlebooks

import "github.com/goccy/go-json"

// Volume is one search result mapped from the Google Books volume resource.
// Fields the API omits are left at their zero value.
type Volume struct {
	ID            string
	Title         string
	Authors       []string
	Publisher     string
	PublishedDate string // As returned: "2005", "2005-06" or "2005-06-01"
	PublishedYear int    // 0 when the date has no parseable year
	Description   string // Markdown
	ISBN10        string
	ISBN13        string
	PageCount     int
	Thumbnail     string
}

// Raw API response types (internal)

// Items stay raw so one badly typed item cannot fail the whole page.
type rawVolumeList struct {
	Items []json.RawMessage `json:"items"`
}

type rawVolume struct {
	ID         string        `json:"id"`
	VolumeInfo rawVolumeInfo `json:"volumeInfo"`
}

type rawVolumeInfo struct {
	Title               string          `json:"title"`
	Subtitle            string          `json:"subtitle"`
	Authors             []string        `json:"authors"`
	Publisher           string          `json:"publisher"`
	PublishedDate       string          `json:"publishedDate"`
	Description         string          `json:"description"`
	IndustryIdentifiers []rawIdentifier `json:"industryIdentifiers"`
	PageCount           int             `json:"pageCount"`
	ImageLinks          *rawImageLinks  `json:"imageLinks"`
}

type rawIdentifier struct {
	Type       string `json:"type"` // ISBN_10, ISBN_13, ISSN, OTHER
	Identifier string `json:"identifier"`
}

type rawImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

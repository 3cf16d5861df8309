package googlebooks

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// SearchByTitle returns volumes whose title matches the free-text query,
// in the API's relevance order. An unmatched query yields an empty slice.
func (c *Client) SearchByTitle(ctx context.Context, title string) ([]Volume, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return []Volume{}, nil
	}

	query := url.Values{}
	query.Set("q", "intitle:"+title)
	query.Set("maxResults", strconv.Itoa(c.maxResults))
	query.Set("printType", "books")

	body, err := c.doRequest(ctx, "/volumes", query)
	if err != nil {
		return nil, wrapError("search", title, err)
	}

	var resp rawVolumeList
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, wrapError("search", title, fmt.Errorf("parse response: %w", err))
	}

	volumes := make([]Volume, 0, len(resp.Items))
	for i, item := range resp.Items {
		raw, ok := decodeVolume(item)
		if !ok {
			c.logger.Warn("skipping undecodable googlebooks item", "q", title, "index", i)
			continue
		}
		volumes = append(volumes, mapVolume(raw))
	}
	return volumes, nil
}

// decodeVolume decodes one result item. A field of the wrong type is left at
// its zero value rather than discarding the item; only an item that is not
// a JSON object is rejected.
func decodeVolume(item json.RawMessage) (*rawVolume, bool) {
	var raw rawVolume
	if err := json.Unmarshal(item, &raw); err == nil {
		return &raw, true
	}
	raw = rawVolume{}

	var loose struct {
		ID         json.RawMessage            `json:"id"`
		VolumeInfo map[string]json.RawMessage `json:"volumeInfo"`
	}
	if err := json.Unmarshal(item, &loose); err != nil {
		var fields map[string]json.RawMessage
		if json.Unmarshal(item, &fields) != nil {
			return nil, false
		}
		// volumeInfo itself is malformed; keep the id only.
		decodeField(fields["id"], &raw.ID)
		return &raw, true
	}

	decodeField(loose.ID, &raw.ID)
	info := &raw.VolumeInfo
	decodeField(loose.VolumeInfo["title"], &info.Title)
	decodeField(loose.VolumeInfo["subtitle"], &info.Subtitle)
	decodeField(loose.VolumeInfo["authors"], &info.Authors)
	decodeField(loose.VolumeInfo["publisher"], &info.Publisher)
	decodeField(loose.VolumeInfo["publishedDate"], &info.PublishedDate)
	decodeField(loose.VolumeInfo["description"], &info.Description)
	decodeField(loose.VolumeInfo["pageCount"], &info.PageCount)
	decodeField(loose.VolumeInfo["imageLinks"], &info.ImageLinks)
	decodeIdentifiers(loose.VolumeInfo["industryIdentifiers"], &info.IndustryIdentifiers)
	return &raw, true
}

// decodeField unmarshals data into dst, resetting dst on a type mismatch.
func decodeField[T any](data json.RawMessage, dst *T) {
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var zero T
		*dst = zero
	}
}

// decodeIdentifiers keeps the well-formed entries of industryIdentifiers.
func decodeIdentifiers(data json.RawMessage, dst *[]rawIdentifier) {
	var entries []json.RawMessage
	decodeField(data, &entries)
	for _, e := range entries {
		var id rawIdentifier
		if json.Unmarshal(e, &id) == nil {
			*dst = append(*dst, id)
		}
	}
}

func mapVolume(raw *rawVolume) Volume {
	info := &raw.VolumeInfo
	v := Volume{
		ID:            raw.ID,
		Title:         strings.TrimSpace(info.Title),
		Authors:       cleanAuthors(info.Authors),
		Publisher:     strings.TrimSpace(info.Publisher),
		PublishedDate: info.PublishedDate,
		PublishedYear: parseYear(info.PublishedDate),
		Description:   descriptionToMarkdown(info.Description),
		PageCount:     info.PageCount,
	}

	for _, id := range info.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			if v.ISBN10 == "" {
				v.ISBN10 = strings.TrimSpace(id.Identifier)
			}
		case "ISBN_13":
			if v.ISBN13 == "" {
				v.ISBN13 = strings.TrimSpace(id.Identifier)
			}
		}
	}

	if info.ImageLinks != nil {
		thumb := info.ImageLinks.Thumbnail
		if thumb == "" {
			thumb = info.ImageLinks.SmallThumbnail
		}
		v.Thumbnail = secureURL(thumb)
	}

	return v
}

func cleanAuthors(raw []string) []string {
	authors := make([]string, 0, len(raw))
	for _, a := range raw {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

// parseYear extracts the leading four-digit year from a publishedDate.
func parseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0
	}
	return year
}

// secureURL upgrades the http thumbnail links the API returns to https.
func secureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

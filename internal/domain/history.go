package domain

import "math"

// ReadingStatus is the state of a book on a user's shelf.
type ReadingStatus string

const (
	StatusToRead    ReadingStatus = "to_read"
	StatusReading   ReadingStatus = "reading"
	StatusRead      ReadingStatus = "read"
	StatusAbandoned ReadingStatus = "abandoned"
)

// IsValid checks if the status is a recognized value.
func (s ReadingStatus) IsValid() bool {
	switch s {
	case StatusToRead, StatusReading, StatusRead, StatusAbandoned:
		return true
	default:
		return false
	}
}

// MaxRating is the top of the rating scale.
const MaxRating = 5.0

// ValidRating reports whether r is on the half-star scale from 0 to 5.
func ValidRating(r float64) bool {
	if math.IsNaN(r) || r < 0 || r > MaxRating {
		return false
	}
	return math.Mod(r*2, 1) == 0
}

// ReadingHistoryEntry links a user to a catalog book with a reading status.
type ReadingHistoryEntry struct {
	Entity
	UserID string        `json:"user_id"`
	BookID string        `json:"book_id"`
	Status ReadingStatus `json:"status"`
	Rating *float64      `json:"rating,omitempty"`

	// Title is loaded from the referenced book on read; it is not stored on the entry.
	Title string `json:"title,omitempty"`
}

// IsPositiveSignal reports whether the entry is a finished book rated 4 stars or more.
func (e *ReadingHistoryEntry) IsPositiveSignal() bool {
	return e.Status == StatusRead && e.Rating != nil && *e.Rating >= 4
}

package domain

// Pace is the reading pace chosen during onboarding.
type Pace string

const (
	PaceSlow Pace = "slow"
	PaceFast Pace = "fast"
)

// IsValid checks if the pace is a recognized value.
func (p Pace) IsValid() bool {
	return p == PaceSlow || p == PaceFast
}

// Genre is a genre the user can select during onboarding.
type Genre string

// Declaration order is the canonical render order.
const (
	GenreFantasy           Genre = "fantasy"
	GenreScienceFiction    Genre = "science_fiction"
	GenreMystery           Genre = "mystery"
	GenreThriller          Genre = "thriller"
	GenreRomance           Genre = "romance"
	GenreHorror            Genre = "horror"
	GenreHistoricalFiction Genre = "historical_fiction"
	GenreLiteraryFiction   Genre = "literary_fiction"
	GenreYoungAdult        Genre = "young_adult"
	GenreBiography         Genre = "biography"
	GenreHistory           Genre = "history"
	GenreScience           Genre = "science"
	GenreSelfHelp          Genre = "self_help"
	GenreBusiness          Genre = "business"
	GenrePoetry            Genre = "poetry"
	GenreClassics          Genre = "classics"
)

// AllGenres lists every genre in canonical order.
var AllGenres = []Genre{
	GenreFantasy,
	GenreScienceFiction,
	GenreMystery,
	GenreThriller,
	GenreRomance,
	GenreHorror,
	GenreHistoricalFiction,
	GenreLiteraryFiction,
	GenreYoungAdult,
	GenreBiography,
	GenreHistory,
	GenreScience,
	GenreSelfHelp,
	GenreBusiness,
	GenrePoetry,
	GenreClassics,
}

// IsValid checks if the genre is a recognized value.
func (g Genre) IsValid() bool {
	for _, known := range AllGenres {
		if g == known {
			return true
		}
	}
	return false
}

// SurveyState is the onboarding preference capture for a user.
// It is written by the onboarding flow and only read by recommendation generation.
type SurveyState struct {
	UserID    string  `json:"user_id"`
	Pace      Pace    `json:"pace"`
	Genres    []Genre `json:"genres"`
	FirstTime bool    `json:"first_time"` // True until onboarding completes
}

// HasGenre reports whether the user selected g.
func (s *SurveyState) HasGenre(g Genre) bool {
	for _, selected := range s.Genres {
		if selected == g {
			return true
		}
	}
	return false
}

// Package recommend builds text-generation prompts from a reader's survey and
// history, and repairs the model's semi-structured reply into candidates.
package recommend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
)

// RecommendationCount is how many recommendations the prompt asks for.
const RecommendationCount = 3

// Labels attached to history entries that carry a preference signal.
const (
	LabelDisliked = "user disliked / avoid similar"
	LabelLoved    = "user loved this / positive signal"
)

var paceDescriptors = map[domain.Pace]string{
	domain.PaceSlow: "The reader prefers a slow, immersive pace: richly detailed, character-driven books to savor over weeks.",
	domain.PaceFast: "The reader prefers a fast pace: propulsive, plot-driven page-turners that are hard to put down.",
}

var genreDescriptors = map[domain.Genre]string{
	domain.GenreFantasy:           "Fantasy: magic, invented worlds, quests and mythic stakes",
	domain.GenreScienceFiction:    "Science fiction: speculative technology, space, and future societies",
	domain.GenreMystery:           "Mystery: puzzles, detectives and a crime to solve",
	domain.GenreThriller:          "Thriller: suspense, danger and high-stakes chases",
	domain.GenreRomance:           "Romance: relationships and love stories at the center",
	domain.GenreHorror:            "Horror: dread, the uncanny and things that go bump in the night",
	domain.GenreHistoricalFiction: "Historical fiction: stories set in a vividly rendered past",
	domain.GenreLiteraryFiction:   "Literary fiction: character, voice and prose-forward storytelling",
	domain.GenreYoungAdult:        "Young adult: coming-of-age stories with teenage protagonists",
	domain.GenreBiography:         "Biography and memoir: real lives told in depth",
	domain.GenreHistory:           "History: nonfiction accounts of past events and eras",
	domain.GenreScience:           "Popular science: accessible nonfiction about how the world works",
	domain.GenreSelfHelp:          "Self-help: practical guidance for personal growth",
	domain.GenreBusiness:          "Business: strategy, leadership and economics",
	domain.GenrePoetry:            "Poetry: collections and verse",
	domain.GenreClassics:          "Classics: enduring works from the literary canon",
}

var statusLabels = map[domain.ReadingStatus]string{
	domain.StatusToRead:    "want to read",
	domain.StatusReading:   "currently reading",
	domain.StatusRead:      "read",
	domain.StatusAbandoned: "abandoned",
}

// PaceDescriptor returns the prompt text for a pace.
func PaceDescriptor(p domain.Pace) string {
	if d, ok := paceDescriptors[p]; ok {
		return d
	}
	return "The reader has not stated a pace preference."
}

// GenreDescriptor returns the prompt text for a genre, or "" if unknown.
func GenreDescriptor(g domain.Genre) string {
	return genreDescriptors[g]
}

// FormatInstruction is the closing output contract of every prompt.
func FormatInstruction() string {
	return fmt.Sprintf(
		`Respond with exactly %d recommendations as a JSON array of objects, each with a "title" string and a "reason" string, `+
			`for example [{"title": "...", "reason": "..."}]. `+
			`Do not use markdown code fences and do not include any prose before or after the JSON array.`,
		RecommendationCount)
}

// PromptInput is everything a prompt is rendered from.
type PromptInput struct {
	Survey   domain.SurveyState
	History  []*domain.ReadingHistoryEntry // Rendered in the order given
	Rejected []string
}

// BuildPrompt renders the instruction string. The same input always yields
// the same string: genres render in canonical order whatever order they were
// selected in, and rejected titles are de-duplicated keeping first occurrence.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are a book recommendation assistant. Suggest books this reader has not read yet.\n\n")

	b.WriteString("Reading pace: ")
	b.WriteString(PaceDescriptor(in.Survey.Pace))
	b.WriteString("\n\n")

	writeGenres(&b, &in.Survey)
	writeHistory(&b, in.History)
	writeExclusions(&b, in.Rejected)

	b.WriteString(FormatInstruction())
	return b.String()
}

func writeGenres(b *strings.Builder, survey *domain.SurveyState) {
	var lines []string
	for _, g := range domain.AllGenres {
		if survey.HasGenre(g) {
			lines = append(lines, GenreDescriptor(g))
		}
	}

	if len(lines) == 0 {
		b.WriteString("Preferred genres: no preference given, choose broadly.\n\n")
		return
	}

	b.WriteString("Preferred genres:\n")
	for _, line := range lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeHistory(b *strings.Builder, history []*domain.ReadingHistoryEntry) {
	if len(history) == 0 {
		b.WriteString("Reading history: none yet.\n\n")
		return
	}

	b.WriteString("Reading history:\n")
	for _, e := range history {
		b.WriteString("- ")
		b.WriteString(historyLine(e))
		b.WriteString("\n")
	}
	b.WriteString("Do not recommend any book already in the reading history.\n\n")
}

func historyLine(e *domain.ReadingHistoryEntry) string {
	status, ok := statusLabels[e.Status]
	if !ok {
		status = string(e.Status)
	}

	line := fmt.Sprintf("%q (status: %s", e.Title, status)
	if e.Rating != nil {
		line += ", rating: " + strconv.FormatFloat(*e.Rating, 'f', -1, 64) + "/5"
	}
	line += ")"

	switch {
	case e.Status == domain.StatusAbandoned:
		line += " [" + LabelDisliked + "]"
	case e.IsPositiveSignal():
		line += " [" + LabelLoved + "]"
	}
	return line
}

func writeExclusions(b *strings.Builder, rejected []string) {
	titles := dedupeTitles(rejected)
	if len(titles) == 0 {
		return
	}

	b.WriteString("The reader recently rejected these suggestions. Do not recommend them again, and avoid close variations of them:\n")
	for _, t := range titles {
		b.WriteString("- ")
		b.WriteString(strconv.Quote(t))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

// dedupeTitles trims titles and drops blanks and case-insensitive repeats.
func dedupeTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		key := normalize.Key(t)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

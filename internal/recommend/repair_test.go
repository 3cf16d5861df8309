package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmate/shelfmate-server/internal/errors"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "json fence",
			raw:  "```json\n[{\"title\":\"A\",\"reason\":\"B\"}]\n```",
			want: `[{"title":"A","reason":"B"}]`,
		},
		{
			name: "uppercase fence with spacing",
			raw:  "``` JSON\n[{\"title\":\"A\",\"reason\":\"B\"}]\n```",
			want: `[{"title":"A","reason":"B"}]`,
		},
		{
			name: "bare fence",
			raw:  "```\n[]\n```",
			want: `[]`,
		},
		{
			name: "leading prose",
			raw:  "Sure! Here are three picks: [{\"title\":\"A\",\"reason\":\"B\"}]",
			want: `[{"title":"A","reason":"B"}]`,
		},
		{
			name: "trailing prose",
			raw:  "[{\"title\":\"A\",\"reason\":\"B\"}]\nEnjoy your reading!",
			want: `[{"title":"A","reason":"B"}]`,
		},
		{
			name: "object root",
			raw:  "Result: {\"recommendations\": []} hope this helps",
			want: `{"recommendations": []}`,
		},
		{
			name: "indented fence",
			raw:  "  ```json\n[]\n  ```",
			want: `[]`,
		},
		{
			name: "backticks inside a reason",
			raw:  "```json\n[{\"title\":\"A\",\"reason\":\"Quotes ```go code``` blocks\"}]\n```",
			want: "[{\"title\":\"A\",\"reason\":\"Quotes ```go code``` blocks\"}]",
		},
		{
			name: "closing fence on the json line",
			raw:  "```json\n[{\"title\":\"A\",\"reason\":\"B\"}]```",
			want: `[{"title":"A","reason":"B"}]`,
		},
		{
			name: "already clean",
			raw:  `[{"title":"A","reason":"B"}]`,
			want: `[{"title":"A","reason":"B"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clean(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClean_NoJSON(t *testing.T) {
	for _, raw := range []string{"", "I cannot help with that.", "```json\n```"} {
		_, err := Clean(raw)
		assert.True(t, errors.Is(err, errors.ErrMalformedOutput), "raw=%q err=%v", raw, err)
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(`[
		{"title": "  Piranesi ", "reason": "Dreamlike"},
		{"title": "", "reason": "blank title"},
		{"title": "No Reason"},
		{"title": 42, "reason": "numeric title"},
		"not an object",
		{"title": "Circe", "reason": "   "},
		{"title": "The Night Circus", "reason": "Atmospheric", "extra": true}
	]`)
	require.NoError(t, err)
	assert.Equal(t, []Candidate{
		{Title: "Piranesi", Reason: "Dreamlike"},
		{Title: "The Night Circus", Reason: "Atmospheric"},
	}, got)
}

func TestParse_EmptyArray(t *testing.T) {
	_, err := Parse("[]")
	assert.True(t, errors.Is(err, errors.ErrNoValidRecommendations), "got %v", err)
}

func TestParse_AllInvalid(t *testing.T) {
	_, err := Parse(`[{"title": " "}, {"reason": "x"}]`)
	assert.True(t, errors.Is(err, errors.ErrNoValidRecommendations), "got %v", err)
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse(`[{"title": "A", "reason": `)
	assert.True(t, errors.Is(err, errors.ErrMalformedOutput), "got %v", err)
}

func TestParse_ObjectRoots(t *testing.T) {
	wrapped, err := Parse(`{"recommendations": [{"title": "A", "reason": "B"}]}`)
	require.NoError(t, err)
	assert.Equal(t, []Candidate{{Title: "A", Reason: "B"}}, wrapped)

	single, err := Parse(`{"title": "A", "reason": "B"}`)
	require.NoError(t, err)
	assert.Equal(t, []Candidate{{Title: "A", Reason: "B"}}, single)
}

func TestRepair(t *testing.T) {
	raw := "Here you go:\n```json\n" +
		`[{"title":"X","reason":"Y"},{"title":"Z","reason":"W"},{"title":"Q","reason":"R"}]` +
		"\n```\nLet me know if you want more."

	got, err := Repair(raw)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "X", got[0].Title)
	assert.Equal(t, "Z", got[1].Title)
	assert.Equal(t, "Q", got[2].Title)
}

func TestRepair_SurfacesFirstFailure(t *testing.T) {
	_, err := Repair("no json here")
	assert.True(t, errors.Is(err, errors.ErrMalformedOutput))

	_, err = Repair("```json\n[]\n```")
	assert.True(t, errors.Is(err, errors.ErrNoValidRecommendations))
}

func TestRepair_KeepsBackticksInReason(t *testing.T) {
	got, err := Repair("```json\n[{\"title\":\"Clean Code\",\"reason\":\"Shows ```refactor``` steps\"}]\n```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Shows ```refactor``` steps", got[0].Reason)
}

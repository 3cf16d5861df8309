package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

// GetSurveyState retrieves a user's onboarding survey.
// Returns store.ErrNotFound if the user has never started onboarding.
func (s *Store) GetSurveyState(ctx context.Context, userID string) (*domain.SurveyState, error) {
	var (
		st        = domain.SurveyState{UserID: userID}
		pace      string
		genresRaw string
		firstTime int
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT pace, genres, first_time FROM survey_states WHERE user_id = ?`,
		userID,
	).Scan(&pace, &genresRaw, &firstTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st.Pace = domain.Pace(pace)
	st.FirstTime = firstTime != 0
	if err := json.Unmarshal([]byte(genresRaw), &st.Genres); err != nil {
		return nil, fmt.Errorf("decode survey genres: %w", err)
	}
	return &st, nil
}

// SaveSurveyState creates or replaces a user's onboarding survey.
func (s *Store) SaveSurveyState(ctx context.Context, st *domain.SurveyState) error {
	genres := st.Genres
	if genres == nil {
		genres = []domain.Genre{}
	}
	genresRaw, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("encode survey genres: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO survey_states (user_id, pace, genres, first_time, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pace = excluded.pace,
			genres = excluded.genres,
			first_time = excluded.first_time,
			updated_at = excluded.updated_at`,
		st.UserID,
		string(st.Pace),
		string(genresRaw),
		boolToInt(st.FirstTime),
		formatTime(time.Now()),
	)
	return err
}

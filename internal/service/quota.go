package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	domainerrors "github.com/shelfmate/shelfmate-server/internal/errors"
	"github.com/shelfmate/shelfmate-server/internal/metrics"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

// QuotaUnlimited is reported as the remaining count when enforcement is disabled.
const QuotaUnlimited = math.MaxInt32

// QuotaResetHint is the reset window reported with a quota-exceeded outcome.
const QuotaResetHint = "24 hours"

// QuotaConfig controls daily generation limits.
type QuotaConfig struct {
	Enabled   bool
	MaxPerDay int
}

// QuotaStatus is a user's quota position for today.
type QuotaStatus struct {
	Enforced  bool   `json:"enforced"`
	MaxPerDay int    `json:"max_per_day"`
	Remaining int    `json:"remaining"`
	Day       string `json:"day"`
}

// QuotaService tracks per-user daily recommendation requests.
type QuotaService struct {
	store  store.QuotaStore
	cfg    QuotaConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewQuotaService creates a new quota service.
func NewQuotaService(store store.QuotaStore, cfg QuotaConfig, logger *slog.Logger) *QuotaService {
	return &QuotaService{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether limits are enforced.
func (s *QuotaService) Enabled() bool {
	return s.cfg.Enabled
}

func (s *QuotaService) today() string {
	return domain.DayOf(s.now())
}

// counter returns today's counter, or nil when the user has not requested yet.
func (s *QuotaService) counter(ctx context.Context, userID string) (*domain.QuotaCounter, error) {
	q, err := s.store.GetQuotaCounter(ctx, userID, s.today())
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to load quota counter")
	}
	return q, nil
}

// CanRequest reports whether the user may start another generation today.
// The configured limit applies even to a counter created under another one.
func (s *QuotaService) CanRequest(ctx context.Context, userID string) (bool, error) {
	if !s.cfg.Enabled {
		return true, nil
	}
	q, err := s.counter(ctx, userID)
	if err != nil {
		return false, err
	}
	return q == nil || q.Count < s.cfg.MaxPerDay, nil
}

// Record counts one request against today's quota. No-op when disabled.
func (s *QuotaService) Record(ctx context.Context, userID string) error {
	if !s.cfg.Enabled {
		return nil
	}
	q, err := s.store.IncrementQuotaCounter(ctx, userID, s.today(), s.cfg.MaxPerDay)
	if err != nil {
		return domainerrors.Storage(err, "failed to record quota usage")
	}
	s.logger.Debug("quota usage recorded",
		"user_id", userID,
		"day", q.Day,
		"count", q.Count,
		"max_per_day", q.MaxPerDay,
	)
	return nil
}

// Remaining returns how many requests are left today, never below zero.
// Returns QuotaUnlimited when enforcement is disabled.
func (s *QuotaService) Remaining(ctx context.Context, userID string) (int, error) {
	if !s.cfg.Enabled {
		return QuotaUnlimited, nil
	}
	q, err := s.counter(ctx, userID)
	if err != nil {
		return 0, err
	}
	if q == nil {
		return s.cfg.MaxPerDay, nil
	}
	return q.RemainingUnder(s.cfg.MaxPerDay), nil
}

// Status returns the user's quota position for today.
func (s *QuotaService) Status(ctx context.Context, userID string) (*QuotaStatus, error) {
	remaining, err := s.Remaining(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &QuotaStatus{
		Enforced:  s.cfg.Enabled,
		MaxPerDay: s.cfg.MaxPerDay,
		Remaining: remaining,
		Day:       s.today(),
	}, nil
}

// Sweep deletes counters for days before cutoff's UTC date.
// Called by the scheduled sweep job, never from request handling.
func (s *QuotaService) Sweep(ctx context.Context, cutoff time.Time) (int64, error) {
	day := domain.DayOf(cutoff)
	deleted, err := s.store.DeleteQuotaCountersBefore(ctx, day)
	if err != nil {
		return 0, domainerrors.Storage(err, "failed to sweep quota counters")
	}
	metrics.RecordQuotaSweep(deleted)
	s.logger.Info("quota counters swept", "before", day, "deleted", deleted)
	return deleted, nil
}

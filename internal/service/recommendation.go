package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	domainerrors "github.com/shelfmate/shelfmate-server/internal/errors"
	"github.com/shelfmate/shelfmate-server/internal/id"
	"github.com/shelfmate/shelfmate-server/internal/metrics"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
	"github.com/shelfmate/shelfmate-server/internal/recommend"
	"github.com/shelfmate/shelfmate-server/internal/store"
	"github.com/shelfmate/shelfmate-server/internal/validation"
)

// TextGenerator completes a prompt with a language model.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RecommendationStore is the persistence the recommendation service needs.
type RecommendationStore interface {
	store.ReaderStore
	store.RecommendationStore
}

// RecommendationConfig controls generation.
type RecommendationConfig struct {
	// RejectionWindow bounds how far back rejected titles are excluded.
	RejectionWindow time.Duration
	// GenerationTimeout bounds the model call. Zero means no extra deadline.
	GenerationTimeout time.Duration
}

// RecommendationService generates, stores and tracks book recommendations.
type RecommendationService struct {
	store     RecommendationStore
	quota     *QuotaService
	generator TextGenerator
	enricher  *Enricher
	cfg       RecommendationConfig
	logger    *slog.Logger
	validator *validation.Validator
	now       func() time.Time
}

// NewRecommendationService creates a new recommendation service.
func NewRecommendationService(
	store RecommendationStore,
	quota *QuotaService,
	generator TextGenerator,
	enricher *Enricher,
	cfg RecommendationConfig,
	logger *slog.Logger,
) *RecommendationService {
	return &RecommendationService{
		store:     store,
		quota:     quota,
		generator: generator,
		enricher:  enricher,
		cfg:       cfg,
		logger:    logger,
		validator: validation.New(),
		now:       time.Now,
	}
}

// Generate builds a prompt from the user's survey and history, asks the model
// for suggestions, and enriches them against the catalog. The result has one
// entry per parsed suggestion, in model order.
//
// Fails with OnboardingIncomplete before any external call when the survey is
// missing or unfinished. Model failures are UpstreamUnavailable; unusable
// output is MalformedOutput or NoValidRecommendations.
func (s *RecommendationService) Generate(ctx context.Context, userID string, rejectedTitles []string) ([]EnrichedRecommendation, error) {
	start := time.Now()
	results, err := s.generate(ctx, userID, rejectedTitles)
	metrics.RecordGeneration(generationResult(err), time.Since(start))
	return results, err
}

func (s *RecommendationService) generate(ctx context.Context, userID string, rejectedTitles []string) ([]EnrichedRecommendation, error) {
	survey, err := s.store.GetSurveyState(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.OnboardingIncomplete("complete the reading survey first")
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to load survey")
	}
	if survey.FirstTime {
		return nil, domainerrors.OnboardingIncomplete("complete the reading survey first")
	}

	history, err := s.store.ListReadingHistory(ctx, userID)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to load reading history")
	}

	prompt := recommend.BuildPrompt(recommend.PromptInput{
		Survey:   *survey,
		History:  history,
		Rejected: rejectedTitles,
	})

	genCtx := ctx
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}

	raw, err := s.generator.Complete(genCtx, prompt)
	if err != nil {
		s.logger.Warn("text generation failed", "user_id", userID, "error", err)
		return nil, domainerrors.UpstreamUnavailable(err, "text generation failed")
	}

	candidates, err := recommend.Repair(raw)
	if err != nil {
		s.logger.Warn("model output rejected",
			"user_id", userID,
			"error", err,
			"output", normalize.Truncate(raw, maxLoggedOutput),
		)
		return nil, err
	}

	results := s.enricher.Enrich(ctx, candidates)

	s.logger.Debug("recommendations generated",
		"user_id", userID,
		"candidates", len(candidates),
		"history_entries", len(history),
		"excluded_titles", len(rejectedTitles),
	)
	return results, nil
}

// RecommendRequest is the body of a generation request.
type RecommendRequest struct {
	RejectedTitles []string `json:"rejected_titles" validate:"max=50,dive,max=300"`
}

// RecommendResult is one stored generation batch.
// Items[i] is the enrichment of Recommendations[i].
type RecommendResult struct {
	BatchID         string
	Recommendations []*domain.Recommendation
	Items           []EnrichedRecommendation
	Remaining       int
}

// Recommend admits the request against today's quota, generates
// recommendations excluding recently rejected titles, and stores them as
// pending under one batch. Quota is only consumed by a successful generation.
func (s *RecommendationService) Recommend(ctx context.Context, userID string, req RecommendRequest) (*RecommendResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	ok, err := s.quota.CanRequest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.RecordGeneration(metrics.ResultQuotaExceeded, 0)
		return nil, domainerrors.QuotaExceeded(0, QuotaResetHint)
	}

	since := s.now().Add(-s.cfg.RejectionWindow)
	recent, err := s.store.ListRejectedTitlesSince(ctx, userID, since)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to load rejected titles")
	}
	rejected := append(append(make([]string, 0, len(req.RejectedTitles)+len(recent)), req.RejectedTitles...), recent...)

	items, err := s.Generate(ctx, userID, rejected)
	if err != nil {
		return nil, err
	}

	// One timestamp per batch keeps the batch contiguous in newest-first listings.
	batchID := uuid.NewString()
	createdAt := s.now()
	recs := make([]*domain.Recommendation, 0, len(items))
	for _, item := range items {
		recID, err := id.Generate(id.PrefixRecommendation)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate recommendation id")
		}
		rec := &domain.Recommendation{
			Entity:  domain.Entity{ID: recID, CreatedAt: createdAt, UpdatedAt: createdAt},
			UserID:  userID,
			BookID:  item.BookID,
			BatchID: batchID,
			Reason:  item.Reason,
			Status:  domain.RecommendationPending,
			Title:   item.Title,
		}
		recs = append(recs, rec)
	}

	if err := s.store.CreateRecommendations(ctx, recs); err != nil {
		return nil, domainerrors.Storage(err, "failed to store recommendations")
	}

	// The user already has the results; a counting failure only loses one unit.
	if err := s.quota.Record(ctx, userID); err != nil {
		s.logger.Error("failed to record quota usage", "user_id", userID, "error", err)
	}

	remaining, err := s.quota.Remaining(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to read remaining quota", "user_id", userID, "error", err)
	}

	s.logger.Info("recommendation batch stored",
		"user_id", userID,
		"batch_id", batchID,
		"count", len(recs),
	)

	return &RecommendResult{
		BatchID:         batchID,
		Recommendations: recs,
		Items:           items,
		Remaining:       remaining,
	}, nil
}

// RespondRequest accepts or rejects a pending recommendation.
type RespondRequest struct {
	Status string `json:"status" validate:"required,recstatus"`
}

// Respond moves one of the user's pending recommendations to accepted or
// rejected. Unknown ids and ids owned by another user are NotFound; a
// recommendation already answered is a Conflict.
func (s *RecommendationService) Respond(ctx context.Context, userID, recID string, req RespondRequest) (*domain.Recommendation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	rec, err := s.store.GetRecommendation(ctx, recID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("recommendation %s not found", recID)
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to load recommendation")
	}
	if rec.UserID != userID {
		return nil, domainerrors.NotFoundf("recommendation %s not found", recID)
	}

	if err := rec.Transition(domain.RecommendationStatus(req.Status), s.now()); err != nil {
		return nil, domainerrors.Conflict(err.Error())
	}

	err = s.store.UpdateRecommendationStatus(ctx, rec)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, domainerrors.Conflict("recommendation was answered concurrently")
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to update recommendation")
	}

	s.logger.Debug("recommendation answered", "user_id", userID, "recommendation_id", recID, "status", rec.Status)
	return rec, nil
}

// List returns the user's recommendations, newest batch first.
// An empty status lists all of them.
func (s *RecommendationService) List(ctx context.Context, userID string, status domain.RecommendationStatus) ([]*domain.Recommendation, error) {
	if status != "" && !status.IsValid() {
		return nil, domainerrors.Validationf("unknown status %q", status)
	}
	recs, err := s.store.ListRecommendations(ctx, userID, status)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to list recommendations")
	}
	return recs, nil
}

// generationResult maps a generation error to its metrics label.
func generationResult(err error) string {
	var domainErr *domainerrors.Error
	if err == nil {
		return metrics.ResultSuccess
	}
	if !errors.As(err, &domainErr) {
		return metrics.ResultError
	}
	switch domainErr.Code {
	case domainerrors.CodeOnboardingIncomplete:
		return metrics.ResultOnboardingIncomplete
	case domainerrors.CodeUpstreamUnavailable:
		return metrics.ResultUpstreamUnavailable
	case domainerrors.CodeMalformedOutput:
		return metrics.ResultMalformedOutput
	case domainerrors.CodeNoValidRecommendations:
		return metrics.ResultNoValid
	default:
		return metrics.ResultError
	}
}

// maxLoggedOutput caps how much rejected model output is logged.
const maxLoggedOutput = 500

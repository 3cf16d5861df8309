package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/service"
)

func (s *Server) registerRecommendationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generateRecommendations",
		Method:      http.MethodPost,
		Path:        "/api/v1/recommendations",
		Summary:     "Generate recommendations",
		Description: "Generates a batch of book recommendations from the reader's survey and history. Consumes one request from the daily quota on success.",
		Tags:        []string{"Recommendations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleGenerateRecommendations)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRecommendations",
		Method:      http.MethodGet,
		Path:        "/api/v1/recommendations",
		Summary:     "List recommendations",
		Description: "Lists the reader's stored recommendations, newest batch first",
		Tags:        []string{"Recommendations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleListRecommendations)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRecommendationQuota",
		Method:      http.MethodGet,
		Path:        "/api/v1/recommendations/quota",
		Summary:     "Get quota status",
		Description: "Returns how many generation requests the reader has left today",
		Tags:        []string{"Recommendations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleGetRecommendationQuota)

	huma.Register(s.api, huma.Operation{
		OperationID: "respondToRecommendation",
		Method:      http.MethodPatch,
		Path:        "/api/v1/recommendations/{id}",
		Summary:     "Respond to a recommendation",
		Description: "Accepts or rejects a pending recommendation. Rejected titles are excluded from later generations.",
		Tags:        []string{"Recommendations"},
		Security:    []map[string][]string{{"gateway": {}}},
	}, s.handleRespondToRecommendation)
}

// === DTOs ===

// GenerateRecommendationsRequest is the request body for generating recommendations.
type GenerateRecommendationsRequest struct {
	RejectedTitles []string `json:"rejected_titles,omitempty" doc:"Extra titles to exclude from this batch"`
}

// GenerateRecommendationsInput wraps the generate request for Huma.
type GenerateRecommendationsInput struct {
	Body *GenerateRecommendationsRequest
}

// RecommendedBookResponse is a freshly generated recommendation with its catalog details.
type RecommendedBookResponse struct {
	ID            string   `json:"id" doc:"Recommendation ID"`
	Title         string   `json:"title" doc:"Book title"`
	Reason        string   `json:"reason" doc:"Why the book was recommended"`
	Status        string   `json:"status" doc:"Lifecycle status"`
	Enriched      bool     `json:"enriched" doc:"Whether the title matched a catalog book"`
	BookID        *string  `json:"book_id" doc:"Catalog book ID, null when unmatched"`
	CoverURL      *string  `json:"cover_url" doc:"Cover image URL"`
	ISBN10        *string  `json:"isbn10" doc:"ISBN-10"`
	ISBN13        *string  `json:"isbn13" doc:"ISBN-13"`
	Publisher     *string  `json:"publisher" doc:"Publisher"`
	PublishedYear *int     `json:"published_year" doc:"Publication year"`
	Pages         *int     `json:"pages" doc:"Page count"`
	Synopsis      *string  `json:"synopsis" doc:"Synopsis"`
	Authors       []string `json:"authors" doc:"Author names in credit order"`
}

// GenerateRecommendationsResponse contains one generated batch.
type GenerateRecommendationsResponse struct {
	BatchID         string                    `json:"batch_id" doc:"ID shared by every recommendation in this batch"`
	Recommendations []RecommendedBookResponse `json:"recommendations" doc:"Recommendations in model order"`
	Remaining       int                       `json:"remaining" doc:"Generation requests left today"`
}

// GenerateRecommendationsOutput wraps the generate response for Huma.
type GenerateRecommendationsOutput struct {
	Body GenerateRecommendationsResponse
}

// ListRecommendationsInput contains the listing filter.
type ListRecommendationsInput struct {
	Status string `query:"status" doc:"Filter by status: pending, accepted, or rejected"`
}

// RecommendationResponse is a stored recommendation in API responses.
type RecommendationResponse struct {
	ID          string     `json:"id" doc:"Recommendation ID"`
	BatchID     string     `json:"batch_id" doc:"Generation batch ID"`
	BookID      *string    `json:"book_id" doc:"Catalog book ID, null when unmatched"`
	Title       string     `json:"title" doc:"Book title"`
	Reason      string     `json:"reason" doc:"Why the book was recommended"`
	Status      string     `json:"status" doc:"Lifecycle status"`
	CreatedAt   time.Time  `json:"created_at" doc:"Creation time"`
	RespondedAt *time.Time `json:"responded_at,omitempty" doc:"When the reader responded"`
}

// ListRecommendationsResponse contains stored recommendations.
type ListRecommendationsResponse struct {
	Recommendations []RecommendationResponse `json:"recommendations" doc:"Recommendations, newest batch first"`
}

// ListRecommendationsOutput wraps the list response for Huma.
type ListRecommendationsOutput struct {
	Body ListRecommendationsResponse
}

// RespondToRecommendationRequest is the request body for answering a recommendation.
type RespondToRecommendationRequest struct {
	Status string `json:"status" doc:"New status: accepted or rejected"`
}

// RespondToRecommendationInput wraps the respond request for Huma.
type RespondToRecommendationInput struct {
	ID   string `path:"id" doc:"Recommendation ID"`
	Body RespondToRecommendationRequest
}

// RecommendationOutput wraps a single recommendation for Huma.
type RecommendationOutput struct {
	Body RecommendationResponse
}

// QuotaResponse describes today's generation allowance.
type QuotaResponse struct {
	Enforced  bool   `json:"enforced" doc:"Whether the daily limit applies"`
	MaxPerDay int    `json:"max_per_day" doc:"Requests allowed per day"`
	Remaining int    `json:"remaining" doc:"Requests left today"`
	Day       string `json:"day" doc:"Quota day (UTC, YYYY-MM-DD)"`
}

// QuotaOutput wraps the quota response for Huma.
type QuotaOutput struct {
	Body QuotaResponse
}

// === Handlers ===

func (s *Server) handleGenerateRecommendations(ctx context.Context, input *GenerateRecommendationsInput) (*GenerateRecommendationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	var req service.RecommendRequest
	if input.Body != nil {
		req.RejectedTitles = input.Body.RejectedTitles
	}

	result, err := s.services.Recommendation.Recommend(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	resp := make([]RecommendedBookResponse, len(result.Items))
	for i, item := range result.Items {
		resp[i] = mapRecommendedBook(result.Recommendations[i], item)
	}

	return &GenerateRecommendationsOutput{
		Body: GenerateRecommendationsResponse{
			BatchID:         result.BatchID,
			Recommendations: resp,
			Remaining:       result.Remaining,
		},
	}, nil
}

func (s *Server) handleListRecommendations(ctx context.Context, input *ListRecommendationsInput) (*ListRecommendationsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	recs, err := s.services.Recommendation.List(ctx, userID, domain.RecommendationStatus(input.Status))
	if err != nil {
		return nil, err
	}

	resp := make([]RecommendationResponse, len(recs))
	for i, rec := range recs {
		resp[i] = mapRecommendation(rec)
	}

	return &ListRecommendationsOutput{
		Body: ListRecommendationsResponse{Recommendations: resp},
	}, nil
}

func (s *Server) handleGetRecommendationQuota(ctx context.Context, _ *struct{}) (*QuotaOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	status, err := s.services.Quota.Status(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &QuotaOutput{
		Body: QuotaResponse{
			Enforced:  status.Enforced,
			MaxPerDay: status.MaxPerDay,
			Remaining: status.Remaining,
			Day:       status.Day,
		},
	}, nil
}

func (s *Server) handleRespondToRecommendation(ctx context.Context, input *RespondToRecommendationInput) (*RecommendationOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.services.Recommendation.Respond(ctx, userID, input.ID, service.RespondRequest{
		Status: input.Body.Status,
	})
	if err != nil {
		return nil, err
	}

	return &RecommendationOutput{Body: mapRecommendation(rec)}, nil
}

// === Mappers ===

func mapRecommendation(rec *domain.Recommendation) RecommendationResponse {
	return RecommendationResponse{
		ID:          rec.ID,
		BatchID:     rec.BatchID,
		BookID:      optionalString(rec.BookID),
		Title:       rec.Title,
		Reason:      rec.Reason,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
		RespondedAt: rec.RespondedAt,
	}
}

func mapRecommendedBook(rec *domain.Recommendation, item service.EnrichedRecommendation) RecommendedBookResponse {
	authors := item.Authors
	if authors == nil {
		authors = []string{}
	}
	return RecommendedBookResponse{
		ID:            rec.ID,
		Title:         item.Title,
		Reason:        item.Reason,
		Status:        string(rec.Status),
		Enriched:      item.Enriched,
		BookID:        optionalString(item.BookID),
		CoverURL:      optionalString(item.CoverURL),
		ISBN10:        optionalString(item.ISBN10),
		ISBN13:        optionalString(item.ISBN13),
		Publisher:     optionalString(item.Publisher),
		PublishedYear: optionalInt(item.PublishedYear),
		Pages:         optionalInt(item.Pages),
		Synopsis:      optionalString(item.Synopsis),
		Authors:       authors,
	}
}

// optionalString maps the empty string to JSON null.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optionalInt maps zero to JSON null.
func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

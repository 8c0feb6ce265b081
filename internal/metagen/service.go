// Package metagen drives SEO metadata generation: it gates each request
// against the user's quota, calls the backend, records the outcome in the
// local history, and keeps the usage cache's optimistic counter current.
package metagen

import (
	"context"
	"log/slog"
	"strings"

	"seopilot/internal/types"
	"seopilot/internal/usage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// UsageCache is the quota surface generation depends on. Implemented by
// usage.Cache.
type UsageCache interface {
	Get(ctx context.Context, localUserID string, forceRefresh bool) (*types.UsageSnapshot, error)
	Increment(localUserID string, n int)
}

// Generator is the backend operation that produces metadata.
type Generator interface {
	GenerateMeta(ctx context.Context, req types.MetaRequest) (*types.MetaResult, error)
}

// HistoryRecorder appends generation outcomes. Implemented by
// db.GenerationRepository.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *types.GenerationRecord) error
}

// Service coordinates single and bulk generation.
type Service struct {
	usage   UsageCache
	backend Generator
	history HistoryRecorder
	clock   types.Clock
	logger  *slog.Logger

	bulkConcurrency int
	bulkMaxPosts    int
}

func NewService(
	usageCache UsageCache,
	backend Generator,
	history HistoryRecorder,
	clock types.Clock,
	logger *slog.Logger,
	bulkConcurrency, bulkMaxPosts int,
) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if bulkConcurrency <= 0 {
		bulkConcurrency = 4
	}
	if bulkMaxPosts <= 0 {
		bulkMaxPosts = 50
	}
	return &Service{
		usage:           usageCache,
		backend:         backend,
		history:         history,
		clock:           clock,
		logger:          logger,
		bulkConcurrency: bulkConcurrency,
		bulkMaxPosts:    bulkMaxPosts,
	}
}

// Generate runs one gated generation. The quota check happens before the
// backend call; a denial is recorded in history just like a failure, so the
// dashboard can show why nothing was produced.
//
// The optimistic counter bump after success means a burst of generations
// sees its own consumption immediately instead of waiting out the cache TTL.
func (s *Service) Generate(ctx context.Context, localUserID string, req types.MetaRequest) (*types.MetaResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	snap, err := s.usage.Get(ctx, localUserID, false)
	if err != nil {
		if types.IsAuthRequired(err) {
			return nil, err
		}
		// Unknown quota denies. The original failure rides along for logs.
		denial := types.NewAppError(types.ErrCodeUsageUnknown,
			"usage data is unavailable; try again shortly", err)
		s.record(ctx, localUserID, req.PostID, types.GenerationDenied, types.ErrCodeUsageUnknown)
		return nil, denial
	}

	if gateErr := usage.CanGenerate(snap); gateErr != nil {
		s.record(ctx, localUserID, req.PostID, types.GenerationDenied, types.CodeOf(gateErr))
		return nil, gateErr
	}

	result, err := s.backend.GenerateMeta(ctx, req)
	if err != nil {
		s.record(ctx, localUserID, req.PostID, types.GenerationFailed, types.CodeOf(err))
		return nil, err
	}

	s.record(ctx, localUserID, req.PostID, types.GenerationSucceeded, "")
	s.usage.Increment(localUserID, 1)

	return result, nil
}

// BulkItem is the outcome of one post in a bulk request.
type BulkItem struct {
	PostID    string            `json:"post_id"`
	Result    *types.MetaResult `json:"result,omitempty"`
	ErrorCode types.ErrorCode   `json:"error_code,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// BulkGenerate runs gated generation across many posts with bounded
// concurrency. Items fail independently: one exhausted quota or backend
// error does not abort the rest, and every item reports its own outcome.
// The whole call errors only on invalid input.
func (s *Service) BulkGenerate(ctx context.Context, localUserID string, reqs []types.MetaRequest) ([]BulkItem, error) {
	if len(reqs) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "no posts to generate", nil)
	}
	if len(reqs) > s.bulkMaxPosts {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			"too many posts in one request",
			nil,
			map[string]any{"max": s.bulkMaxPosts, "got": len(reqs)},
		)
	}

	items := make([]BulkItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)

	for i, req := range reqs {
		g.Go(func() error {
			item := BulkItem{PostID: req.PostID}
			result, err := s.Generate(gctx, localUserID, req)
			if err != nil {
				item.ErrorCode = types.CodeOf(err)
				item.Message = err.Error()
			} else {
				item.Result = result
			}
			items[i] = item
			return nil
		})
	}

	// Workers never return errors, so this only waits.
	g.Wait()

	s.logger.InfoContext(ctx, "bulk generation finished",
		slog.String("local_user_id", localUserID),
		slog.Int("total", len(reqs)),
		slog.Int("succeeded", countSucceeded(items)))

	return items, nil
}

func (s *Service) record(ctx context.Context, localUserID, postID string, status types.GenerationStatus, code types.ErrorCode) {
	rec := &types.GenerationRecord{
		ID:          uuid.NewString(),
		LocalUserID: localUserID,
		PostID:      postID,
		Status:      status,
		ErrorCode:   string(code),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		// History is best effort; losing a row must not fail the generation.
		s.logger.WarnContext(ctx, "failed to record generation history",
			slog.String("local_user_id", localUserID),
			slog.String("post_id", postID),
			slog.String("error", err.Error()))
	}
}

func validateRequest(req types.MetaRequest) error {
	if strings.TrimSpace(req.PostID) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "post_id is required", nil)
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Content) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "a title or content is required", nil)
	}
	return nil
}

func countSucceeded(items []BulkItem) int {
	n := 0
	for _, item := range items {
		if item.Result != nil {
			n++
		}
	}
	return n
}

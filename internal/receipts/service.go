package receipts

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
)

// Repository is the receipt storage the service reads from.
type Repository interface {
	ListReceipts(ctx context.Context, filter entity.ReceiptFilter) ([]entity.Receipt, error)
	Categories(ctx context.Context) ([]entity.Category, error)
}

// Service handles receipt business logic.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new receipt service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ListReceiptsRequest represents receipt listing parameters. Dates are
// inclusive YYYY-MM-DD bounds; Category accepts a name or a synonym.
type ListReceiptsRequest struct {
	FromDate string
	ToDate   string
	Category string
	ClientID int64
	Limit    int
}

// ListReceipts returns receipts ordered by date.
func (s *Service) ListReceipts(ctx context.Context, req ListReceiptsRequest) ([]entity.Receipt, error) {
	from := strings.TrimSpace(req.FromDate)
	to := strings.TrimSpace(req.ToDate)

	v := common.NewValidator().
		Field("from_date", from, common.OptionalDate).
		Field("to_date", to, common.OptionalDate)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if from != "" && to != "" && from > to {
		return nil, status.Error(codes.InvalidArgument, "from_date must not be after to_date")
	}
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	filter := entity.ReceiptFilter{From: from, To: to, ClientID: req.ClientID, Limit: req.Limit}
	if name := strings.TrimSpace(req.Category); name != "" {
		id, err := s.categoryID(ctx, name)
		if err != nil {
			return nil, err
		}
		filter.CategoryID = id
	}

	recs, err := s.repo.ListReceipts(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list receipts", "from_date", from, "to_date", to, "error", err)
		return nil, status.Errorf(codes.Internal, "list receipts: %v", err)
	}

	s.logger.Info("receipts listed successfully", "count", len(recs))
	return recs, nil
}

// ListCategories returns the category set.
func (s *Service) ListCategories(ctx context.Context) ([]entity.Category, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list categories: %v", err)
	}
	return cats, nil
}

func (s *Service) categoryID(ctx context.Context, name string) (int64, error) {
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	if canonical, ok := constants.Canonicalize(name); ok {
		name = string(canonical)
	}
	c := entity.FindCategoryByName(cats, name)
	if c == nil {
		return 0, status.Errorf(codes.InvalidArgument, "unknown category %q; expected one of: %s",
			name, strings.Join(constants.AsStringSlice(), ", "))
	}
	return c.ID, nil
}

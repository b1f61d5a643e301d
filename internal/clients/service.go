package clients

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/utils"
)

// Repository is the client storage the service needs.
type Repository interface {
	CreateClient(ctx context.Context, c entity.Client) (*entity.Client, error)
	GetClient(ctx context.Context, id int64) (*entity.Client, error)
	Clients(ctx context.Context) ([]entity.Client, error)
}

// Service handles client business logic.
type Service struct {
	repo   Repository
	ids    *utils.IDGenerator
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a new client service. ids may be shared with the
// importer; nil gets a private generator.
func NewService(repo Repository, ids *utils.IDGenerator, logger *slog.Logger) *Service {
	if ids == nil {
		ids = utils.NewIDGenerator()
	}
	return &Service{repo: repo, ids: ids, now: time.Now, logger: logger}
}

// CreateClientRequest represents client creation parameters.
type CreateClientRequest struct {
	Name        string `json:"name"`
	ProjectCode string `json:"project_code"`
	Email       string `json:"email"`
}

// CreateClient validates req and stores a new client.
func (s *Service) CreateClient(ctx context.Context, req CreateClientRequest) (*entity.Client, error) {
	name := strings.TrimSpace(req.Name)
	code := strings.TrimSpace(req.ProjectCode)
	email := strings.TrimSpace(req.Email)

	v := common.NewValidator().
		Field("name", name, common.Required, common.MaxLength(200)).
		Field("project_code", code, common.MaxLength(64)).
		Field("email", email, common.OptionalEmail)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	now := s.now()
	c, err := s.repo.CreateClient(ctx, entity.Client{
		ID:          s.ids.Next(now),
		Name:        name,
		ProjectCode: code,
		Email:       email,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		s.logger.Error("failed to create client", "name", name, "error", err)
		return nil, status.Errorf(codes.Internal, "create client: %v", err)
	}

	s.logger.Info("client created successfully", "client_id", c.ID, "name", c.Name)
	return c, nil
}

// ListClients returns all clients ordered by name.
func (s *Service) ListClients(ctx context.Context) ([]entity.Client, error) {
	list, err := s.repo.Clients(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list clients: %v", err)
	}
	s.logger.Debug("clients listed", "count", len(list))
	return list, nil
}

// GetClient returns one client or a NotFound status.
func (s *Service) GetClient(ctx context.Context, id int64) (*entity.Client, error) {
	c, err := s.repo.GetClient(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFoundError("client not found")
		}
		return nil, status.Errorf(codes.Internal, "get client: %v", err)
	}
	return c, nil
}

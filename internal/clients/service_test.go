package clients

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	svc := NewService(st, nil, logger.Discard())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateClientTrimsAndStores(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateClient(ctx, CreateClientRequest{Name: "  Acme Corp ", ProjectCode: " P-1 ", Email: "ops@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", c.Name)
	assert.Equal(t, "P-1", c.ProjectCode)
	assert.Positive(t, c.ID)

	got, err := svc.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)

	second, err := svc.CreateClient(ctx, CreateClientRequest{Name: "Beta"})
	require.NoError(t, err)
	assert.Greater(t, second.ID, c.ID)

	list, err := svc.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme Corp", list[0].Name)
}

func TestCreateClientValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateClient(ctx, CreateClientRequest{Name: "   "})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.CreateClient(ctx, CreateClientRequest{Name: "Acme", Email: "not-an-email"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetClientNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetClient(context.Background(), 12345)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

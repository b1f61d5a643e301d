package receipts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/store"
)

func seededService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	for _, r := range []entity.Receipt{
		{ID: 1, Vendor: "Shell", Amount: 40, Date: "2024-01-10", CategoryID: 9},
		{ID: 2, Vendor: "Staples", Amount: 12, Date: "2024-02-10", CategoryID: 1},
		{ID: 3, Vendor: "Chevron", Amount: 30, Date: "2024-03-10", CategoryID: 9},
	} {
		require.NoError(t, st.AppendReceipt(ctx, r))
	}
	return NewService(st, logger.Discard())
}

func TestListReceiptsFilters(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	all, err := svc.ListReceipts(ctx, ListReceiptsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fuel, err := svc.ListReceipts(ctx, ListReceiptsRequest{Category: "fuel"})
	require.NoError(t, err)
	require.Len(t, fuel, 2)
	assert.Equal(t, "Shell", fuel[0].Vendor)

	window, err := svc.ListReceipts(ctx, ListReceiptsRequest{FromDate: "2024-02-01", ToDate: "2024-02-28"})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "Staples", window[0].Vendor)
}

func TestListReceiptsRejectsBadInput(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	for name, req := range map[string]ListReceiptsRequest{
		"bad date":         {FromDate: "01/02/2024"},
		"reversed window":  {FromDate: "2024-03-01", ToDate: "2024-01-01"},
		"negative limit":   {Limit: -1},
		"unknown category": {Category: "Groceries"},
	} {
		_, err := svc.ListReceipts(ctx, req)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), name)
	}
}

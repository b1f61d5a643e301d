package reports

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/logger"
	"github.com/taxsyncpro/taxsync/internal/store"
)

func seeded(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenJSON(filepath.Join(t.TempDir(), "store.json"), logger.Discard())
	require.NoError(t, err)
	_, err = st.CreateClient(ctx, entity.Client{ID: 5, Name: "Acme Corp"})
	require.NoError(t, err)
	acme := int64(5)
	for _, r := range []entity.Receipt{
		{ID: 1, Amount: 0.1, Date: "2024-01-05", CategoryID: 9, ClientID: &acme},
		{ID: 2, Amount: 0.2, Date: "2024-01-20", CategoryID: 9},
		{ID: 3, Amount: 12.5, Date: "2024-02-01", CategoryID: 1, ClientID: &acme},
		{ID: 4, Amount: 100, Date: "2024-04-01", CategoryID: 2},
	} {
		require.NoError(t, st.AppendReceipt(ctx, r))
	}
	return NewService(st, logger.Discard())
}

func TestSummaryTotals(t *testing.T) {
	svc := seeded(t)

	sum, err := svc.Summary(context.Background(), Request{To: "2024-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.True(t, decimal.RequireFromString("12.8").Equal(sum.Total), sum.Total.String())

	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, "Office Supplies", sum.ByCategory[0].Label)
	assert.Equal(t, "Gas & Fuel", sum.ByCategory[1].Label)
	assert.True(t, decimal.RequireFromString("0.3").Equal(sum.ByCategory[1].Total))

	require.Len(t, sum.ByClient, 2)
	assert.Equal(t, "Acme Corp", sum.ByClient[0].Label)
	assert.Equal(t, 2, sum.ByClient[0].Count)
	assert.Equal(t, "No client", sum.ByClient[1].Label)

	require.Len(t, sum.ByMonth, 2)
	assert.Equal(t, "2024-01", sum.ByMonth[0].Key)
	assert.Equal(t, "2024-02", sum.ByMonth[1].Key)
}

func TestSummaryForClient(t *testing.T) {
	sum, err := seeded(t).Summary(context.Background(), Request{ClientID: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	require.Len(t, sum.ByClient, 1)
}

func TestSummaryRejectsBadDates(t *testing.T) {
	_, err := seeded(t).Summary(context.Background(), Request{From: "yesterday"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

package rates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/store/memstore"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger() *ledger {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return &ledger{
		store: memstore.New(),
		now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
	}
}

func TestLedgerNotConfigured(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()

	_, err := ledger.GetLatestRate(ctx)
	require.ErrorIs(t, err, ErrRateNotConfigured)

	_, err = ledger.GetSellRate(ctx, model.PurityK21)
	require.ErrorIs(t, err, ErrRateNotConfigured)
}

func TestLedgerSetRateTwice(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()

	first, err := ledger.SetRate(ctx, dec("3400"), dec("3000"), dec("2550"))
	require.NoError(t, err)
	second, err := ledger.SetRate(ctx, dec("3500.00"), dec("3100.00"), dec("2650.00"))
	require.NoError(t, err)

	latest, err := ledger.GetLatestRate(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	r21, err := ledger.GetSellRate(ctx, model.PurityK21)
	require.NoError(t, err)
	require.Equal(t, "3100.00", r21.StringFixed(2))
	r18, err := ledger.GetSellRate(ctx, model.PurityK18)
	require.NoError(t, err)
	require.Equal(t, "2650.00", r18.StringFixed(2))

	// первая строка остается в истории
	history, err := ledger.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.ID, history[0].ID)
	require.Equal(t, first.ID, history[1].ID)
	require.True(t, history[1].Data.Active)
}

func TestLedgerInvalidRate(t *testing.T) {
	ledger := newTestLedger()

	_, err := ledger.SetRate(context.Background(), dec("3400"), decimal.Zero, dec("2550"))
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestSellRateIn(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger()

	_, err := SellRateIn(ctx, ledger.store, model.PurityK24)
	require.ErrorIs(t, err, ErrRateNotConfigured)

	_, err = ledger.SetRate(ctx, dec("3400"), dec("3000"), dec("2550"))
	require.NoError(t, err)
	r24, err := SellRateIn(ctx, ledger.store, model.PurityK24)
	require.NoError(t, err)
	require.True(t, r24.Equal(dec("3400")))
}

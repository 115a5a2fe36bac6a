package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/hardware"
	"github.com/iurnickita/goldpos/internal/hardware/config"
	"github.com/iurnickita/goldpos/internal/inventory"
	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/rates"
	"github.com/iurnickita/goldpos/internal/store"
	"github.com/iurnickita/goldpos/internal/store/memstore"
	"github.com/iurnickita/goldpos/internal/tradein"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type drawer struct {
	fail     bool
	attempts int
}

func (d *drawer) OpenCashDrawer(_ context.Context) error {
	d.attempts++
	if d.fail {
		return errors.New("printer offline")
	}
	return nil
}

func (d *drawer) PrintReceipt(_ context.Context, _ string) error {
	return nil
}

type fixture struct {
	store    store.Store
	inv      inventory.Inventory
	ledger   rates.Ledger
	valuator tradein.Valuator
	drawer   *drawer
	checkout Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New()
	d := &drawer{}
	trigger := hardware.NewTrigger(config.Config{
		Enabled:  true,
		Attempts: 3,
		Backoff:  time.Millisecond,
	}, d, zap.NewNop())
	valuator := tradein.NewValuator(s)
	return &fixture{
		store:    s,
		inv:      inventory.NewInventory(s),
		ledger:   rates.NewLedger(s),
		valuator: valuator,
		drawer:   d,
		checkout: NewCheckout(s, valuator, trigger, zap.NewNop()),
	}
}

func (f *fixture) addItem(t *testing.T, barcode string, purity model.Purity, weight, making string) {
	t.Helper()
	_, err := f.inv.Add(context.Background(), model.Item{
		Barcode: barcode,
		Data: model.ItemData{
			ModelName:    "Bangle",
			Purity:       purity,
			GrossWeight:  dec(weight),
			MakingCharge: dec(making),
			CostPrice:    dec("1000"),
		},
	})
	require.NoError(t, err)
}

func (f *fixture) status(t *testing.T, barcode string) model.ItemStatus {
	t.Helper()
	item, err := f.inv.Get(context.Background(), barcode)
	require.NoError(t, err)
	return item.Data.Status
}

func TestCheckoutSingleItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK21, "10.000", "100.00")

	result, err := f.checkout.Checkout(ctx, Request{
		Barcodes:     []string{"B1"},
		GoldRate:     dec("3000.00"),
		CustomerName: "Salma",
		Cashier:      "cashier-1",
	})
	require.NoError(t, err)
	require.Empty(t, result.HardwareWarning)
	require.Equal(t, 1, f.drawer.attempts)

	sale := result.Sale
	require.Equal(t, "30100.00", sale.Data.GrossTotal.StringFixed(2))
	require.Equal(t, "0.00", sale.Data.TradeInTotal.StringFixed(2))
	require.Equal(t, "30100.00", sale.Data.NetAmount.StringFixed(2))
	require.Len(t, sale.Lines, 1)
	require.Equal(t, "10.000", sale.Lines[0].WeightFrozen.StringFixed(3))
	require.Equal(t, "3000.00", sale.Lines[0].AppliedRate.StringFixed(2))
	require.Equal(t, "30100.00", sale.Lines[0].PriceFrozen.StringFixed(2))
	require.Equal(t, model.ItemStatusSold, f.status(t, "B1"))

	stored, err := f.checkout.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, "cashier-1", stored.Data.Cashier)
	require.True(t, stored.Data.GrossTotal.Equal(sale.Data.GrossTotal))
}

func TestCheckoutGrossTotalRoundsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// курс 5.01: 0.00501 на строку, сумма 0.01503 округляется один раз
	f.addItem(t, "B1", model.PurityK18, "0.001", "0")
	f.addItem(t, "B2", model.PurityK18, "0.001", "0")
	f.addItem(t, "B3", model.PurityK18, "0.001", "0")

	sale, _, err := f.checkout.CommitSale(ctx, Request{
		Barcodes: []string{"B1", "B2", "B3"},
		GoldRate: dec("5.005"),
	})
	require.NoError(t, err)
	require.Equal(t, "5.01", sale.Lines[0].AppliedRate.StringFixed(2))
	require.Equal(t, "0.02", sale.Data.GrossTotal.StringFixed(2))
	require.Equal(t, []int{1, 2, 3}, []int{sale.Lines[0].Position, sale.Lines[1].Position, sale.Lines[2].Position})
}

func TestCheckoutValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK21, "10", "100")

	_, err := f.checkout.Checkout(ctx, Request{GoldRate: dec("3000")})
	require.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.checkout.Checkout(ctx, Request{Barcodes: []string{"B1", " B1 "}, GoldRate: dec("3000")})
	require.ErrorIs(t, err, ErrDuplicateItem)
	require.ErrorContains(t, err, "B1")

	_, err = f.checkout.Checkout(ctx, Request{Barcodes: []string{"B1", ""}, GoldRate: dec("3000")})
	require.ErrorIs(t, err, ErrBlankBarcode)

	_, err = f.checkout.Checkout(ctx, Request{Barcodes: []string{"B1"}, GoldRate: dec("-1")})
	require.ErrorIs(t, err, ErrInvalidGoldRate)

	_, err = f.checkout.Checkout(ctx, Request{
		Barcodes: []string{"B1"},
		GoldRate: dec("3000"),
		TradeIns: []tradein.Request{{Purity: model.PurityK21, Weight: dec("1"), BuyRate: dec("2800")}},
	})
	require.ErrorIs(t, err, tradein.ErrInvalidTradeIn)

	// ни одна ошибка проверки ничего не изменила
	require.Equal(t, model.ItemStatusAvailable, f.status(t, "B1"))
	require.Zero(t, f.drawer.attempts)
}

func TestCheckoutAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK21, "10", "100")
	f.addItem(t, "B2", model.PurityK21, "5", "50")

	_, err := f.checkout.Checkout(ctx, Request{Barcodes: []string{"B2"}, GoldRate: dec("3000")})
	require.NoError(t, err)

	_, err = f.checkout.Checkout(ctx, Request{
		Barcodes: []string{"B1", "B2"},
		GoldRate: dec("3000"),
		TradeIns: []tradein.Request{{
			Purity:             model.PurityK18,
			Weight:             dec("2"),
			BuyRate:            dec("2000"),
			CustomerNationalID: "NID-1",
		}},
	})
	require.ErrorIs(t, err, inventory.ErrProductNotAvailable)
	require.ErrorContains(t, err, "B2")
	require.Equal(t, model.ItemStatusAvailable, f.status(t, "B1"))

	balances, err := f.valuator.GetBalances(ctx)
	require.NoError(t, err)
	require.Empty(t, balances)

	_, err = f.checkout.Checkout(ctx, Request{Barcodes: []string{"B1", "NOPE"}, GoldRate: dec("3000")})
	require.ErrorIs(t, err, inventory.ErrProductNotFound)
	require.Equal(t, model.ItemStatusAvailable, f.status(t, "B1"))
}

func TestCheckoutWithTradeIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK21, "10.000", "100.00")

	result, err := f.checkout.Checkout(ctx, Request{
		Barcodes: []string{"B1"},
		GoldRate: dec("3000.00"),
		TradeIns: []tradein.Request{{
			Purity:             model.PurityK21,
			Weight:             dec("5.000"),
			BuyRate:            dec("2800.00"),
			CustomerNationalID: "NID-1",
			Description:        "old chain",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "30100.00", result.Sale.Data.GrossTotal.StringFixed(2))
	require.Equal(t, "14000.00", result.Sale.Data.TradeInTotal.StringFixed(2))
	require.Equal(t, "16100.00", result.Sale.Data.NetAmount.StringFixed(2))
	require.Len(t, result.TradeIns, 1)
	require.Equal(t, result.Sale.ID, result.TradeIns[0].Data.SaleID)

	stored, err := f.checkout.GetSale(ctx, result.Sale.ID)
	require.NoError(t, err)
	require.Equal(t, "16100.00", stored.Data.NetAmount.StringFixed(2))

	linked, err := f.valuator.GetBySale(ctx, result.Sale.ID)
	require.NoError(t, err)
	require.Len(t, linked, 1)

	balances, err := f.valuator.GetBalances(ctx)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	require.Equal(t, model.PurityK21, balances[0].Purity)
	require.Equal(t, "5.000", balances[0].TotalWeight.StringFixed(3))
}

func TestCheckoutNegativeNet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK18, "1", "0")

	sale, _, err := f.checkout.CommitSale(ctx, Request{
		Barcodes: []string{"B1"},
		GoldRate: dec("2000"),
		TradeIns: []tradein.Request{{
			Purity:             model.PurityK24,
			Weight:             dec("10"),
			BuyRate:            dec("3000"),
			CustomerNationalID: "NID-2",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, "-28000.00", sale.Data.NetAmount.StringFixed(2))
}

func TestCheckoutRateFromLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK21, "10", "100")
	f.addItem(t, "B2", model.PurityK18, "10", "0")

	_, _, err := f.checkout.CommitSale(ctx, Request{Barcodes: []string{"B1"}})
	require.ErrorIs(t, err, rates.ErrRateNotConfigured)
	require.Equal(t, model.ItemStatusAvailable, f.status(t, "B1"))

	_, err = f.ledger.SetRate(ctx, dec("3400"), dec("3000"), dec("2550"))
	require.NoError(t, err)

	sale, _, err := f.checkout.CommitSale(ctx, Request{Barcodes: []string{"B1", "B2"}})
	require.NoError(t, err)
	require.Equal(t, "3000.00", sale.Lines[0].AppliedRate.StringFixed(2))
	require.Equal(t, "2550.00", sale.Lines[1].AppliedRate.StringFixed(2))
	require.Equal(t, "55600.00", sale.Data.GrossTotal.StringFixed(2))
}

func TestCheckoutHardwareFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.drawer.fail = true
	f.addItem(t, "B1", model.PurityK21, "10.000", "100.00")

	result, err := f.checkout.Checkout(ctx, Request{Barcodes: []string{"B1"}, GoldRate: dec("3000")})
	require.NoError(t, err)
	require.Equal(t, HardwareWarning, result.HardwareWarning)
	require.Equal(t, 3, f.drawer.attempts)

	stored, err := f.checkout.GetSale(ctx, result.Sale.ID)
	require.NoError(t, err)
	require.Equal(t, "30100.00", stored.Data.GrossTotal.StringFixed(2))
	require.Equal(t, "30100.00", stored.Data.NetAmount.StringFixed(2))
	require.Equal(t, model.ItemStatusSold, f.status(t, "B1"))

	err = f.checkout.TriggerHardware(ctx, result.Sale.ID)
	require.ErrorIs(t, err, hardware.ErrHardwareUnavailable)
}

func TestGetSaleStable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addItem(t, "B1", model.PurityK21, "10", "100")
	_, err := f.ledger.SetRate(ctx, dec("3400"), dec("3000"), dec("2550"))
	require.NoError(t, err)

	sale, _, err := f.checkout.CommitSale(ctx, Request{Barcodes: []string{"B1"}})
	require.NoError(t, err)

	_, err = f.ledger.SetRate(ctx, dec("3900"), dec("3500"), dec("2900"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		stored, err := f.checkout.GetSale(ctx, sale.ID)
		require.NoError(t, err)
		require.Equal(t, "30100.00", stored.Data.GrossTotal.StringFixed(2))
		require.Equal(t, "3000.00", stored.Lines[0].AppliedRate.StringFixed(2))
		require.Equal(t, "30100.00", stored.Lines[0].PriceFrozen.StringFixed(2))
	}

	_, err = f.checkout.GetSale(ctx, "missing")
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestReceipt(t *testing.T) {
	sale := model.Sale{
		ID: "S1",
		Data: model.SaleData{
			GrossTotal:   dec("30100"),
			TradeInTotal: dec("14000"),
			NetAmount:    dec("16100"),
		},
		Lines: []model.SaleLine{{
			Barcode:      "B1",
			Position:     1,
			AppliedRate:  dec("3000"),
			WeightFrozen: dec("10"),
			PriceFrozen:  dec("30100"),
		}},
	}
	receipt := Receipt(sale)
	require.Contains(t, receipt, "10.000g @ 3000.00  30100.00")
	require.Contains(t, receipt, "Old gold: -14000.00")
	require.Contains(t, receipt, "Net:      16100.00")
}

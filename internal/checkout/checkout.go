// Package checkout - оформление продажи: корзина изделий и скупка лома
// превращаются в одну продажу, после фиксации открывается кассовый ящик.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/inventory"
	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/rates"
	"github.com/iurnickita/goldpos/internal/store"
	"github.com/iurnickita/goldpos/internal/tradein"
)

// Request - запрос на продажу
type Request struct {
	Barcodes []string
	// GoldRate - курс за грамм, замораживается во всех строках.
	// Ноль: курс берется из журнала курсов по пробе каждого изделия.
	GoldRate      decimal.Decimal
	CustomerName  string
	CustomerPhone string
	Cashier       string
	TradeIns      []tradein.Request
}

type Result struct {
	Sale     model.Sale
	TradeIns []model.TradeIn
	// HardwareWarning не пустой, если ящик не открылся. Продажа при этом сохранена.
	HardwareWarning string
}

// Trigger - побочное действие после фиксации
type Trigger interface {
	Fire(ctx context.Context, saleID string, receipt string) error
}

type Orchestrator interface {
	// Checkout = CommitSale + TriggerHardware. Ошибка оборудования не возвращается.
	Checkout(ctx context.Context, req Request) (Result, error)
	// CommitSale - атомарная часть: все изменения видны вместе или ни одного
	CommitSale(ctx context.Context, req Request) (model.Sale, []model.TradeIn, error)
	// TriggerHardware - повторяемая часть, вызывается после фиксации
	TriggerHardware(ctx context.Context, saleID string) error
	GetSale(ctx context.Context, id string) (model.Sale, error)
}

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrBlankBarcode    = errors.New("cart contains a blank barcode")
	ErrDuplicateItem   = errors.New("duplicate item in cart")
	ErrInvalidGoldRate = errors.New("gold rate must be positive")
	ErrSaleNotFound    = errors.New("sale not found")
)

const HardwareWarning = "Sale recorded, but the cash drawer did not open. Use the manual key."

type checkout struct {
	store    store.Store
	valuator tradein.Valuator
	trigger  Trigger
	zaplog   *zap.Logger
	now      func() time.Time
}

func NewCheckout(store store.Store, valuator tradein.Valuator, trigger Trigger, zaplog *zap.Logger) Orchestrator {
	return &checkout{
		store:    store,
		valuator: valuator,
		trigger:  trigger,
		zaplog:   zaplog,
		now:      time.Now,
	}
}

func (c *checkout) Checkout(ctx context.Context, req Request) (Result, error) {
	sale, tradeIns, err := c.CommitSale(ctx, req)
	if err != nil {
		return Result{}, err
	}

	result := Result{Sale: sale, TradeIns: tradeIns}
	// После фиксации отмена запроса уже ничего не меняет
	if err = c.TriggerHardware(context.WithoutCancel(ctx), sale.ID); err != nil {
		c.zaplog.Error("CRITICAL HARDWARE FAILURE: cash drawer did not open, use manual key",
			zap.String("sale", sale.ID),
			zap.String("net", sale.Data.NetAmount.StringFixed(model.MoneyPlaces)),
			zap.Error(err))
		result.HardwareWarning = HardwareWarning
	}
	return result, nil
}

func (c *checkout) CommitSale(ctx context.Context, req Request) (model.Sale, []model.TradeIn, error) {
	// Проверка запроса до любого обращения к хранилищу
	barcodes, err := validate(req)
	if err != nil {
		return model.Sale{}, nil, err
	}

	var sale model.Sale
	var tradeIns []model.TradeIn
	err = c.store.InTx(ctx, func(tx store.Tx) error {
		sale, tradeIns, err = c.commit(ctx, tx, req, barcodes)
		return err
	})
	if err != nil {
		return model.Sale{}, nil, err
	}

	c.zaplog.Info("sale committed",
		zap.String("sale", sale.ID),
		zap.Int("lines", len(sale.Lines)),
		zap.Int("trade-ins", len(tradeIns)),
		zap.String("gross", sale.Data.GrossTotal.StringFixed(model.MoneyPlaces)),
		zap.String("trade-in", sale.Data.TradeInTotal.StringFixed(model.MoneyPlaces)),
		zap.String("net", sale.Data.NetAmount.StringFixed(model.MoneyPlaces)),
		zap.String("cashier", sale.Data.Cashier))
	return sale, tradeIns, nil
}

func validate(req Request) ([]string, error) {
	if len(req.Barcodes) == 0 {
		return nil, ErrEmptyCart
	}
	if req.GoldRate.IsNegative() {
		return nil, ErrInvalidGoldRate
	}

	barcodes := make([]string, 0, len(req.Barcodes))
	seen := make(map[string]struct{}, len(req.Barcodes))
	for i, barcode := range req.Barcodes {
		barcode = strings.TrimSpace(barcode)
		if barcode == "" {
			return nil, fmt.Errorf("%w: position %d", ErrBlankBarcode, i+1)
		}
		if _, ok := seen[barcode]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, barcode)
		}
		seen[barcode] = struct{}{}
		barcodes = append(barcodes, barcode)
	}

	for i, tr := range req.TradeIns {
		if err := tradein.Validate(tr); err != nil {
			return nil, fmt.Errorf("trade-in %d: %w", i+1, err)
		}
	}
	return barcodes, nil
}

// commit выполняется внутри транзакции. Любая ошибка откатывает все изменения.
func (c *checkout) commit(ctx context.Context, tx store.Tx, req Request, barcodes []string) (model.Sale, []model.TradeIn, error) {
	sale := model.Sale{
		ID: uuid.NewString(),
		Data: model.SaleData{
			CustomerName:  strings.TrimSpace(req.CustomerName),
			CustomerPhone: strings.TrimSpace(req.CustomerPhone),
			Cashier:       req.Cashier,
			TransactedAt:  c.now().UTC(),
		},
	}

	// Оценка
	items := make([]model.Item, 0, len(barcodes))
	prices := make([]decimal.Decimal, 0, len(barcodes))
	sellRates := make(map[model.Purity]decimal.Decimal)
	for i, barcode := range barcodes {
		item, err := inventory.FindByBarcode(ctx, tx, barcode)
		if err != nil {
			return model.Sale{}, nil, err
		}
		if !item.Available() {
			return model.Sale{}, nil, fmt.Errorf("%w: %s", inventory.ErrProductNotAvailable, barcode)
		}

		rate, err := c.rateFor(ctx, tx, req.GoldRate, item.Data.Purity, sellRates)
		if err != nil {
			return model.Sale{}, nil, err
		}

		// Цена строки без округления, округляется только при сохранении
		price := item.Data.GrossWeight.Mul(rate).Add(item.Data.MakingCharge)
		items = append(items, item)
		prices = append(prices, price)
		sale.Lines = append(sale.Lines, model.SaleLine{
			ID:           uuid.NewString(),
			SaleID:       sale.ID,
			Barcode:      barcode,
			Position:     i + 1,
			AppliedRate:  rate,
			WeightFrozen: model.RoundWeight(item.Data.GrossWeight),
			PriceFrozen:  model.RoundMoney(price),
		})
	}
	sale.Data.GrossTotal = model.SumMoney(prices...)
	sale.Data.TradeInTotal = decimal.Zero
	sale.Data.NetAmount = sale.Data.GrossTotal

	// Резервирование
	for _, item := range items {
		if err := inventory.ReserveForSale(ctx, tx, item); err != nil {
			return model.Sale{}, nil, err
		}
	}

	// Продажа сохраняется до скупки: записи скупки ссылаются на ее id
	if err := tx.SalePost(ctx, sale); err != nil {
		return model.Sale{}, nil, err
	}

	tradeIns := make([]model.TradeIn, 0, len(req.TradeIns))
	values := make([]decimal.Decimal, 0, len(req.TradeIns))
	for _, tr := range req.TradeIns {
		tradeIn, err := c.valuator.ProcessTradeIn(ctx, tx, tr, sale.ID)
		if err != nil {
			return model.Sale{}, nil, err
		}
		tradeIns = append(tradeIns, tradeIn)
		values = append(values, tradeIn.Data.TotalValue)
	}

	// Итог может быть отрицательным: магазин должен покупателю
	sale.Data.TradeInTotal = model.SumMoney(values...)
	sale.Data.NetAmount = sale.Data.GrossTotal.Sub(sale.Data.TradeInTotal)
	if err := tx.SalePutTotals(ctx, sale.ID, sale.Data.TradeInTotal, sale.Data.NetAmount); err != nil {
		return model.Sale{}, nil, err
	}
	return sale, tradeIns, nil
}

// rateFor - курс из запроса, иначе курс продажи пробы из журнала,
// прочитанный в той же транзакции
func (c *checkout) rateFor(ctx context.Context, tx store.Tx, supplied decimal.Decimal, purity model.Purity, cache map[model.Purity]decimal.Decimal) (decimal.Decimal, error) {
	if !supplied.IsZero() {
		return model.RoundMoney(supplied), nil
	}
	if rate, ok := cache[purity]; ok {
		return rate, nil
	}
	rate, err := rates.SellRateIn(ctx, tx, purity)
	if err != nil {
		return decimal.Zero, err
	}
	cache[purity] = rate
	return rate, nil
}

func (c *checkout) TriggerHardware(ctx context.Context, saleID string) error {
	var receipt string
	sale, err := c.GetSale(ctx, saleID)
	if err != nil {
		// без чека ящик все равно нужно открыть
		c.zaplog.Warn("receipt not built", zap.String("sale", saleID), zap.Error(err))
	} else {
		receipt = Receipt(sale)
	}
	return c.trigger.Fire(ctx, saleID, receipt)
}

func (c *checkout) GetSale(ctx context.Context, id string) (model.Sale, error) {
	sale, err := c.store.SaleGet(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Sale{}, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
		}
		return model.Sale{}, err
	}
	return sale, nil
}

package tradein

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/store"
)

// Request - старое золото, принесенное покупателем
type Request struct {
	Purity             model.Purity
	Weight             decimal.Decimal
	BuyRate            decimal.Decimal // цена за грамм
	CustomerNationalID string
	CustomerPhone      string
	Description        string
}

// Valuator оценивает лом и ведет остаток лома по пробам.
// Остаток только увеличивается: списание (сдача на аффинаж) здесь не реализуется.
type Valuator interface {
	ProcessTradeIn(ctx context.Context, tx store.Tx, req Request, saleID string) (model.TradeIn, error)
	BuyBack(ctx context.Context, req Request) (model.TradeIn, error)
	GetBalances(ctx context.Context) ([]model.ScrapBalance, error)
	GetBySale(ctx context.Context, saleID string) ([]model.TradeIn, error)
}

// Все ошибки проверки скупки оборачивают ErrInvalidTradeIn
var (
	ErrInvalidTradeIn    = errors.New("invalid trade-in")
	ErrInvalidPurity     = fmt.Errorf("%w: purity is unknown", ErrInvalidTradeIn)
	ErrInvalidWeight     = fmt.Errorf("%w: weight must be positive", ErrInvalidTradeIn)
	ErrInvalidBuyRate    = fmt.Errorf("%w: buy rate must be positive", ErrInvalidTradeIn)
	ErrMissingNationalID = fmt.Errorf("%w: customer national id is required", ErrInvalidTradeIn)
)

type valuator struct {
	store store.Store
	now   func() time.Time
}

func NewValuator(store store.Store) Valuator {
	return &valuator{store: store, now: time.Now}
}

// Value - стоимость лома. Округляется только итоговое произведение.
func Value(weight, buyRate decimal.Decimal) decimal.Decimal {
	return model.RoundMoney(weight.Mul(buyRate))
}

func Validate(req Request) error {
	if !req.Purity.Valid() {
		return ErrInvalidPurity
	}
	if !req.Weight.IsPositive() {
		return ErrInvalidWeight
	}
	if !req.BuyRate.IsPositive() {
		return ErrInvalidBuyRate
	}
	if strings.TrimSpace(req.CustomerNationalID) == "" {
		return ErrMissingNationalID
	}
	return nil
}

// ProcessTradeIn записывает скупку и зачисляет вес на остаток лома в той же транзакции,
// чтобы остаток не расходился с суммой записей. saleID пустой при прямой скупке.
func (valuator *valuator) ProcessTradeIn(ctx context.Context, tx store.Tx, req Request, saleID string) (model.TradeIn, error) {
	if err := Validate(req); err != nil {
		return model.TradeIn{}, err
	}

	weight := model.RoundWeight(req.Weight)
	buyRate := model.RoundMoney(req.BuyRate)
	tradeIn := model.TradeIn{
		ID: uuid.NewString(),
		Data: model.TradeInData{
			Purity:             req.Purity,
			Weight:             weight,
			BuyRate:            buyRate,
			TotalValue:         Value(weight, buyRate),
			SaleID:             saleID,
			CustomerNationalID: strings.TrimSpace(req.CustomerNationalID),
			CustomerPhone:      strings.TrimSpace(req.CustomerPhone),
			Description:        req.Description,
			TransactedAt:       valuator.now().UTC(),
		},
	}

	if err := tx.TradeInPost(ctx, tradeIn); err != nil {
		return model.TradeIn{}, err
	}
	if err := tx.ScrapCredit(ctx, tradeIn.Data.Purity, tradeIn.Data.Weight); err != nil {
		return model.TradeIn{}, err
	}
	return tradeIn, nil
}

// BuyBack - прямая скупка за наличные, без продажи
func (valuator *valuator) BuyBack(ctx context.Context, req Request) (model.TradeIn, error) {
	if err := Validate(req); err != nil {
		return model.TradeIn{}, err
	}

	var tradeIn model.TradeIn
	err := valuator.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		tradeIn, err = valuator.ProcessTradeIn(ctx, tx, req, "")
		return err
	})
	if err != nil {
		return model.TradeIn{}, err
	}
	return tradeIn, nil
}

func (valuator *valuator) GetBalances(ctx context.Context) ([]model.ScrapBalance, error) {
	return valuator.store.ScrapGet(ctx)
}

func (valuator *valuator) GetBySale(ctx context.Context, saleID string) ([]model.TradeIn, error) {
	return valuator.store.TradeInGetBySale(ctx, saleID)
}

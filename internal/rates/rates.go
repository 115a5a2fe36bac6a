package rates

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/store"
)

// Ledger - журнал курсов золота. Строки только добавляются,
// текущий курс - последняя активная строка.
type Ledger interface {
	SetRate(ctx context.Context, rate24k, rate21k, rate18k decimal.Decimal) (model.Rate, error)
	GetLatestRate(ctx context.Context) (model.Rate, error)
	GetSellRate(ctx context.Context, purity model.Purity) (decimal.Decimal, error)
	GetHistory(ctx context.Context, limit int) ([]model.Rate, error)
}

var (
	ErrRateNotConfigured = errors.New("gold rate is not configured")
	ErrInvalidRate       = errors.New("gold rate must be positive")
)

const DefaultHistoryLimit = 50

type ledger struct {
	store store.Store
	now   func() time.Time
}

func NewLedger(store store.Store) Ledger {
	return &ledger{store: store, now: time.Now}
}

func (ledger *ledger) SetRate(ctx context.Context, rate24k, rate21k, rate18k decimal.Decimal) (model.Rate, error) {
	for _, r := range []decimal.Decimal{rate24k, rate21k, rate18k} {
		if !r.IsPositive() {
			return model.Rate{}, ErrInvalidRate
		}
	}

	rate := model.Rate{
		ID: uuid.NewString(),
		Data: model.RateData{
			Rate24k:       model.RoundMoney(rate24k),
			Rate21k:       model.RoundMoney(rate21k),
			Rate18k:       model.RoundMoney(rate18k),
			EffectiveDate: ledger.now().UTC(),
			Active:        true,
		},
	}
	// прежние строки не деактивируются - история нужна для отчетов
	if err := ledger.store.RatePost(ctx, rate); err != nil {
		return model.Rate{}, err
	}
	return rate, nil
}

func (ledger *ledger) GetLatestRate(ctx context.Context) (model.Rate, error) {
	return latest(ctx, ledger.store)
}

func (ledger *ledger) GetSellRate(ctx context.Context, purity model.Purity) (decimal.Decimal, error) {
	rate, err := ledger.GetLatestRate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.ForPurity(purity)
}

func (ledger *ledger) GetHistory(ctx context.Context, limit int) ([]model.Rate, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return ledger.store.RateGetHistory(ctx, limit)
}

// RateSource - то, из чего можно прочитать текущий курс:
// Store вне транзакции или Tx внутри нее
type RateSource interface {
	RateGetLatest(ctx context.Context) (model.Rate, error)
}

// SellRateIn читает курс пробы через переданный источник. Нужен оркестратору
// продажи, чтобы курс читался в той же транзакции.
func SellRateIn(ctx context.Context, src RateSource, purity model.Purity) (decimal.Decimal, error) {
	rate, err := latest(ctx, src)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.ForPurity(purity)
}

func latest(ctx context.Context, src RateSource) (model.Rate, error) {
	rate, err := src.RateGetLatest(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Rate{}, ErrRateNotConfigured
		}
		return model.Rate{}, err
	}
	return rate, nil
}

package model

import "github.com/shopspring/decimal"

const (
	MoneyPlaces  = 2
	WeightPlaces = 3
)

// Округление денег до копеек. Применяется только на границе
// (запись в БД, ответ), но не к промежуточным суммам
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

func RoundWeight(d decimal.Decimal) decimal.Decimal {
	return d.Round(WeightPlaces)
}

// Сумма с полной точностью, округление один раз в конце
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	return RoundMoney(decimal.Sum(decimal.Zero, values...))
}

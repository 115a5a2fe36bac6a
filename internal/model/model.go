package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Пробы золота

type Purity string

const (
	PurityK24 Purity = "K24"
	PurityK21 Purity = "K21"
	PurityK18 Purity = "K18"
)

var ErrUnknownPurity = errors.New("unknown purity")

// Purities - пробы, с которыми работает магазин (от высшей к низшей)
var Purities = []Purity{PurityK24, PurityK21, PurityK18}

// ParsePurity принимает как короткий код (K21), так и старый формат KARAT_21
func ParsePurity(s string) (Purity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "K24", "KARAT_24", "24K", "24":
		return PurityK24, nil
	case "K21", "KARAT_21", "21K", "21":
		return PurityK21, nil
	case "K18", "KARAT_18", "18K", "18":
		return PurityK18, nil
	default:
		return "", ErrUnknownPurity
	}
}

func (p Purity) Valid() bool {
	switch p {
	case PurityK24, PurityK21, PurityK18:
		return true
	}
	return false
}

// Изделия

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "AVAILABLE"
	ItemStatusSold      ItemStatus = "SOLD"
)

type Item struct {
	Barcode string
	Data    ItemData
}
type ItemData struct {
	ModelName    string
	Purity       Purity
	GrossWeight  decimal.Decimal
	MakingCharge decimal.Decimal
	CostPrice    decimal.Decimal
	Status       ItemStatus
	Version      int
	CreatedAt    time.Time
}

func (item Item) Available() bool {
	return item.Data.Status == ItemStatusAvailable
}

// Курсы золота (только добавление)

type Rate struct {
	ID   string
	Data RateData
}
type RateData struct {
	Rate24k       decimal.Decimal
	Rate21k       decimal.Decimal
	Rate18k       decimal.Decimal
	EffectiveDate time.Time
	Active        bool
}

// Цена за грамм для указанной пробы
func (r Rate) ForPurity(p Purity) (decimal.Decimal, error) {
	switch p {
	case PurityK24:
		return r.Data.Rate24k, nil
	case PurityK21:
		return r.Data.Rate21k, nil
	case PurityK18:
		return r.Data.Rate18k, nil
	default:
		return decimal.Zero, ErrUnknownPurity
	}
}

// Продажи

type Sale struct {
	ID    string
	Data  SaleData
	Lines []SaleLine
}
type SaleData struct {
	CustomerName  string
	CustomerPhone string
	Cashier       string
	TransactedAt  time.Time
	GrossTotal    decimal.Decimal
	TradeInTotal  decimal.Decimal
	NetAmount     decimal.Decimal // может быть отрицательной: магазин должен покупателю
}

// Строка продажи: курс, вес и цена фиксируются на момент продажи
// и больше не меняются
type SaleLine struct {
	ID           string
	SaleID       string
	Barcode      string
	Position     int
	AppliedRate  decimal.Decimal
	WeightFrozen decimal.Decimal
	PriceFrozen  decimal.Decimal
}

// Лом (старое золото)

type TradeIn struct {
	ID   string
	Data TradeInData
}
type TradeInData struct {
	Purity             Purity
	Weight             decimal.Decimal
	BuyRate            decimal.Decimal
	TotalValue         decimal.Decimal
	SaleID             string // пусто при прямой скупке
	CustomerNationalID string
	CustomerPhone      string
	Description        string
	TransactedAt       time.Time
}

type ScrapBalance struct {
	Purity      Purity
	TotalWeight decimal.Decimal
}

// Package memstore - хранилище в памяти. Используется, когда DSN не задан,
// и в тестах доменных пакетов.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/store"
)

type state struct {
	items    map[string]model.Item
	rates    []model.Rate
	sales    map[string]model.Sale
	tradeIns []model.TradeIn
	scrap    map[model.Purity]decimal.Decimal
}

func (s *state) clone() *state {
	c := &state{
		items:    make(map[string]model.Item, len(s.items)),
		rates:    append([]model.Rate(nil), s.rates...),
		sales:    make(map[string]model.Sale, len(s.sales)),
		tradeIns: append([]model.TradeIn(nil), s.tradeIns...),
		scrap:    make(map[model.Purity]decimal.Decimal, len(s.scrap)),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.sales {
		v.Lines = append([]model.SaleLine(nil), v.Lines...)
		c.sales[k] = v
	}
	for k, v := range s.scrap {
		c.scrap[k] = v
	}
	return c
}

type memStore struct {
	mu    sync.RWMutex
	state *state
}

func New() store.Store {
	return &memStore{
		state: &state{
			items: make(map[string]model.Item),
			sales: make(map[string]model.Sale),
			scrap: make(map[model.Purity]decimal.Decimal),
		},
	}
}

func (m *memStore) Close() error {
	return nil
}

// InTx выполняет fn над копией состояния под эксклюзивной блокировкой.
// Копия подменяет состояние только при успехе.
func (m *memStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(&tx{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memStore) ItemPost(_ context.Context, item model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.items[item.Barcode]; ok {
		return store.ErrAlreadyExists
	}
	m.state.items[item.Barcode] = item
	return nil
}

func (m *memStore) RatePost(_ context.Context, rate model.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.rates = append(m.state.rates, rate)
	return nil
}

func (m *memStore) ItemGet(_ context.Context, barcode string) (model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.itemGet(barcode)
}

func (m *memStore) RateGetLatest(_ context.Context) (model.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.rateGetLatest()
}

func (m *memStore) RateGetHistory(_ context.Context, limit int) ([]model.Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// от новых к старым, при равном времени - по порядку добавления
	rates := make([]model.Rate, 0, len(m.state.rates))
	for i := len(m.state.rates) - 1; i >= 0; i-- {
		rates = append(rates, m.state.rates[i])
	}
	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].Data.EffectiveDate.After(rates[j].Data.EffectiveDate)
	})
	if limit > 0 && len(rates) > limit {
		rates = rates[:limit]
	}
	return rates, nil
}

func (m *memStore) SaleGet(_ context.Context, id string) (model.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sale, ok := m.state.sales[id]
	if !ok {
		return model.Sale{}, store.ErrNoRows
	}
	sale.Lines = append([]model.SaleLine(nil), sale.Lines...)
	return sale, nil
}

func (m *memStore) TradeInGetBySale(_ context.Context, saleID string) ([]model.TradeIn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tradeIns []model.TradeIn
	for _, tradeIn := range m.state.tradeIns {
		if tradeIn.Data.SaleID == saleID {
			tradeIns = append(tradeIns, tradeIn)
		}
	}
	return tradeIns, nil
}

func (m *memStore) ScrapGet(_ context.Context) ([]model.ScrapBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var balances []model.ScrapBalance
	for _, purity := range model.Purities {
		if weight, ok := m.state.scrap[purity]; ok {
			balances = append(balances, model.ScrapBalance{Purity: purity, TotalWeight: weight})
		}
	}
	return balances, nil
}

func (s *state) itemGet(barcode string) (model.Item, error) {
	item, ok := s.items[barcode]
	if !ok {
		return model.Item{}, store.ErrNoRows
	}
	return item, nil
}

func (s *state) rateGetLatest() (model.Rate, error) {
	var latest model.Rate
	found := false
	for _, rate := range s.rates {
		if !rate.Data.Active {
			continue
		}
		// при равном времени побеждает добавленная позже
		if !found || !rate.Data.EffectiveDate.Before(latest.Data.EffectiveDate) {
			latest = rate
			found = true
		}
	}
	if !found {
		return model.Rate{}, store.ErrNoRows
	}
	return latest, nil
}

type tx struct {
	state *state
}

func (tx *tx) ItemGet(_ context.Context, barcode string) (model.Item, error) {
	return tx.state.itemGet(barcode)
}

func (tx *tx) RateGetLatest(_ context.Context) (model.Rate, error) {
	return tx.state.rateGetLatest()
}

func (tx *tx) ItemReserve(_ context.Context, barcode string, version int) error {
	item, ok := tx.state.items[barcode]
	if !ok || item.Data.Version != version || item.Data.Status != model.ItemStatusAvailable {
		return store.ErrConflict
	}
	item.Data.Status = model.ItemStatusSold
	item.Data.Version++
	tx.state.items[barcode] = item
	return nil
}

func (tx *tx) SalePost(_ context.Context, sale model.Sale) error {
	if _, ok := tx.state.sales[sale.ID]; ok {
		return store.ErrAlreadyExists
	}
	sale.Lines = append([]model.SaleLine(nil), sale.Lines...)
	for i := range sale.Lines {
		sale.Lines[i].SaleID = sale.ID
	}
	tx.state.sales[sale.ID] = sale
	return nil
}

func (tx *tx) SalePutTotals(_ context.Context, id string, tradeInTotal decimal.Decimal, netAmount decimal.Decimal) error {
	sale, ok := tx.state.sales[id]
	if !ok {
		return store.ErrNoRows
	}
	sale.Data.TradeInTotal = tradeInTotal
	sale.Data.NetAmount = netAmount
	tx.state.sales[id] = sale
	return nil
}

func (tx *tx) TradeInPost(_ context.Context, tradeIn model.TradeIn) error {
	if tradeIn.Data.SaleID != "" {
		if _, ok := tx.state.sales[tradeIn.Data.SaleID]; !ok {
			return store.ErrNoRows
		}
	}
	tx.state.tradeIns = append(tx.state.tradeIns, tradeIn)
	return nil
}

func (tx *tx) ScrapCredit(_ context.Context, purity model.Purity, weight decimal.Decimal) error {
	tx.state.scrap[purity] = tx.state.scrap[purity].Add(weight)
	return nil
}

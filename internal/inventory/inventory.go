package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/store"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductNotAvailable = errors.New("product is not available")
	// ErrProductUnavailable - условное обновление не прошло: изделие продано
	// или изменено параллельной продажей после чтения
	ErrProductUnavailable = errors.New("product became unavailable")
	ErrInvalidItem        = errors.New("invalid item")
	ErrAlreadyExists      = errors.New("barcode already exists")
)

// ItemReader - Store или Tx
type ItemReader interface {
	ItemGet(ctx context.Context, barcode string) (model.Item, error)
}

func FindByBarcode(ctx context.Context, src ItemReader, barcode string) (model.Item, error) {
	item, err := src.ItemGet(ctx, barcode)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Item{}, fmt.Errorf("%w: %s", ErrProductNotFound, barcode)
		}
		return model.Item{}, err
	}
	return item, nil
}

// ReserveForSale переводит изделие AVAILABLE -> SOLD, если его версия
// не изменилась с момента чтения. Единственная защита от двойной продажи.
func ReserveForSale(ctx context.Context, tx store.Tx, item model.Item) error {
	if !item.Available() {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, item.Barcode)
	}
	err := tx.ItemReserve(ctx, item.Barcode, item.Data.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: %s", ErrProductUnavailable, item.Barcode)
		}
		return err
	}
	return nil
}

// Inventory - операции каталога и кассы, не связанные с оформлением продажи
type Inventory interface {
	Scan(ctx context.Context, barcode string) (model.Item, error)
	Get(ctx context.Context, barcode string) (model.Item, error)
	Add(ctx context.Context, item model.Item) (model.Item, error)
}

type inventory struct {
	store store.Store
}

func NewInventory(store store.Store) Inventory {
	return &inventory{store: store}
}

// Scan возвращает изделие только если оно в наличии
func (inventory *inventory) Scan(ctx context.Context, barcode string) (model.Item, error) {
	item, err := FindByBarcode(ctx, inventory.store, strings.TrimSpace(barcode))
	if err != nil {
		return model.Item{}, err
	}
	if !item.Available() {
		return model.Item{}, fmt.Errorf("%w: %s", ErrProductNotAvailable, item.Barcode)
	}
	return item, nil
}

func (inventory *inventory) Get(ctx context.Context, barcode string) (model.Item, error) {
	return FindByBarcode(ctx, inventory.store, strings.TrimSpace(barcode))
}

// Add регистрирует новое изделие. Без штрихкода генерируется UUID.
func (inventory *inventory) Add(ctx context.Context, item model.Item) (model.Item, error) {
	item.Barcode = strings.TrimSpace(item.Barcode)
	if item.Barcode == "" {
		item.Barcode = uuid.NewString()
	}
	if !item.Data.Purity.Valid() ||
		!item.Data.GrossWeight.IsPositive() ||
		item.Data.MakingCharge.IsNegative() ||
		item.Data.CostPrice.IsNegative() {
		return model.Item{}, ErrInvalidItem
	}

	item.Data.GrossWeight = model.RoundWeight(item.Data.GrossWeight)
	item.Data.MakingCharge = model.RoundMoney(item.Data.MakingCharge)
	item.Data.CostPrice = model.RoundMoney(item.Data.CostPrice)
	item.Data.Status = model.ItemStatusAvailable
	item.Data.Version = 0
	item.Data.CreatedAt = time.Now().UTC()

	if err := inventory.store.ItemPost(ctx, item); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.Item{}, fmt.Errorf("%w: %s", ErrAlreadyExists, item.Barcode)
		}
		return model.Item{}, err
	}
	return item, nil
}

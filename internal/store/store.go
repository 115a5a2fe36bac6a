package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/store/config"
)

// Reader - чтение вне транзакции. Каждый вызов видит снимок данных
// на момент запроса и не блокирует пишущих.
type Reader interface {
	ItemGet(ctx context.Context, barcode string) (model.Item, error)
	RateGetLatest(ctx context.Context) (model.Rate, error)
	RateGetHistory(ctx context.Context, limit int) ([]model.Rate, error)
	SaleGet(ctx context.Context, id string) (model.Sale, error)
	TradeInGetBySale(ctx context.Context, saleID string) ([]model.TradeIn, error)
	ScrapGet(ctx context.Context) ([]model.ScrapBalance, error)
}

// Tx - операции одной атомарной единицы работы.
// Либо видны все изменения, либо ни одного.
type Tx interface {
	ItemGet(ctx context.Context, barcode string) (model.Item, error)
	ItemReserve(ctx context.Context, barcode string, version int) error
	RateGetLatest(ctx context.Context) (model.Rate, error)
	SalePost(ctx context.Context, sale model.Sale) error
	SalePutTotals(ctx context.Context, id string, tradeInTotal decimal.Decimal, netAmount decimal.Decimal) error
	TradeInPost(ctx context.Context, tradeIn model.TradeIn) error
	ScrapCredit(ctx context.Context, purity model.Purity, weight decimal.Decimal) error
}

type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
	ItemPost(ctx context.Context, item model.Item) error
	RatePost(ctx context.Context, rate model.Rate) error
	Close() error
}

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("version conflict")
)

// querier - общее у *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	for _, query := range schema {
		if _, err = db.Exec(query); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &store{
		database: db,
	}, nil
}

var schema = []string{
	// Изделия. Штрихкод неизменен после создания,
	// version - счетчик для оптимистической блокировки
	"CREATE TABLE IF NOT EXISTS item (" +
		" barcode VARCHAR (64) PRIMARY KEY," +
		" model_name VARCHAR (100) NOT NULL," +
		" purity VARCHAR (10) NOT NULL," +
		" gross_weight NUMERIC (10, 3) NOT NULL," +
		" making_charge NUMERIC (10, 2) NOT NULL," +
		" cost_price NUMERIC (12, 2) NOT NULL," +
		" status VARCHAR (10) NOT NULL," +
		" version INTEGER NOT NULL DEFAULT 0," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Курсы. Только добавление: на каждое изменение цены новая строка,
	// старые строки остаются для истории
	"CREATE TABLE IF NOT EXISTS gold_rate (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" rate_24k NUMERIC (10, 2) NOT NULL," +
		" rate_21k NUMERIC (10, 2) NOT NULL," +
		" rate_18k NUMERIC (10, 2) NOT NULL," +
		" effective_date TIMESTAMPTZ NOT NULL," +
		" is_active BOOLEAN NOT NULL," +
		" seq BIGSERIAL" +
		" );",
	"CREATE INDEX IF NOT EXISTS gold_rate_effective_idx ON gold_rate (effective_date DESC, seq DESC);",

	"CREATE TABLE IF NOT EXISTS sale (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" customer_name VARCHAR (100)," +
		" customer_phone VARCHAR (30)," +
		" cashier VARCHAR (36)," +
		" transacted_at TIMESTAMPTZ NOT NULL," +
		" gross_total NUMERIC (12, 2) NOT NULL," +
		" trade_in_total NUMERIC (12, 2) NOT NULL," +
		" net_amount NUMERIC (12, 2) NOT NULL" +
		" );",

	// Строки продажи удаляются только вместе с продажей
	"CREATE TABLE IF NOT EXISTS sale_line (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" sale_id VARCHAR (36) NOT NULL REFERENCES sale (id) ON DELETE CASCADE," +
		" barcode VARCHAR (64) NOT NULL REFERENCES item (barcode)," +
		" position INTEGER NOT NULL," +
		" applied_rate NUMERIC (10, 2) NOT NULL," +
		" weight_frozen NUMERIC (10, 3) NOT NULL," +
		" price_frozen NUMERIC (12, 2) NOT NULL" +
		" );",

	// Скупка лома. sale_id пустой при прямой скупке за наличные
	"CREATE TABLE IF NOT EXISTS trade_in (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" sale_id VARCHAR (36) REFERENCES sale (id) ON DELETE CASCADE," +
		" purity VARCHAR (10) NOT NULL," +
		" weight NUMERIC (10, 3) NOT NULL," +
		" buy_rate NUMERIC (10, 2) NOT NULL," +
		" total_value NUMERIC (12, 2) NOT NULL," +
		" customer_national_id VARCHAR (50) NOT NULL," +
		" customer_phone VARCHAR (30)," +
		" description TEXT," +
		" transacted_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Остаток лома: одна строка на пробу
	"CREATE TABLE IF NOT EXISTS scrap_balance (" +
		" purity VARCHAR (10) PRIMARY KEY," +
		" total_weight NUMERIC (12, 3) NOT NULL" +
		" );",
}

func (store *store) Close() error {
	return store.database.Close()
}

func (store *store) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(&tx{q: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func (store *store) ItemGet(ctx context.Context, barcode string) (model.Item, error) {
	return itemGet(ctx, store.database, barcode)
}

func (store *store) RateGetLatest(ctx context.Context) (model.Rate, error) {
	return rateGetLatest(ctx, store.database)
}

func (store *store) ItemPost(ctx context.Context, item model.Item) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO item (barcode, model_name, purity, gross_weight, making_charge, cost_price, status, version, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		item.Barcode,
		item.Data.ModelName,
		string(item.Data.Purity),
		item.Data.GrossWeight,
		item.Data.MakingCharge,
		item.Data.CostPrice,
		string(item.Data.Status),
		item.Data.Version,
		item.Data.CreatedAt)
	if err != nil {
		// Проверка: уже существует
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (store *store) RatePost(ctx context.Context, rate model.Rate) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO gold_rate (id, rate_24k, rate_21k, rate_18k, effective_date, is_active)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		rate.ID,
		rate.Data.Rate24k,
		rate.Data.Rate21k,
		rate.Data.Rate18k,
		rate.Data.EffectiveDate,
		rate.Data.Active)
	return err
}

func (store *store) RateGetHistory(ctx context.Context, limit int) ([]model.Rate, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, rate_24k, rate_21k, rate_18k, effective_date, is_active"+
			" FROM gold_rate"+
			" ORDER BY effective_date DESC, seq DESC"+
			" LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []model.Rate
	for rows.Next() {
		var rate model.Rate
		err := rows.Scan(&rate.ID,
			&rate.Data.Rate24k,
			&rate.Data.Rate21k,
			&rate.Data.Rate18k,
			&rate.Data.EffectiveDate,
			&rate.Data.Active)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

func (store *store) SaleGet(ctx context.Context, id string) (model.Sale, error) {
	var sale model.Sale
	var name, phone, cashier sql.NullString
	row := store.database.QueryRowContext(ctx,
		"SELECT id, customer_name, customer_phone, cashier, transacted_at, gross_total, trade_in_total, net_amount"+
			" FROM sale"+
			" WHERE id = $1",
		id)
	err := row.Scan(&sale.ID,
		&name,
		&phone,
		&cashier,
		&sale.Data.TransactedAt,
		&sale.Data.GrossTotal,
		&sale.Data.TradeInTotal,
		&sale.Data.NetAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Sale{}, ErrNoRows
		}
		return model.Sale{}, err
	}
	sale.Data.CustomerName = name.String
	sale.Data.CustomerPhone = phone.String
	sale.Data.Cashier = cashier.String

	// Строки продажи в порядке корзины
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, sale_id, barcode, position, applied_rate, weight_frozen, price_frozen"+
			" FROM sale_line"+
			" WHERE sale_id = $1"+
			" ORDER BY position",
		id)
	if err != nil {
		return model.Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line model.SaleLine
		err := rows.Scan(&line.ID,
			&line.SaleID,
			&line.Barcode,
			&line.Position,
			&line.AppliedRate,
			&line.WeightFrozen,
			&line.PriceFrozen)
		if err != nil {
			return model.Sale{}, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	return sale, rows.Err()
}

func (store *store) TradeInGetBySale(ctx context.Context, saleID string) ([]model.TradeIn, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, sale_id, purity, weight, buy_rate, total_value, customer_national_id, customer_phone, description, transacted_at"+
			" FROM trade_in"+
			" WHERE sale_id = $1"+
			" ORDER BY transacted_at",
		saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tradeIns []model.TradeIn
	for rows.Next() {
		var tradeIn model.TradeIn
		var linked, phone, description sql.NullString
		var purity string
		err := rows.Scan(&tradeIn.ID,
			&linked,
			&purity,
			&tradeIn.Data.Weight,
			&tradeIn.Data.BuyRate,
			&tradeIn.Data.TotalValue,
			&tradeIn.Data.CustomerNationalID,
			&phone,
			&description,
			&tradeIn.Data.TransactedAt)
		if err != nil {
			return nil, err
		}
		tradeIn.Data.Purity = model.Purity(purity)
		tradeIn.Data.SaleID = linked.String
		tradeIn.Data.CustomerPhone = phone.String
		tradeIn.Data.Description = description.String
		tradeIns = append(tradeIns, tradeIn)
	}
	return tradeIns, rows.Err()
}

func (store *store) ScrapGet(ctx context.Context) ([]model.ScrapBalance, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT purity, total_weight FROM scrap_balance ORDER BY purity DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []model.ScrapBalance
	for rows.Next() {
		var balance model.ScrapBalance
		var purity string
		if err := rows.Scan(&purity, &balance.TotalWeight); err != nil {
			return nil, err
		}
		balance.Purity = model.Purity(purity)
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}

// tx - операции внутри транзакции

type tx struct {
	q querier
}

func (tx *tx) ItemGet(ctx context.Context, barcode string) (model.Item, error) {
	return itemGet(ctx, tx.q, barcode)
}

func (tx *tx) RateGetLatest(ctx context.Context) (model.Rate, error) {
	return rateGetLatest(ctx, tx.q)
}

// Условное обновление: проходит только если изделие в наличии
// и версия совпадает с прочитанной
func (tx *tx) ItemReserve(ctx context.Context, barcode string, version int) error {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE item"+
			" SET status = $1, version = version + 1"+
			" WHERE barcode = $2"+
			"   AND version = $3"+
			"   AND status = $4",
		string(model.ItemStatusSold),
		barcode,
		version,
		string(model.ItemStatusAvailable))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (tx *tx) SalePost(ctx context.Context, sale model.Sale) error {
	_, err := tx.q.ExecContext(ctx,
		"INSERT INTO sale (id, customer_name, customer_phone, cashier, transacted_at, gross_total, trade_in_total, net_amount)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		sale.ID,
		nullString(sale.Data.CustomerName),
		nullString(sale.Data.CustomerPhone),
		nullString(sale.Data.Cashier),
		sale.Data.TransactedAt,
		sale.Data.GrossTotal,
		sale.Data.TradeInTotal,
		sale.Data.NetAmount)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}

	for _, line := range sale.Lines {
		_, err = tx.q.ExecContext(ctx,
			"INSERT INTO sale_line (id, sale_id, barcode, position, applied_rate, weight_frozen, price_frozen)"+
				" VALUES ($1, $2, $3, $4, $5, $6, $7)",
			line.ID,
			sale.ID,
			line.Barcode,
			line.Position,
			line.AppliedRate,
			line.WeightFrozen,
			line.PriceFrozen)
		if err != nil {
			return err
		}
	}
	return nil
}

func (tx *tx) SalePutTotals(ctx context.Context, id string, tradeInTotal decimal.Decimal, netAmount decimal.Decimal) error {
	res, err := tx.q.ExecContext(ctx,
		"UPDATE sale"+
			" SET trade_in_total = $1, net_amount = $2"+
			" WHERE id = $3",
		tradeInTotal,
		netAmount,
		id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (tx *tx) TradeInPost(ctx context.Context, tradeIn model.TradeIn) error {
	_, err := tx.q.ExecContext(ctx,
		"INSERT INTO trade_in (id, sale_id, purity, weight, buy_rate, total_value, customer_national_id, customer_phone, description, transacted_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		tradeIn.ID,
		nullString(tradeIn.Data.SaleID),
		string(tradeIn.Data.Purity),
		tradeIn.Data.Weight,
		tradeIn.Data.BuyRate,
		tradeIn.Data.TotalValue,
		tradeIn.Data.CustomerNationalID,
		nullString(tradeIn.Data.CustomerPhone),
		nullString(tradeIn.Data.Description),
		tradeIn.Data.TransactedAt)
	return err
}

// Зачисление веса на остаток лома: создать строку, если ее нет, иначе прибавить
func (tx *tx) ScrapCredit(ctx context.Context, purity model.Purity, weight decimal.Decimal) error {
	_, err := tx.q.ExecContext(ctx,
		"INSERT INTO scrap_balance (purity, total_weight)"+
			" VALUES ($1, $2)"+
			" ON CONFLICT (purity) DO UPDATE"+
			" SET total_weight = scrap_balance.total_weight + EXCLUDED.total_weight",
		string(purity),
		weight)
	return err
}

// общие запросы

func itemGet(ctx context.Context, q querier, barcode string) (model.Item, error) {
	var item model.Item
	var purity, status string
	row := q.QueryRowContext(ctx,
		"SELECT barcode, model_name, purity, gross_weight, making_charge, cost_price, status, version, created_at"+
			" FROM item"+
			" WHERE barcode = $1",
		barcode)
	err := row.Scan(&item.Barcode,
		&item.Data.ModelName,
		&purity,
		&item.Data.GrossWeight,
		&item.Data.MakingCharge,
		&item.Data.CostPrice,
		&status,
		&item.Data.Version,
		&item.Data.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Item{}, ErrNoRows
		}
		return model.Item{}, err
	}
	item.Data.Purity = model.Purity(purity)
	item.Data.Status = model.ItemStatus(status)
	return item, nil
}

// Текущий курс - последняя по времени действия активная строка
func rateGetLatest(ctx context.Context, q querier) (model.Rate, error) {
	var rate model.Rate
	row := q.QueryRowContext(ctx,
		"SELECT id, rate_24k, rate_21k, rate_18k, effective_date, is_active"+
			" FROM gold_rate"+
			" WHERE is_active"+
			" ORDER BY effective_date DESC, seq DESC"+
			" LIMIT 1")
	err := row.Scan(&rate.ID,
		&rate.Data.Rate24k,
		&rate.Data.Rate21k,
		&rate.Data.Rate18k,
		&rate.Data.EffectiveDate,
		&rate.Data.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Rate{}, ErrNoRows
		}
		return model.Rate{}, err
	}
	return rate, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

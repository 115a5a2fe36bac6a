package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/auth"
	"github.com/iurnickita/goldpos/internal/checkout"
	"github.com/iurnickita/goldpos/internal/handler/config"
	"github.com/iurnickita/goldpos/internal/logger"
	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/service"
	"github.com/iurnickita/goldpos/internal/tradein"
)

func Serve(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, cfg.ServerAddr, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zaplog.Info("server started", zap.String("addr", cfg.ServerAddr))
	return srv.ListenAndServe()
}

type handler struct {
	auth     auth.Auth
	service  service.Service
	baseaddr string
	zaplog   *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, baseaddr string, zaplog *zap.Logger) *handler {
	return &handler{
		auth:     auth,
		service:  service,
		baseaddr: baseaddr,
		zaplog:   zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cashier/login", logger.RequestLogMdlw(h.auth.Login, h.zaplog))
	// касса
	mux.HandleFunc("POST /api/pos/checkout", logger.RequestLogMdlw(h.auth.Middleware(h.PostCheckout), h.zaplog))
	mux.HandleFunc("GET /api/pos/scan/{barcode}", logger.RequestLogMdlw(h.auth.Middleware(h.GetScan), h.zaplog))
	mux.HandleFunc("GET /api/pos/sales/{id}", logger.RequestLogMdlw(h.auth.Middleware(h.GetSale), h.zaplog))
	// курсы
	mux.HandleFunc("POST /api/rates", logger.RequestLogMdlw(h.auth.Middleware(h.PostRate), h.zaplog))
	mux.HandleFunc("GET /api/rates/latest", logger.RequestLogMdlw(h.auth.Middleware(h.GetLatestRate), h.zaplog))
	mux.HandleFunc("GET /api/rates/history", logger.RequestLogMdlw(h.auth.Middleware(h.GetRateHistory), h.zaplog))
	// скупка
	mux.HandleFunc("POST /api/old-gold/buy", logger.RequestLogMdlw(h.auth.Middleware(h.PostBuyBack), h.zaplog))
	mux.HandleFunc("GET /api/old-gold/scrap-inventory", logger.RequestLogMdlw(h.auth.Middleware(h.GetScrapInventory), h.zaplog))
	// каталог
	mux.HandleFunc("POST /api/inventory/items", logger.RequestLogMdlw(h.auth.Middleware(h.PostItem), h.zaplog))

	return mux
}

// Оформление продажи

type TradeInJSON struct {
	Purity             string          `json:"purity"`
	Weight             decimal.Decimal `json:"weight"`
	BuyRate            decimal.Decimal `json:"buy_rate"`
	CustomerNationalID string          `json:"customer_national_id"`
	CustomerPhone      string          `json:"customer_phone,omitempty"`
	Description        string          `json:"description,omitempty"`
}

type PostCheckoutJSONRequest struct {
	Barcodes      []string        `json:"barcodes"`
	GoldRate      decimal.Decimal `json:"gold_rate"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	TradeIns      []TradeInJSON   `json:"trade_ins,omitempty"`
}

type SaleLineJSONResponse struct {
	Position    int    `json:"position"`
	Barcode     string `json:"barcode"`
	AppliedRate string `json:"applied_rate"`
	Weight      string `json:"weight"`
	Price       string `json:"price"`
}

type TradeInJSONResponse struct {
	ID           string    `json:"id"`
	SaleID       string    `json:"sale_id,omitempty"`
	Purity       string    `json:"purity"`
	Weight       string    `json:"weight"`
	BuyRate      string    `json:"buy_rate"`
	TotalValue   string    `json:"total_value"`
	TransactedAt time.Time `json:"transacted_at"`
}

type SaleJSONResponse struct {
	ID              string                 `json:"id"`
	CustomerName    string                 `json:"customer_name,omitempty"`
	CustomerPhone   string                 `json:"customer_phone,omitempty"`
	Cashier         string                 `json:"cashier,omitempty"`
	TransactedAt    time.Time              `json:"transacted_at"`
	GrossTotal      string                 `json:"gross_total"`
	TradeInTotal    string                 `json:"trade_in_total"`
	NetAmount       string                 `json:"net_amount"`
	Lines           []SaleLineJSONResponse `json:"lines"`
	TradeIns        []TradeInJSONResponse  `json:"trade_ins,omitempty"`
	HardwareWarning string                 `json:"hardware_warning,omitempty"`
}

func (h *handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	var checkoutJSON PostCheckoutJSONRequest
	if err := readJSON(r, &checkoutJSON); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := checkout.Request{
		Barcodes:      checkoutJSON.Barcodes,
		GoldRate:      checkoutJSON.GoldRate,
		CustomerName:  checkoutJSON.CustomerName,
		CustomerPhone: checkoutJSON.CustomerPhone,
		Cashier:       r.Header.Get(auth.HeaderUserCodeKey),
	}
	for _, tr := range checkoutJSON.TradeIns {
		tradeInReq, err := tradeInInput(tr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.TradeIns = append(req.TradeIns, tradeInReq)
	}

	result, err := h.service.Checkout(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	saleJSON := saleOutput(result.Sale, result.TradeIns)
	saleJSON.HardwareWarning = result.HardwareWarning
	writeJSON(w, http.StatusCreated, saleJSON)
}

func (h *handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, tradeIns, err := h.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saleOutput(sale, tradeIns))
}

// Изделия

type ItemJSON struct {
	Barcode      string          `json:"barcode"`
	ModelName    string          `json:"model_name"`
	Purity       string          `json:"purity"`
	GrossWeight  decimal.Decimal `json:"gross_weight"`
	MakingCharge decimal.Decimal `json:"making_charge"`
	CostPrice    decimal.Decimal `json:"cost_price"`
}

type ItemJSONResponse struct {
	Barcode      string `json:"barcode"`
	ModelName    string `json:"model_name"`
	Purity       string `json:"purity"`
	GrossWeight  string `json:"gross_weight"`
	MakingCharge string `json:"making_charge"`
	Status       string `json:"status"`
}

func (h *handler) GetScan(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Scan(r.Context(), r.PathValue("barcode"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemOutput(item))
}

func (h *handler) PostItem(w http.ResponseWriter, r *http.Request) {
	var itemJSON ItemJSON
	if err := readJSON(r, &itemJSON); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	purity, err := model.ParsePurity(itemJSON.Purity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.service.AddItem(r.Context(), model.Item{
		Barcode: itemJSON.Barcode,
		Data: model.ItemData{
			ModelName:    itemJSON.ModelName,
			Purity:       purity,
			GrossWeight:  itemJSON.GrossWeight,
			MakingCharge: itemJSON.MakingCharge,
			CostPrice:    itemJSON.CostPrice,
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, itemOutput(item))
}

// Курсы

type PostRateJSONRequest struct {
	Rate24k decimal.Decimal `json:"rate_24k"`
	Rate21k decimal.Decimal `json:"rate_21k"`
	Rate18k decimal.Decimal `json:"rate_18k"`
}

type RateJSONResponse struct {
	ID            string    `json:"id"`
	Rate24k       string    `json:"rate_24k"`
	Rate21k       string    `json:"rate_21k"`
	Rate18k       string    `json:"rate_18k"`
	EffectiveDate time.Time `json:"effective_date"`
	Active        bool      `json:"active"`
}

func (h *handler) PostRate(w http.ResponseWriter, r *http.Request) {
	var rateJSON PostRateJSONRequest
	if err := readJSON(r, &rateJSON); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rate, err := h.service.SetRate(r.Context(), rateJSON.Rate24k, rateJSON.Rate21k, rateJSON.Rate18k)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rateOutput(rate))
}

func (h *handler) GetLatestRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.GetLatestRate(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rateOutput(rate))
}

func (h *handler) GetRateHistory(w http.ResponseWriter, r *http.Request) {
	var limit int
	if s := r.URL.Query().Get("limit"); s != "" {
		var err error
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	history, err := h.service.GetRateHistory(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(history) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	historyJSON := make([]RateJSONResponse, 0, len(history))
	for _, rate := range history {
		historyJSON = append(historyJSON, rateOutput(rate))
	}
	writeJSON(w, http.StatusOK, historyJSON)
}

// Скупка лома

type ScrapJSONResponse struct {
	Purity      string `json:"purity"`
	TotalWeight string `json:"total_weight"`
}

func (h *handler) PostBuyBack(w http.ResponseWriter, r *http.Request) {
	var tradeInJSON TradeInJSON
	if err := readJSON(r, &tradeInJSON); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := tradeInInput(tradeInJSON)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tradeIn, err := h.service.BuyBack(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tradeInOutput(tradeIn))
}

func (h *handler) GetScrapInventory(w http.ResponseWriter, r *http.Request) {
	balances, err := h.service.GetScrapInventory(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	balancesJSON := make([]ScrapJSONResponse, 0, len(balances))
	for _, balance := range balances {
		balancesJSON = append(balancesJSON, ScrapJSONResponse{
			Purity:      string(balance.Purity),
			TotalWeight: balance.TotalWeight.StringFixed(model.WeightPlaces),
		})
	}
	writeJSON(w, http.StatusOK, balancesJSON)
}

// Общее

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientData):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.zaplog.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func readJSON(r *http.Request, v any) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(responseJSON)
}

func tradeInInput(tr TradeInJSON) (tradein.Request, error) {
	purity, err := model.ParsePurity(tr.Purity)
	if err != nil {
		return tradein.Request{}, err
	}
	return tradein.Request{
		Purity:             purity,
		Weight:             tr.Weight,
		BuyRate:            tr.BuyRate,
		CustomerNationalID: tr.CustomerNationalID,
		CustomerPhone:      tr.CustomerPhone,
		Description:        tr.Description,
	}, nil
}

func saleOutput(sale model.Sale, tradeIns []model.TradeIn) SaleJSONResponse {
	saleJSON := SaleJSONResponse{
		ID:            sale.ID,
		CustomerName:  sale.Data.CustomerName,
		CustomerPhone: sale.Data.CustomerPhone,
		Cashier:       sale.Data.Cashier,
		TransactedAt:  sale.Data.TransactedAt,
		GrossTotal:    sale.Data.GrossTotal.StringFixed(model.MoneyPlaces),
		TradeInTotal:  sale.Data.TradeInTotal.StringFixed(model.MoneyPlaces),
		NetAmount:     sale.Data.NetAmount.StringFixed(model.MoneyPlaces),
		Lines:         make([]SaleLineJSONResponse, 0, len(sale.Lines)),
	}
	for _, line := range sale.Lines {
		saleJSON.Lines = append(saleJSON.Lines, SaleLineJSONResponse{
			Position:    line.Position,
			Barcode:     line.Barcode,
			AppliedRate: line.AppliedRate.StringFixed(model.MoneyPlaces),
			Weight:      line.WeightFrozen.StringFixed(model.WeightPlaces),
			Price:       line.PriceFrozen.StringFixed(model.MoneyPlaces),
		})
	}
	for _, tradeIn := range tradeIns {
		saleJSON.TradeIns = append(saleJSON.TradeIns, tradeInOutput(tradeIn))
	}
	return saleJSON
}

func tradeInOutput(tradeIn model.TradeIn) TradeInJSONResponse {
	return TradeInJSONResponse{
		ID:           tradeIn.ID,
		SaleID:       tradeIn.Data.SaleID,
		Purity:       string(tradeIn.Data.Purity),
		Weight:       tradeIn.Data.Weight.StringFixed(model.WeightPlaces),
		BuyRate:      tradeIn.Data.BuyRate.StringFixed(model.MoneyPlaces),
		TotalValue:   tradeIn.Data.TotalValue.StringFixed(model.MoneyPlaces),
		TransactedAt: tradeIn.Data.TransactedAt,
	}
}

func itemOutput(item model.Item) ItemJSONResponse {
	return ItemJSONResponse{
		Barcode:      item.Barcode,
		ModelName:    item.Data.ModelName,
		Purity:       string(item.Data.Purity),
		GrossWeight:  item.Data.GrossWeight.StringFixed(model.WeightPlaces),
		MakingCharge: item.Data.MakingCharge.StringFixed(model.MoneyPlaces),
		Status:       string(item.Data.Status),
	}
}

func rateOutput(rate model.Rate) RateJSONResponse {
	return RateJSONResponse{
		ID:            rate.ID,
		Rate24k:       rate.Data.Rate24k.StringFixed(model.MoneyPlaces),
		Rate21k:       rate.Data.Rate21k.StringFixed(model.MoneyPlaces),
		Rate18k:       rate.Data.Rate18k.StringFixed(model.MoneyPlaces),
		EffectiveDate: rate.Data.EffectiveDate,
		Active:        rate.Data.Active,
	}
}

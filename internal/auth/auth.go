package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/auth/config"
	"github.com/iurnickita/goldpos/internal/token"
)

// Auth - только идентификация кассира. Права доступа не проверяются.
type Auth interface {
	Login(w http.ResponseWriter, r *http.Request)
	Middleware(h http.HandlerFunc) http.HandlerFunc
}

const (
	HeaderUserCodeKey = "X-Cashier-Code"
	cookieUserToken   = "goldposUserToken"
	defaultTokenTTL   = 12 * time.Hour
)

var ErrNoCashier = errors.New("cashier code is empty")

type auth struct {
	cfg    config.Config
	zaplog *zap.Logger
}

func NewAuth(cfg config.Config, zaplog *zap.Logger) Auth {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &auth{cfg: cfg, zaplog: zaplog}
}

type LoginJSONRequest struct {
	Cashier string `json:"cashier"`
}

// Login выдает куку с токеном смены кассира
func (a *auth) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cashier := strings.TrimSpace(req.Cashier)
	if cashier == "" {
		http.Error(w, ErrNoCashier.Error(), http.StatusBadRequest)
		return
	}

	tokenString, err := token.BuildJWTString(cashier, a.cfg.SecretKey, a.cfg.TokenTTL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieUserToken,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(a.cfg.TokenTTL),
	})
	a.zaplog.Info("cashier logged in", zap.String("cashier", cashier))
	w.WriteHeader(http.StatusOK)
}

func (a *auth) Middleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// получение кода кассира
		userCode, err := a.getUserCode(w, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// записываем
		r.Header.Set(HeaderUserCodeKey, userCode)

		// передаём управление хендлеру
		h.ServeHTTP(w, r)
	}
}

func (a *auth) getUserCode(_ http.ResponseWriter, r *http.Request) (string, error) {
	// куки пользователя
	tokenCookie, err := r.Cookie(cookieUserToken)
	if err != nil {
		return "", err
	}
	return token.GetUserCode(tokenCookie.Value, a.cfg.SecretKey)
}

// CookieName - имя куки с токеном, нужно клиентам и тестам
func CookieName() string {
	return cookieUserToken
}

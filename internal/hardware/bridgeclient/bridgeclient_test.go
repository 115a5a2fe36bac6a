package bridgeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBridgeClient(t *testing.T) {
	var receipt ReceiptRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathDrawerOpen, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST "+PathReceipt, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	bridge := NewBridgeClient(srv.URL)
	require.NoError(t, bridge.OpenCashDrawer(context.Background()))
	require.NoError(t, bridge.PrintReceipt(context.Background(), "total 30100.00"))
	require.Equal(t, "total 30100.00", receipt.Content)
	require.True(t, receipt.Cut)
}

func TestBridgeClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewBridgeClient(srv.URL).OpenCashDrawer(context.Background())
	require.ErrorContains(t, err, "503")
}

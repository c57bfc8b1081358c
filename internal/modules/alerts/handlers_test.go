package alerts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAlertsRouter(t *testing.T, prices map[string]string) *chi.Mux {
	t.Helper()

	svc := setupAlerts(t, prices)
	handler := NewHandler(svc, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api/clients/{client}/alerts", func(r chi.Router) {
		r.Get("/", handler.HandleList)
		r.Post("/", handler.HandleCreate)
		r.Delete("/{alert}", handler.HandleDelete)
	})
	return r
}

func TestHandleCreateAndList(t *testing.T) {
	r := setupAlertsRouter(t, map[string]string{"AAPL": "150"})

	req := httptest.NewRequest("POST", "/api/clients/alice/alerts",
		strings.NewReader(`{"symbol":"AAPL","target_price":"140","stop_loss_price":"90"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "alice", created.ClientID)
	assert.NotZero(t, created.ID)

	req = httptest.NewRequest("GET", "/api/clients/alice/alerts", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var statuses []Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].TargetHit)
	assert.False(t, statuses[0].StopLossHit)
}

func TestHandleCreate_Validation(t *testing.T) {
	r := setupAlertsRouter(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"no symbol", `{"target_price":"10"}`},
		{"no bounds", `{"symbol":"AAPL"}`},
		{"bad target", `{"symbol":"AAPL","target_price":"high"}`},
		{"negative stop loss", `{"symbol":"AAPL","stop_loss_price":"-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/clients/alice/alerts", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleDelete(t *testing.T) {
	r := setupAlertsRouter(t, nil)

	req := httptest.NewRequest("POST", "/api/clients/alice/alerts",
		strings.NewReader(`{"symbol":"AAPL","target_price":"140"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created Alert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	req = httptest.NewRequest("DELETE", "/api/clients/alice/alerts/1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("DELETE", "/api/clients/alice/alerts/1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest("DELETE", "/api/clients/alice/alerts/soon", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

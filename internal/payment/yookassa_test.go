package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workday-booking/internal/config"
	"github.com/iliyamo/workday-booking/internal/model"
)

func newYooKassa(url string) *YooKassa {
	return NewYooKassa(config.YooKassaConfig{
		ShopID: "shop", SecretKey: "secret", ReturnURL: "https://t.me/bot",
		BaseURL: url, Timeout: 2 * time.Second,
	})
}

func TestYooKassaCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotence-Key"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["capture"])
		assert.Equal(t, map[string]any{"value": "4000.00", "currency": "RUB"}, body["amount"])
		assert.Equal(t, "42", body["metadata"].(map[string]any)["client_id"])

		_, _ = w.Write([]byte(`{"id":"2d6f","status":"pending","paid":false,
			"amount":{"value":"4000.00","currency":"RUB"},
			"confirmation":{"type":"redirect","confirmation_url":"https://yoomoney.ru/checkout/2d6f"}}`))
	}))
	defer srv.Close()

	p, err := newYooKassa(srv.URL).Create(context.Background(), CreateRequest{
		Amount: decimal.NewFromInt(4000), Currency: "RUB", IdempotencyKey: "key-1",
		Metadata: map[string]string{"client_id": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "2d6f", p.ID)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, "https://yoomoney.ru/checkout/2d6f", p.ConfirmationURL)
}

func TestYooKassaErrorClasses(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		noSideEffect bool
		rejected     bool
	}{
		{"server error is ambiguous", http.StatusInternalServerError, false, false},
		{"bad request is rejected", http.StatusBadRequest, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(`{"type":"error","code":"invalid_request","description":"bad amount"}`))
			}))
			defer srv.Close()

			_, err := newYooKassa(srv.URL).Lookup(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.noSideEffect, errors.Is(err, ErrNoSideEffect))
			assert.Equal(t, tt.rejected, errors.Is(err, ErrRejected))
		})
	}
}

func TestYooKassaDialFailureHasNoSideEffect(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newYooKassa(url).Create(context.Background(), CreateRequest{
		Amount: decimal.NewFromInt(1), Currency: "RUB", IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, ErrNoSideEffect)
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, model.PaymentSucceeded, MapStatus("succeeded"))
	assert.Equal(t, model.PaymentFailed, MapStatus("canceled"))
	assert.Equal(t, model.PaymentPending, MapStatus("waiting_for_capture"))
	assert.Equal(t, model.PaymentPending, MapStatus("pending"))
}

func TestParseNotification(t *testing.T) {
	id, err := ParseNotification([]byte(`{"type":"notification","event":"payment.succeeded","object":{"id":"2d6f","status":"succeeded"}}`))
	require.NoError(t, err)
	assert.Equal(t, "2d6f", id)

	_, err = ParseNotification([]byte(`{"type":"notification"}`))
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = ParseNotification([]byte(`nope`))
	assert.ErrorIs(t, err, model.ErrValidation)
}

package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emperor1p/nclexkeysinternational/internal/domain"
	"github.com/Emperor1p/nclexkeysinternational/internal/gateway"
	"github.com/Emperor1p/nclexkeysinternational/pkg/httpclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.MaxRetries = 0
	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("paystack-test"),
		discardLogger(),
	)

	client := New(Config{
		SecretKey: "sk_test_secret",
		PublicKey: "pk_test_public",
		BaseURL:   srv.URL,
	}, discardLogger(), WithHTTPClient(cb))

	return client, srv
}

func TestInitializeConvertsToMinorUnitsPerCurrency(t *testing.T) {
	for _, plan := range domain.Plans() {
		t.Run(plan.ID, func(t *testing.T) {
			var got initializeRequest
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/transaction/initialize", r.URL.Path)
				require.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				fmt.Fprintf(w, `{"status":true,"data":{"authorization_url":"https://checkout.paystack.com/x","access_code":"acc_1","reference":%q}}`, got.Reference)
			}))

			result, err := client.Initialize(context.Background(), &gateway.IntentRequest{
				Reference: "ref_1",
				Email:     "a@b.com",
				FullName:  "Ada Obi",
				Amount:    plan.Amount,
				Currency:  plan.Currency,
				PlanID:    plan.ID,
			})
			require.NoError(t, err)

			assert.Equal(t, plan.Amount*100, got.Amount)
			assert.Equal(t, plan.Currency, got.Currency)
			assert.Equal(t, "ref_1", result.Reference)
			assert.Equal(t, "https://checkout.paystack.com/x", result.AuthorizationURL)
		})
	}
}

func TestInitializeSendsMetadata(t *testing.T) {
	var got initializeRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"status":true,"data":{"reference":"ref_1"}}`)
	}))

	_, err := client.Initialize(context.Background(), &gateway.IntentRequest{
		Reference: "ref_1",
		Email:     "a@b.com",
		FullName:  "Ada Obi",
		Phone:     "+2348000000000",
		Amount:    30000,
		Currency:  "NGN",
		PlanID:    "nigeria",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada Obi", got.Metadata["full_name"])
	assert.Equal(t, "+2348000000000", got.Metadata["phone"])
	assert.Equal(t, "nigeria", got.Metadata["plan_id"])
}

func TestVerifyStatusMapping(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		want          string
	}{
		{"success", gateway.StatusCompleted},
		{"failed", gateway.StatusFailed},
		{"pending", gateway.StatusPending},
		{"abandoned", gateway.StatusPending},
		{"ongoing", gateway.StatusPending},
		{"queued", gateway.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/transaction/verify/ref_1", r.URL.Path)
				fmt.Fprintf(w, `{"status":true,"data":{"status":%q,"amount":3000000,"currency":"NGN","channel":"card"}}`, tt.gatewayStatus)
			}))

			result, err := client.Verify(context.Background(), "ref_1")
			require.NoError(t, err, "non-success statuses are results, not errors")
			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, int64(3000000), result.Amount)
		})
	}
}

func TestVerifyTransportFailureIsError(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := client.Verify(context.Background(), "ref_1")
	assert.Error(t, err)
}

func TestCheckoutParams(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	params, err := client.CheckoutParams(context.Background(), &domain.PaymentIntent{
		Reference: "ref_1",
		Email:     "a@b.com",
		FullName:  "Ada Obi",
		Amount:    30000,
		Currency:  "NGN",
	})
	require.NoError(t, err)

	assert.Equal(t, "pk_test_public", params.PublicKey)
	assert.Equal(t, int64(3000000), params.Amount)
	assert.Equal(t, "ref_1", params.Reference)
	assert.Equal(t, "Ada Obi", params.Metadata["full_name"])
}

func TestPublicConfigLoadsOnceAcrossConcurrentCallers(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})

	client := New(Config{SecretKey: "sk"}, discardLogger(),
		WithConfigLoader(func(context.Context) (PublicConfig, error) {
			loads.Add(1)
			<-release
			return PublicConfig{PublicKey: "pk_loaded"}, nil
		}))

	intent := &domain.PaymentIntent{Reference: "ref_1", Amount: 60, Currency: "USD"}

	var wg sync.WaitGroup
	results := make([]*gateway.Params, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := client.CheckoutParams(context.Background(), intent)
			require.NoError(t, err)
			results[i] = p
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, p := range results {
		assert.Equal(t, "pk_loaded", p.PublicKey)
	}
}

func TestPublicConfigFailedLoadRetriesOnNextCall(t *testing.T) {
	var loads atomic.Int32
	client := New(Config{SecretKey: "sk"}, discardLogger(),
		WithConfigLoader(func(context.Context) (PublicConfig, error) {
			if loads.Add(1) == 1 {
				return PublicConfig{}, errors.New("config endpoint down")
			}
			return PublicConfig{PublicKey: "pk_second_try"}, nil
		}))

	intent := &domain.PaymentIntent{Reference: "ref_1", Amount: 35, Currency: "GBP"}

	_, err := client.CheckoutParams(context.Background(), intent)
	require.Error(t, err)

	params, err := client.CheckoutParams(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "pk_second_try", params.PublicKey)
	assert.Equal(t, int32(2), loads.Load())

	// Cached after success: no third load.
	_, err = client.CheckoutParams(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := New(Config{SecretKey: "sk_test_secret"}, discardLogger())
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1","status":"success"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifyWebhookSignature(valid, body))
	assert.False(t, client.VerifyWebhookSignature(valid, []byte(`{"tampered":true}`)))
	assert.False(t, client.VerifyWebhookSignature("deadbeef", body))
}

func TestParseWebhookEvent(t *testing.T) {
	evt, err := ParseWebhookEvent([]byte(`{"event":"charge.success","data":{"reference":"ref_1","status":"success","amount":3000000,"currency":"NGN"}}`))
	require.NoError(t, err)
	assert.Equal(t, "charge.success", evt.Event)
	assert.Equal(t, "ref_1", evt.Data.Reference)
	assert.Equal(t, int64(3000000), evt.Data.Amount)

	_, err = ParseWebhookEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestRejectedCallSurfacesGatewayMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":false,"message":"Invalid currency"}`)
	}))

	_, err := client.Initialize(context.Background(), &gateway.IntentRequest{
		Reference: "ref_1",
		Email:     "a@b.com",
		Amount:    30000,
		Currency:  "XXX",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid currency")
}

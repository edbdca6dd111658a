package network_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphuderr "github.com/apphud/apphud-go/internal/domain/errors"
	"github.com/apphud/apphud-go/internal/infrastructure/config"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
)

func testAPIConfig(baseURL string) config.APIConfig {
	return config.APIConfig{
		BaseURL:                 baseURL,
		ConnectTimeout:          2 * time.Second,
		RegistrationReadTimeout: 7 * time.Second,
		ReadTimeout:             5 * time.Second,
	}
}

func newTestClient(t *testing.T, baseURL string) *network.Client {
	t.Helper()
	client, err := network.NewClient(testAPIConfig(baseURL), "test-api-key", false)
	require.NoError(t, err)
	return client
}

func TestClientDo(t *testing.T) {
	t.Run("sends auth and identification headers", func(t *testing.T) {
		var got http.Header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			w.Write([]byte(`{"data":{"results":{}}}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Do(context.Background(), http.MethodGet, "/v1/ping", nil)
		require.NoError(t, err)

		assert.Equal(t, "Bearer test-api-key", got.Get("Authorization"))
		assert.Equal(t, "android", got.Get("X-Platform"))
		assert.Equal(t, "play_store", got.Get("X-Store"))
		assert.Equal(t, "Go", got.Get("X-SDK"))
		assert.NotEmpty(t, got.Get("Idempotency-Key"))
	})

	t.Run("retries server errors with fresh idempotency key", func(t *testing.T) {
		var keys []string
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys = append(keys, r.Header.Get("Idempotency-Key"))
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"data":{"results":{"ok":true}}}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		results, err := client.Do(context.Background(), http.MethodPost, "/v1/customers",
			map[string]string{"user_id": "u1"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(results))

		require.Len(t, keys, 3)
		assert.NotEqual(t, keys[0], keys[1])
		assert.NotEqual(t, keys[1], keys[2])
	})

	t.Run("retries 429", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"data":{"results":{}}}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Do(context.Background(), http.MethodGet, "/v1/products", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"errors":[{"title":"bad payload"}]}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Do(context.Background(), http.MethodPost, "/v1/customers", map[string]string{})
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

		var domainErr *apphuderr.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, http.StatusUnprocessableEntity, domainErr.HTTPCode)
		assert.Equal(t, "bad payload", domainErr.Message)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Do(context.Background(), http.MethodGet, "/v1/products", nil)
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("query strings survive path joining", func(t *testing.T) {
		var gotQuery string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("device_id")
			w.Write([]byte(`{"data":{"results":[]}}`))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		_, err := client.Do(context.Background(), http.MethodGet, "/v1/notifications?device_id=d1", nil)
		require.NoError(t, err)
		assert.Equal(t, "d1", gotQuery)
	})

	t.Run("raw fetch returns body without envelope handling", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>screen</html>"))
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL)
		raw, err := client.DoRaw(context.Background(), http.MethodGet, srv.URL+"/screen")
		require.NoError(t, err)
		assert.Equal(t, "<html>screen</html>", string(raw))
	})
}

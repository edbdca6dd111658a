package command_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphud/apphud-go/internal/application/command"
	"github.com/apphud/apphud-go/internal/infrastructure/config"
	"github.com/apphud/apphud-go/internal/infrastructure/network"
	"github.com/apphud/apphud-go/internal/infrastructure/rulescache"
)

const notificationsList = `{
	"data": {
		"results": [
			{
				"id": "ntf1",
				"created_at": "2026-01-02T15:04:05.000+00:00",
				"rule": {
					"id": "rule1",
					"screen_id": "scr1",
					"rule_name": "welcome",
					"screen_name": "Welcome"
				}
			}
		]
	}
}`

type rulesFixture struct {
	fetch       *command.FetchRuleScreens
	screens     *rulescache.Cache
	screenCalls *int32
	ackCalls    *int32
}

func newRulesFixture(t *testing.T, notificationsBody string) *rulesFixture {
	t.Helper()

	var screenCalls, ackCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "d1", r.URL.Query().Get("device_id"))
			w.Write([]byte(notificationsBody))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/v1/notifications/read", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ackCalls, 1)
		w.Write([]byte(`{"data":{"results":{}}}`))
	})
	mux.HandleFunc("/preview_screen/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&screenCalls, 1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/scr1"))
		w.Write([]byte("<html>welcome screen</html>"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := network.NewClient(config.APIConfig{
		BaseURL:                 srv.URL,
		ConnectTimeout:          2 * time.Second,
		RegistrationReadTimeout: 7 * time.Second,
		ReadTimeout:             5 * time.Second,
	}, "test-api-key", false)
	require.NoError(t, err)

	screens, err := rulescache.New(t.TempDir())
	require.NoError(t, err)

	fetch := command.NewFetchRuleScreens(
		network.NewRemoteAPI(client), screens, func() string { return "d1" })

	return &rulesFixture{
		fetch:       fetch,
		screens:     screens,
		screenCalls: &screenCalls,
		ackCalls:    &ackCalls,
	}
}

func TestFetchRuleScreens(t *testing.T) {
	t.Run("fetches, caches and acknowledges", func(t *testing.T) {
		f := newRulesFixture(t, notificationsList)

		require.NoError(t, f.fetch.Execute(context.Background()))

		cached, ok, err := f.screens.Get("rule1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "<html>welcome screen</html>", cached.HTMLScreen)
		assert.Equal(t, "welcome", cached.Rule.RuleName)
		assert.NotZero(t, cached.CreatedAt)

		assert.Equal(t, int32(1), atomic.LoadInt32(f.screenCalls))
		assert.Equal(t, int32(1), atomic.LoadInt32(f.ackCalls))
	})

	t.Run("cached screen is not refetched, only re-acknowledged", func(t *testing.T) {
		f := newRulesFixture(t, notificationsList)

		require.NoError(t, f.fetch.Execute(context.Background()))
		require.NoError(t, f.fetch.Execute(context.Background()))

		assert.Equal(t, int32(1), atomic.LoadInt32(f.screenCalls))
		assert.Equal(t, int32(2), atomic.LoadInt32(f.ackCalls))
	})

	t.Run("no pending rules is a clean no-op", func(t *testing.T) {
		f := newRulesFixture(t, `{"data":{"results":[]}}`)

		require.NoError(t, f.fetch.Execute(context.Background()))
		assert.Equal(t, int32(0), atomic.LoadInt32(f.screenCalls))
		assert.Equal(t, int32(0), atomic.LoadInt32(f.ackCalls))
	})

	t.Run("most actual and delete flow", func(t *testing.T) {
		f := newRulesFixture(t, notificationsList)

		require.NoError(t, f.fetch.Execute(context.Background()))

		screen, ok, err := f.fetch.MostActualRuleScreen()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "rule1", screen.Rule.ID)

		require.NoError(t, f.fetch.DeleteRuleScreen("rule1"))
		_, ok, err = f.fetch.MostActualRuleScreen()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

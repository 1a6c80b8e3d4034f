package portal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raterudder/azzurro/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testZCS(url string) *ZCS {
	z := newZCS("client-code", "auth-key", time.Second)
	z.endpoint = url
	z.now = func() time.Time {
		return time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	}
	return z
}

func TestZCSValidate(t *testing.T) {
	assert.NoError(t, newZCS("a", "b", time.Second).Validate())
	assert.Error(t, newZCS("", "b", time.Second).Validate())
	assert.Error(t, newZCS("a", "", time.Second).Validate())
}

func TestZCSFetch(t *testing.T) {
	t.Run("Request", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "client-code", r.Header.Get("Client"))
			assert.Equal(t, "auth-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Contains(t, r.Header.Get("User-Agent"), "Azzurro/")

			var body map[string]map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			assert.Equal(t, "realtimeData", body["realtimeData"]["command"])
			assert.Equal(t, map[string]any{
				"thingKey":       "ZA1ES123456789",
				"requiredValues": "*",
			}, body["realtimeData"]["params"])

			assert.Equal(t, "historicData", body["historicData"]["command"])
			assert.Equal(t, map[string]any{
				"start":          "2024-05-03T04:00:00Z",
				"end":            "2024-05-03T12:00:00Z",
				"thingKey":       "ZA1ES123456789",
				"requiredValues": historicRequiredValues,
			}, body["historicData"]["params"])

			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "ZA1ES123456789")
		assert.Equal(t, types.StatusSuccess, res.Class)
	})

	t.Run("RealtimeOnly", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "realtimeData")
			assert.NotContains(t, body, "historicData")
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		z := testZCS(ts.URL)
		z.includeHistoric = false
		assert.Equal(t, types.StatusSuccess, z.Fetch(context.Background(), "thing").Class)
	})

	t.Run("Success", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"realtimeData":{"params":{"value":[{"thing":{"powerGenerating":1234.5678901234567}}]}}}`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		require.Equal(t, types.StatusSuccess, res.Class)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.NoError(t, res.Err)
		v, ok := dig(res.Payload, "realtimeData", "params", "value", 0, "thing", "powerGenerating")
		require.True(t, ok)
		assert.Equal(t, json.Number("1234.5678901234567"), v)
	})

	t.Run("ProxyError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// the proxy sometimes answers 200 with an error page
			w.Write([]byte(`<html><head><title>502 Proxy Error</title></head></html>`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusServerError, res.Class)
		assert.Equal(t, http.StatusBadGateway, res.Code)
		assert.Nil(t, res.Payload)
	})

	t.Run("ServiceUnavailable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`<html><title>503 Service Unavailable</title></html>`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusServerError, res.Class)
		assert.Equal(t, http.StatusServiceUnavailable, res.Code)
		assert.Nil(t, res.Payload)
	})

	t.Run("ServerErrorStatus", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"boom"}`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusServerError, res.Class)
		assert.Equal(t, http.StatusInternalServerError, res.Code)
	})

	t.Run("ClientError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid authorization"}`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusClientError, res.Class)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Error(t, res.Err)
		assert.True(t, res.Class.Fatal())
	})

	t.Run("ParseError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"realtimeData":`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusParseError, res.Class)
		assert.Error(t, res.Err)
	})

	t.Run("NullBody", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		}))
		defer ts.Close()

		res := testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusParseError, res.Class)
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer ts.Close()
		defer close(release)

		z := testZCS(ts.URL)
		z.client.Timeout = 50 * time.Millisecond
		res := z.Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusTimeout, res.Class)
		assert.Nil(t, res.Payload)
	})

	t.Run("ContextDeadline", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}))
		defer ts.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		res := testZCS(ts.URL).Fetch(ctx, "thing")
		assert.Equal(t, types.StatusTimeout, res.Class)
	})

	t.Run("TransportError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := ts.URL
		ts.Close()

		res := testZCS(url).Fetch(context.Background(), "thing")
		assert.Equal(t, types.StatusTransportError, res.Class)
		assert.Error(t, res.Err)
		assert.True(t, res.Class.AllowsCache())
	})

	t.Run("DoesNotRetry", func(t *testing.T) {
		var calls int
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`502 Proxy Error`))
		}))
		defer ts.Close()

		testZCS(ts.URL).Fetch(context.Background(), "thing")
		assert.Equal(t, 1, calls)
	})
}

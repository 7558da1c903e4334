package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"docchat-cli/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(srv *httptest.Server, token string) *Client {
	cfg := &config.Config{Server: srv.URL + "/", Token: token}
	return NewClient(cfg, WithHTTPClient(srv.Client()))
}

func TestSetHeaders(t *testing.T) {
	t.Run("with token", func(t *testing.T) {
		c := &Client{token: "my-jwt-token"}
		req, _ := http.NewRequest("POST", "http://example.com", nil)
		c.setHeaders(req)

		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer my-jwt-token", req.Header.Get("Authorization"))
	})

	t.Run("no token", func(t *testing.T) {
		c := &Client{}
		req, _ := http.NewRequest("POST", "http://example.com", nil)
		c.setHeaders(req)

		assert.Empty(t, req.Header.Get("Authorization"))
	})
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(&config.Config{Server: "http://localhost:8000/"})
	assert.Equal(t, "http://localhost:8000", c.baseURL)
	assert.Equal(t, DefaultAskPath, c.askPath)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	c = NewClient(&config.Config{Server: "http://h", AskPath: "api/ask", TimeoutSeconds: 7})
	assert.Equal(t, "/api/ask", c.askPath)
	assert.Equal(t, 7*time.Second, c.httpClient.Timeout)
}

func TestAsk_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, DefaultAskPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, map[string]string{"query": "как дела?"}, req)

		w.Header().Set("Content-Type", "text/plain")
		flusher := w.(http.Flusher)
		for _, part := range []string{"Привет", ", ", "мир"} {
			_, _ = fmt.Fprint(w, part)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	body, err := newTestClient(srv, "secret").Ask(context.Background(), "как дела?")
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "Привет, мир", string(got))
}

func TestAsk_ErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", http.StatusUnauthorized, `{"detail":"Не авторизован"}`, "HTTP 401: Не авторизован"},
		{"no detail", http.StatusInternalServerError, `{}`, "HTTP 500: Ошибка сервера"},
		{"not json", http.StatusBadGateway, "<html>bad gateway</html>", "HTTP 502: Ошибка сервера"},
		{"null detail", http.StatusBadRequest, `{"detail":null}`, "HTTP 400: Ошибка сервера"},
		{"blank detail", http.StatusBadRequest, `{"detail":"  "}`, "HTTP 400: Ошибка сервера"},
		{"list detail", http.StatusUnprocessableEntity, `{"detail": [ {"msg": "field required"} ]}`, `HTTP 422: [{"msg":"field required"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			body, err := newTestClient(srv, "").Ask(context.Background(), "q")
			assert.Nil(t, body)
			require.Error(t, err)
			assert.EqualError(t, err, tt.want)

			var serr *StatusError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.status, serr.StatusCode)
		})
	}
}

func TestAsk_LogsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = fmt.Fprint(w, `{"detail":"forbidden"}`)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	c := NewClient(&config.Config{Server: srv.URL}, WithHTTPClient(srv.Client()), WithLogger(zap.New(core)))
	_, err := c.Ask(context.Background(), "q")
	require.Error(t, err)

	rejected := logs.FilterMessage("ask rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(http.StatusForbidden), rejected[0].ContextMap()["status"])
	assert.Equal(t, "api", rejected[0].ContextMap()["component"])
}

func TestAsk_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(&config.Config{Server: url})
	_, err := c.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending request")
}

func TestAsk_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv, "").Ask(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	memorycollector "bank-dashboard/pkg/metrics/memory"
	"bank-dashboard/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *memorycollector.MemoryCollector) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	collector := memorycollector.NewMemoryCollector()
	config := DefaultClientConfig()
	config.BaseURL = srv.URL + "/"
	config.Metrics = collector
	return NewClient(config), collector
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestFetchTransactions_Success(t *testing.T) {
	client, collector := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, EndpointTransactions, r.URL.Path)
		respond(http.StatusOK, `{"transactions":[
			{"date":"2024-01-02","name":"B","amount":-3},
			{"date":"2024-01-01","name":"A","amount":4.5,"category":["Food"]}
		]}`)(w, r)
	})

	records, err := client.FetchTransactions(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[0].Name)
	assert.Equal(t, "A", records[1].Name)
	assert.Equal(t, "4.5", records[1].Amount.String())

	em := collector.Snapshot().Endpoints[EndpointTransactions]
	assert.Equal(t, int64(1), em.Outcomes["none"])
}

func TestFetchTransactions_EmptyArray(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusOK, `{"transactions":[]}`))

	records, err := client.FetchTransactions(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetchTransactions_BackendError(t *testing.T) {
	client, collector := newTestClient(t, respond(http.StatusInternalServerError, `{"error":"db down"}`))

	_, err := client.FetchTransactions(context.Background())

	require.Error(t, err)
	assert.True(t, IsBackendError(err))
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "db down", reqErr.Message)
	assert.Equal(t, http.StatusInternalServerError, reqErr.Status)
	assert.Contains(t, err.Error(), "db down")

	em := collector.Snapshot().Endpoints[EndpointTransactions]
	assert.Equal(t, int64(1), em.Outcomes["backend"])
}

func TestFetchTransactions_BackendErrorWithoutMessage(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusBadGateway, `{}`))

	_, err := client.FetchTransactions(context.Background())

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, UnknownErrorMessage, reqErr.Message)
}

func TestFetchTransactions_MissingField(t *testing.T) {
	for name, body := range map[string]string{
		"absent": `{"data":[]}`,
		"null":   `{"transactions":null}`,
		"array":  `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, respond(http.StatusOK, body))

			_, err := client.FetchTransactions(context.Background())

			assert.True(t, IsShapeError(err), "got %v", err)
			assert.Equal(t, "shape", ClassifyError(err))
		})
	}
}

func TestFetchTransactions_InvalidJSON(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusInternalServerError, `<html>oops</html>`))

	_, err := client.FetchTransactions(context.Background())

	assert.True(t, IsTransportError(err))
	assert.False(t, IsBackendError(err))
}

func TestFetchTransactions_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	config := DefaultClientConfig()
	config.BaseURL = url
	client := NewClient(config)

	_, err := client.FetchTransactions(context.Background())

	assert.True(t, IsTransportError(err))
	assert.Equal(t, "transport", ClassifyError(err))
}

func TestFetchTransactions_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	config := DefaultClientConfig()
	config.BaseURL = srv.URL
	config.Resilience = resilience.DefaultConfig().WithTimeout(30 * time.Millisecond)
	client := NewClient(config)

	_, err := client.FetchTransactions(context.Background())

	assert.True(t, IsTransportError(err))
	assert.Equal(t, "timeout", ClassifyError(err))
}

func TestFetchTransactions_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(http.StatusServiceUnavailable, `{"error":"busy"}`)(w, r)
	}))
	t.Cleanup(srv.Close)

	config := DefaultClientConfig()
	config.BaseURL = srv.URL
	config.Resilience.CircuitBreaker.Enabled = true
	config.Resilience.CircuitBreaker.ConsecutiveFailures = 2
	client := NewClient(config)

	for i := 0; i < 2; i++ {
		_, err := client.FetchTransactions(context.Background())
		assert.True(t, IsBackendError(err))
	}
	_, err := client.FetchTransactions(context.Background())

	assert.True(t, IsTransportError(err))
	assert.Equal(t, "circuit_open", ClassifyError(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateLinkToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, EndpointCreateLinkToken, r.URL.Path)
		respond(http.StatusOK, `{"link_token":"link-sandbox-123"}`)(w, r)
	})

	token, err := client.CreateLinkToken(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-123", token)
}

func TestCreateLinkToken_Failures(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusOK, `{"link_token":""}`))
	_, err := client.CreateLinkToken(context.Background())
	assert.True(t, IsShapeError(err))

	client, _ = newTestClient(t, respond(http.StatusBadRequest, `{"error":"bad client id"}`))
	_, err = client.CreateLinkToken(context.Background())
	assert.True(t, IsBackendError(err))
	assert.Contains(t, err.Error(), "bad client id")
}

func TestExchangePublicToken(t *testing.T) {
	var got exchangeRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, EndpointExchangePublicToken, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})

	err := client.ExchangePublicToken(context.Background(), "public-sandbox-9")

	require.NoError(t, err)
	assert.Equal(t, "public-sandbox-9", got.PublicToken)
}

func TestExchangePublicToken_Failure(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusInternalServerError, "not json"))

	err := client.ExchangePublicToken(context.Background(), "tok")

	assert.True(t, IsBackendError(err))
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, UnknownErrorMessage, reqErr.Message)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "none", ClassifyError(nil))
	assert.Equal(t, "other", ClassifyError(errors.New("x")))
	assert.Equal(t, "canceled", ClassifyError(&RequestError{Kind: ErrTransport, Err: context.Canceled}))
	assert.Equal(t, "backend", ClassifyError(&RequestError{Kind: ErrBackend}))
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{})

	assert.Equal(t, DefaultBaseURL, client.BaseURL())
	assert.Len(t, client.breakers, 3)
}

func TestFetchTransactions_AttemptsEveryCallByDefault(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		respond(http.StatusInternalServerError, `{"error":"db down"}`)(w, r)
	})

	for i := 0; i < 10; i++ {
		_, err := client.FetchTransactions(context.Background())
		assert.True(t, IsBackendError(err))
	}

	assert.Equal(t, int32(10), calls.Load())
}

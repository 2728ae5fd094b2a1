package link

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"bank-dashboard/pkg/backend"
	"bank-dashboard/pkg/logging/logtest"
	memorycollector "bank-dashboard/pkg/metrics/memory"
	"bank-dashboard/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeBackend struct {
	mu          sync.Mutex
	token       string
	tokenErr    error
	exchangeErr error
	exchanged   []string
	calls       []string
}

func (b *fakeBackend) CreateLinkToken(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "create")
	return b.token, b.tokenErr
}

func (b *fakeBackend) ExchangePublicToken(ctx context.Context, publicToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "exchange")
	b.exchanged = append(b.exchanged, publicToken)
	return b.exchangeErr
}

type fakeRefresher struct {
	backend *fakeBackend
	count   int
}

func (r *fakeRefresher) Refresh(ctx context.Context) error {
	r.count++
	if r.backend != nil {
		r.backend.mu.Lock()
		r.backend.calls = append(r.backend.calls, "refresh")
		r.backend.mu.Unlock()
	}
	return nil
}

type recordingWidget struct {
	token string
	cb    Callbacks
	err   error
}

func (w *recordingWidget) Open(ctx context.Context, token string, cb Callbacks) (Session, error) {
	if w.err != nil {
		return Session{}, w.err
	}
	w.token = token
	w.cb = cb
	return Session{ID: "s-1", LinkToken: token}, nil
}

func TestFlow_CreateLinkToken(t *testing.T) {
	collector := memorycollector.NewMemoryCollector()
	flow := NewFlow(&fakeBackend{token: "link-sandbox-123"}, &recordingWidget{}, &fakeRefresher{}, Config{Metrics: collector})

	assert.Equal(t, "link-sandbox-123", flow.CreateLinkToken(context.Background()))
	assert.Equal(t, int64(1), collector.Snapshot().LinkEvents[EventTokenCreated])
}

func TestFlow_CreateLinkToken_FailureIsEmpty(t *testing.T) {
	logger, logs := logtest.New(zapcore.DebugLevel)
	collector := memorycollector.NewMemoryCollector()
	flow := NewFlow(&fakeBackend{tokenErr: errors.New("boom")}, &recordingWidget{}, &fakeRefresher{},
		Config{Logger: logger, Metrics: collector})

	assert.Equal(t, "", flow.CreateLinkToken(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("error creating link token").Len())
	assert.Equal(t, int64(1), collector.Snapshot().LinkEvents[EventTokenFailed])
}

func TestFlow_Start(t *testing.T) {
	widget := &recordingWidget{}
	flow := NewFlow(&fakeBackend{token: "tok"}, widget, &fakeRefresher{}, Config{})

	session, err := flow.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "tok", session.LinkToken)
	assert.Equal(t, "tok", widget.token)
	assert.NotNil(t, widget.cb.OnSuccess)
	assert.NotNil(t, widget.cb.OnExit)
}

func TestFlow_Start_NoToken(t *testing.T) {
	widget := &recordingWidget{}
	flow := NewFlow(&fakeBackend{}, widget, &fakeRefresher{}, Config{})

	_, err := flow.Start(context.Background())

	assert.ErrorIs(t, err, ErrNoLinkToken)
	assert.Empty(t, widget.token, "widget must not open without a token")
}

func TestFlow_Start_WidgetError(t *testing.T) {
	flow := NewFlow(&fakeBackend{token: "tok"}, &recordingWidget{err: errors.New("closed")}, &fakeRefresher{}, Config{})

	_, err := flow.Start(context.Background())

	assert.EqualError(t, err, "open link widget: closed")
}

func TestFlow_HandleSuccess_ExchangesThenRefreshes(t *testing.T) {
	b := &fakeBackend{}
	r := &fakeRefresher{backend: b}
	collector := memorycollector.NewMemoryCollector()
	flow := NewFlow(b, &recordingWidget{}, r, Config{Metrics: collector})

	flow.HandleSuccess(context.Background(), "public-sandbox-1")

	assert.Equal(t, []string{"public-sandbox-1"}, b.exchanged)
	assert.Equal(t, []string{"exchange", "refresh"}, b.calls)
	assert.Equal(t, int64(1), collector.Snapshot().LinkEvents[EventSuccess])
}

func TestFlow_HandleSuccess_RefreshesAfterExchangeFailure(t *testing.T) {
	logger, logs := logtest.New(zapcore.DebugLevel)
	b := &fakeBackend{exchangeErr: errors.New("invalid public token")}
	r := &fakeRefresher{backend: b}
	flow := NewFlow(b, &recordingWidget{}, r, Config{Logger: logger})

	flow.HandleSuccess(context.Background(), "bad")

	assert.Equal(t, 1, r.count)
	assert.Equal(t, []string{"exchange", "refresh"}, b.calls)
	assert.Equal(t, 1, logs.FilterMessage("error exchanging public token").Len())
}

func TestFlow_HandleExit(t *testing.T) {
	logger, logs := logtest.New(zapcore.DebugLevel)
	r := &fakeRefresher{}
	flow := NewFlow(&fakeBackend{}, &recordingWidget{}, r, Config{Logger: logger})

	flow.HandleExit(context.Background(), errors.New("institution unavailable"))
	flow.HandleExit(context.Background(), nil)

	assert.Zero(t, r.count, "exit must not touch transactions")
	entries := logs.FilterMessage("link flow error").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "institution unavailable")
	assert.Equal(t, 1, logs.FilterMessage("link flow exited").Len())
}

func TestFlow_EndToEnd(t *testing.T) {
	var mu sync.Mutex
	var exchanged string
	linked := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case backend.EndpointCreateLinkToken:
			io.WriteString(w, `{"link_token":"link-sandbox-abc"}`)
		case backend.EndpointExchangePublicToken:
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var body struct {
				PublicToken string `json:"public_token"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			exchanged = body.PublicToken
			linked = true
			io.WriteString(w, `{}`)
		case backend.EndpointTransactions:
			if linked {
				io.WriteString(w, `{"transactions":[{"date":"2024-01-01","name":"Coffee Shop","amount":4.5,"category":["Food"]}]}`)
				return
			}
			io.WriteString(w, `{"transactions":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	config := backend.DefaultClientConfig()
	config.BaseURL = srv.URL
	client := backend.NewClient(config)
	s := store.New(client, store.Config{})
	widget := NewSessionWidget(WidgetConfig{})
	defer widget.Close()
	flow := NewFlow(client, widget, s, Config{})

	session, err := flow.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-abc", session.LinkToken)
	assert.Empty(t, s.Records())

	require.NoError(t, widget.Complete(context.Background(), session.ID, "public-sandbox-xyz"))

	mu.Lock()
	assert.Equal(t, "public-sandbox-xyz", exchanged)
	mu.Unlock()
	require.Len(t, s.Records(), 1)
	assert.Equal(t, "Coffee Shop", s.Records()[0].Name)
	assert.False(t, s.IsLoading())
}

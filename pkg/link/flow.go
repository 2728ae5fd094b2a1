// Package link drives the bank-account linking flow: obtain a link token
// from the backend, hand it to the provider widget, and on success exchange
// the widget's public token before reloading transactions.
package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-dashboard/pkg/logging"
	"bank-dashboard/pkg/metrics"

	"go.uber.org/zap"
)

// Link flow errors
var (
	// ErrNoLinkToken is returned by Start when the backend did not issue a token.
	ErrNoLinkToken = errors.New("link: no link token available")

	// ErrLinkFlow wraps errors reported by the widget on exit.
	ErrLinkFlow = errors.New("link: flow exited with error")
)

// Link event names recorded through metrics.MetricsCollector.
const (
	EventTokenCreated   = "token_created"
	EventTokenFailed    = "token_failed"
	EventSuccess        = "success"
	EventExit           = "exit"
	EventExchangeFailed = "exchange_failed"
)

// TokenIssuer obtains link tokens from the backend.
type TokenIssuer interface {
	CreateLinkToken(ctx context.Context) (string, error)
}

// TokenExchanger hands a widget public token back to the backend.
type TokenExchanger interface {
	ExchangePublicToken(ctx context.Context, publicToken string) error
}

// Backend is the part of the backend client the flow needs.
type Backend interface {
	TokenIssuer
	TokenExchanger
}

// Refresher reloads the transaction list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Callbacks are invoked by the widget when the user finishes the flow.
type Callbacks struct {
	OnSuccess func(ctx context.Context, publicToken string)
	OnExit    func(ctx context.Context, err error)
}

// Session describes an opened widget.
type Session struct {
	ID        string    `json:"session_id"`
	LinkToken string    `json:"link_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Widget is the third-party bank-linking UI. Open presents it with a link
// token; exactly one of the callbacks fires when the user is done.
type Widget interface {
	Open(ctx context.Context, token string, cb Callbacks) (Session, error)
}

// Config holds optional collaborators for the flow.
type Config struct {
	Logger  *logging.Logger
	Metrics metrics.MetricsCollector
}

// Flow coordinates the backend, the widget and the transaction store.
type Flow struct {
	backend   Backend
	widget    Widget
	refresher Refresher
	logger    *logging.Logger
	metrics   metrics.MetricsCollector
}

// NewFlow creates a link flow.
func NewFlow(backend Backend, widget Widget, refresher Refresher, config Config) *Flow {
	if config.Logger == nil {
		config.Logger = logging.L()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}

	return &Flow{
		backend:   backend,
		widget:    widget,
		refresher: refresher,
		logger:    config.Logger.Named("link"),
		metrics:   config.Metrics,
	}
}

// CreateLinkToken asks the backend for a link token. Any failure is logged
// and reported as "".
func (f *Flow) CreateLinkToken(ctx context.Context) string {
	token, err := f.backend.CreateLinkToken(ctx)
	if err != nil {
		f.metrics.RecordLinkEvent(EventTokenFailed)
		f.logger.Error("error creating link token", zap.Error(err))
		return ""
	}

	f.metrics.RecordLinkEvent(EventTokenCreated)
	return token
}

// Start creates a link token and opens the widget with it.
func (f *Flow) Start(ctx context.Context) (Session, error) {
	token := f.CreateLinkToken(ctx)
	if token == "" {
		return Session{}, ErrNoLinkToken
	}

	session, err := f.widget.Open(ctx, token, Callbacks{
		OnSuccess: f.HandleSuccess,
		OnExit:    f.HandleExit,
	})
	if err != nil {
		return Session{}, fmt.Errorf("open link widget: %w", err)
	}

	f.logger.Info("link widget opened", zap.String("session", session.ID))
	return session, nil
}

// HandleSuccess exchanges the public token and then reloads transactions.
// The reload happens whether or not the exchange succeeded.
func (f *Flow) HandleSuccess(ctx context.Context, publicToken string) {
	if err := f.backend.ExchangePublicToken(ctx, publicToken); err != nil {
		f.metrics.RecordLinkEvent(EventExchangeFailed)
		f.logger.Error("error exchanging public token", zap.Error(err))
	} else {
		f.metrics.RecordLinkEvent(EventSuccess)
		f.logger.Info("public token exchanged")
	}

	// Refresh logs its own failures.
	_ = f.refresher.Refresh(ctx)
}

// HandleExit records that the user left the widget. State is unchanged.
func (f *Flow) HandleExit(ctx context.Context, err error) {
	f.metrics.RecordLinkEvent(EventExit)

	if err == nil {
		f.logger.Info("link flow exited")
		return
	}
	f.logger.Error("link flow error", zap.Error(fmt.Errorf("%w: %w", ErrLinkFlow, err)))
}

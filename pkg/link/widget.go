package link

import (
	"context"
	"errors"
	"time"

	"bank-dashboard/pkg/cache/memory"
	"bank-dashboard/pkg/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned when a browser callback names a session
// that is unknown, expired, or already consumed.
var ErrSessionNotFound = errors.New("link: session not found")

// DefaultSessionTTL bounds how long an opened widget may stay pending.
const DefaultSessionTTL = 30 * time.Minute

// WidgetConfig configures a SessionWidget.
type WidgetConfig struct {
	// SessionTTL is how long an open session waits for a callback
	SessionTTL time.Duration

	// MaxSessions caps pending sessions (0 = unlimited)
	MaxSessions int

	Logger *logging.Logger
}

type pendingSession struct {
	session   Session
	callbacks Callbacks
}

// SessionWidget is the server-side half of a browser-hosted widget. Open
// parks the callbacks under a fresh session id; the browser later reports
// the outcome through Complete or Abort, which consume the session.
type SessionWidget struct {
	sessions *memory.MemoryCache[pendingSession]
	ttl      time.Duration
	logger   *logging.Logger
}

// NewSessionWidget creates a widget bridge. Close releases its session store.
func NewSessionWidget(config WidgetConfig) *SessionWidget {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.Logger == nil {
		config.Logger = logging.L()
	}

	return &SessionWidget{
		sessions: memory.NewMemoryCache[pendingSession](memory.MemoryCacheConfig{
			MaxSize:         config.MaxSessions,
			DefaultTTL:      config.SessionTTL,
			CleanupInterval: time.Minute,
		}),
		ttl:    config.SessionTTL,
		logger: config.Logger.Named("widget"),
	}
}

// Open registers a new pending session for token.
func (w *SessionWidget) Open(ctx context.Context, token string, cb Callbacks) (Session, error) {
	session := Session{
		ID:        uuid.NewString(),
		LinkToken: token,
		ExpiresAt: time.Now().Add(w.ttl),
	}

	if err := w.sessions.Set(session.ID, pendingSession{session: session, callbacks: cb}, w.ttl); err != nil {
		return Session{}, err
	}

	w.logger.Debug("link session opened",
		zap.String("session", session.ID),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

// Complete reports a successful link for session id.
func (w *SessionWidget) Complete(ctx context.Context, id, publicToken string) error {
	p, err := w.take(id)
	if err != nil {
		return err
	}
	if p.callbacks.OnSuccess != nil {
		p.callbacks.OnSuccess(ctx, publicToken)
	}
	return nil
}

// Abort reports that the user left the widget for session id. exitErr may be nil.
func (w *SessionWidget) Abort(ctx context.Context, id string, exitErr error) error {
	p, err := w.take(id)
	if err != nil {
		return err
	}
	if p.callbacks.OnExit != nil {
		p.callbacks.OnExit(ctx, exitErr)
	}
	return nil
}

// Pending returns the number of open sessions.
func (w *SessionWidget) Pending() int {
	return w.sessions.Len()
}

// Close drops all pending sessions.
func (w *SessionWidget) Close() error {
	return w.sessions.Close()
}

func (w *SessionWidget) take(id string) (pendingSession, error) {
	p, err := w.sessions.Take(id)
	if err != nil {
		if errors.Is(err, memory.ErrKeyNotFound) || errors.Is(err, memory.ErrInvalidKey) {
			w.logger.Warn("unknown link session", zap.String("session", id))
			return pendingSession{}, ErrSessionNotFound
		}
		return pendingSession{}, err
	}
	return p, nil
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Event is a session-change notification kind.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// ErrNoIssuer is returned by SignIn on a provider built without a SessionIssuer.
var ErrNoIssuer = errors.New("auth provider has no session issuer")

// Identity is who is signed in.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a signed-in identity plus its bearer token.
type Session struct {
	User      Identity  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Listener receives session-change notifications. session is nil on sign-out.
type Listener func(event Event, session *Session)

// Subscription is a handle on a registered Listener.
type Subscription interface {
	// Unsubscribe removes the listener. Calls after the first are no-ops.
	Unsubscribe()
}

// Provider tracks the current session and notifies listeners when it changes.
// It is safe for concurrent use. Listeners are called synchronously, in
// registration order, outside the provider's lock.
type Provider struct {
	issuer SessionIssuer
	logger *slog.Logger

	mu        sync.Mutex
	session   *Session
	listeners map[uint64]Listener
	nextID    uint64
}

// NewProvider creates a provider. issuer may be nil when sessions are only
// set through SetSession.
func NewProvider(issuer SessionIssuer, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		issuer:    issuer,
		logger:    logger,
		listeners: make(map[uint64]Listener),
	}
}

// CurrentUser returns the signed-in identity, or nil when signed out.
func (p *Provider) CurrentUser(ctx context.Context) (*Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return nil, nil
	}
	user := p.session.User
	return &user, nil
}

// Token returns the current bearer token, or "" when signed out.
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return ""
	}
	return p.session.Token
}

// OnSessionChange registers fn for session-change notifications.
func (p *Provider) OnSessionChange(fn Listener) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return &subscription{provider: p, id: id}
}

// SignIn exchanges credentials for a session through the issuer and
// announces it with EventSignedIn.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if p.issuer == nil {
		return nil, ErrNoIssuer
	}
	session, err := p.issuer.Login(ctx, email, password)
	if err != nil {
		p.logger.Warn("Sign-in failed", "email", email, "error", err)
		return nil, err
	}
	p.SetSession(session)
	return session, nil
}

// SetSession installs session as current. A new user emits EventSignedIn;
// the same user with a new token emits EventTokenRefreshed.
func (p *Provider) SetSession(session *Session) {
	p.mu.Lock()
	event := EventSignedIn
	if p.session != nil && p.session.User.ID == session.User.ID {
		event = EventTokenRefreshed
	}
	s := *session
	p.session = &s
	p.mu.Unlock()

	p.logger.Info("Session changed", "event", event, "user_id", s.User.ID)
	p.emit(event, &s)
}

// SignOut clears the current session and emits EventSignedOut.
// Signing out while already signed out does nothing.
func (p *Provider) SignOut(ctx context.Context) {
	p.mu.Lock()
	if p.session == nil {
		p.mu.Unlock()
		return
	}
	userID := p.session.User.ID
	p.session = nil
	p.mu.Unlock()

	p.logger.Info("Session changed", "event", EventSignedOut, "user_id", userID)
	p.emit(EventSignedOut, nil)
}

func (p *Provider) emit(event Event, session *Session) {
	p.mu.Lock()
	ids := make([]uint64, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, p.listeners[id])
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		var copied *Session
		if session != nil {
			s := *session
			copied = &s
		}
		fn(event, copied)
	}
}

func (p *Provider) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners, id)
}

type subscription struct {
	provider *Provider
	id       uint64
	once     sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.provider.remove(s.id) })
}

// Package session owns the credential state and the secure channel, and
// exposes the full command surface of the control server: authentication,
// drone and flight commands, and the telemetry/video push subscriptions.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"

	"github.com/pion/logging"

	"github.com/skyward/dronelink/pkg/securechannel"
	"github.com/skyward/dronelink/pkg/store"
	"github.com/skyward/dronelink/pkg/transport"
	"github.com/skyward/dronelink/pkg/wire"
)

// Store keys for persisted credential state.
const (
	// KeyAccess holds the access token.
	KeyAccess = "access"

	// KeyRefresh holds the refresh token.
	KeyRefresh = "refresh"

	// KeySessionID holds the id of an in-progress drone control session,
	// kept so a restarted client can detect a resumable session.
	KeySessionID = "session_id"
)

// Config configures a Session.
type Config struct {
	// Endpoint is the control server URL (wss://...).
	// Required unless Dial is set.
	Endpoint string

	// TLSConfig is an optional TLS client configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables certificate validation. Development
	// configurations only.
	InsecureSkipVerify bool

	// Store persists tokens and the session id. Required.
	Store store.Store

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// Dial overrides transport dialing. Tests use this to connect the
	// session to an in-memory pipe instead of a real endpoint.
	Dial func(ctx context.Context) (transport.Transport, error)
}

// Session is the single owner of credentials and of the secure channel.
//
// One Session serves one logical user. Request/response calls are serialized
// internally; push subscriptions run concurrently on top of the same shared
// decrypted stream.
type Session struct {
	config Config
	store  store.Store
	log    logging.LeveledLogger

	// callMu serializes request/response calls: the protocol has no
	// correlation ids, so the next inbound message after a request is taken
	// as its response. See call.
	callMu sync.Mutex

	mu      sync.Mutex
	channel *securechannel.Channel
	access  string
	refresh string
}

// New creates a Session. No I/O happens until Init.
func New(config Config) (*Session, error) {
	if config.Endpoint == "" && config.Dial == nil {
		return nil, ErrNoEndpoint
	}
	if config.Store == nil {
		return nil, ErrNoStore
	}

	s := &Session{
		config: config,
		store:  config.Store,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("session")
	}
	return s, nil
}

// Init opens the transport, runs the key exchange, and tries to resume the
// persisted authentication state.
//
// Returns true when persisted tokens were found and refreshed successfully.
// Returns false without error when no tokens are persisted, or when the
// server rejected the refresh; in the latter case all persisted credential
// state is wiped and the caller must route to login. The channel stays open
// either way so a subsequent login can use it.
func (s *Session) Init(ctx context.Context) (bool, error) {
	if err := s.open(ctx); err != nil {
		return false, err
	}

	access, errA := s.store.Get(KeyAccess)
	refresh, errR := s.store.Get(KeyRefresh)
	if errors.Is(errA, store.ErrNotFound) || errors.Is(errR, store.ErrNotFound) {
		return false, nil
	}
	if errA != nil {
		return false, errA
	}
	if errR != nil {
		return false, errR
	}

	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	s.mu.Unlock()

	if err := s.refreshTokens(ctx); err != nil {
		if IsRemote(err) {
			// Stale or revoked tokens: start over from a clean slate.
			if s.log != nil {
				s.log.Infof("token refresh rejected, clearing credentials: %v", err)
			}
			if lerr := s.Logout(); lerr != nil {
				return false, lerr
			}
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// open dials a fresh transport and performs the key exchange. An existing
// channel is closed first; reconnecting is always a full re-dial.
func (s *Session) open(ctx context.Context) error {
	s.mu.Lock()
	old := s.channel
	s.channel = nil
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	var (
		tr  transport.Transport
		err error
	)
	if s.config.Dial != nil {
		tr, err = s.config.Dial(ctx)
	} else {
		tr, err = transport.DialWebSocket(ctx, transport.WebSocketConfig{
			URL:                s.config.Endpoint,
			TLSConfig:          s.config.TLSConfig,
			InsecureSkipVerify: s.config.InsecureSkipVerify,
			LoggerFactory:      s.config.LoggerFactory,
		})
	}
	if err != nil {
		return err
	}

	ch, err := securechannel.Dial(ctx, tr, securechannel.Config{
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		tr.Close()
		return err
	}

	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()
	return nil
}

// Close shuts down the channel. Persisted credentials are kept.
func (s *Session) Close() error {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Close()
}

// call sends one request and takes the next message on the shared stream as
// its response.
//
// The protocol carries no correlation identifier: correctness depends on the
// server answering requests in order and on at most one call being
// outstanding. callMu enforces the single-outstanding-call constraint for
// this Session. A push event arriving between send and reply can still be
// taken as the response; that ordering assumption is part of the wire
// contract, not something this layer papers over.
func (s *Session) call(ctx context.Context, req, out any) error {
	s.callMu.Lock()
	defer s.callMu.Unlock()

	ch := s.currentChannel()
	if ch == nil {
		return ErrNotConnected
	}

	// Subscribe before sending so the response cannot slip past.
	sub := ch.Subscribe()
	defer sub.Close()

	if err := ch.Send(req); err != nil {
		return err
	}

	msg, err := sub.Next(ctx)
	if err != nil {
		return err
	}
	if msg.Err != nil {
		return &RemoteError{Message: *msg.Err}
	}
	if out != nil {
		return msg.Decode(out)
	}
	return nil
}

func (s *Session) currentChannel() *securechannel.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// token returns the current access token, or ErrNotAuthenticated.
func (s *Session) token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.access == "" {
		return "", ErrNotAuthenticated
	}
	return s.access, nil
}

// Authenticated reports whether an access token is loaded.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access != ""
}

// Register creates a new account and stores the granted tokens.
func (s *Session) Register(ctx context.Context, username, email, password string) error {
	var grant wire.TokenGrant
	err := s.call(ctx, wire.RegisterRequest{
		Action:   wire.ActionRegister,
		Username: username,
		Email:    email,
		Password: password,
	}, &grant)
	if err != nil {
		return err
	}
	return s.storeGrant(grant)
}

// Login authenticates an existing account and stores the granted tokens.
func (s *Session) Login(ctx context.Context, email, password string) error {
	var grant wire.TokenGrant
	err := s.call(ctx, wire.LoginRequest{
		Action:   wire.ActionLogin,
		Email:    email,
		Password: password,
	}, &grant)
	if err != nil {
		return err
	}
	return s.storeGrant(grant)
}

// refreshTokens exchanges the refresh token for a fresh pair.
func (s *Session) refreshTokens(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.refresh
	s.mu.Unlock()

	var grant wire.TokenGrant
	err := s.call(ctx, wire.RefreshTokenRequest{
		Action:       wire.ActionRefreshToken,
		RefreshToken: refresh,
	}, &grant)
	if err != nil {
		return err
	}
	return s.storeGrant(grant)
}

// storeGrant validates and persists a token pair. A grant missing either
// token is rejected wholesale; partial tokens are never stored.
func (s *Session) storeGrant(grant wire.TokenGrant) error {
	if grant.AccessToken == "" || grant.RefreshToken == "" {
		return ErrMalformedGrant
	}
	if err := s.store.Set(KeyAccess, grant.AccessToken); err != nil {
		return err
	}
	if err := s.store.Set(KeyRefresh, grant.RefreshToken); err != nil {
		return err
	}

	s.mu.Lock()
	s.access = grant.AccessToken
	s.refresh = grant.RefreshToken
	s.mu.Unlock()
	return nil
}

// Logout erases all persisted credential and session state. The channel
// stays open; the caller decides whether to close it.
func (s *Session) Logout() error {
	var firstErr error
	for _, key := range []string{KeyAccess, KeyRefresh, KeySessionID} {
		if err := s.store.Delete(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	s.mu.Unlock()
	return firstErr
}

// ResumableSessionID returns the persisted drone session id, if any. A
// restarted client uses this to detect an in-progress control session.
func (s *Session) ResumableSessionID() (string, bool) {
	id, err := s.store.Get(KeySessionID)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"giftrails/internal/fault"
)

// AuthAPI exchanges proof of address ownership for a backend session token.
type AuthAPI interface {
	Connect(ctx context.Context, address, signature string) (string, error)
}

// Session is the single owner of the connected address and auth token.
// Every other component reads it; only Connect and Disconnect write it.
type Session struct {
	mu      sync.RWMutex
	address string
	token   string

	store Store
	auth  AuthAPI
	log   *logrus.Logger
}

func New(store Store, auth AuthAPI, log *logrus.Logger) *Session {
	return &Session{store: store, auth: auth, log: log}
}

// Restore loads a previously persisted session, if any.
func (s *Session) Restore(ctx context.Context) error {
	rec, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	s.mu.Lock()
	s.address = strings.ToLower(rec.Address)
	s.token = rec.Token
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"address": rec.Address}).Info("session restored")
	return nil
}

// Connect exchanges the address + signature for a session token and
// persists both. Any partially written state is cleared on failure.
func (s *Session) Connect(ctx context.Context, address, signature string) error {
	if !common.IsHexAddress(address) {
		return fault.Field("address", "invalid wallet address")
	}
	address = strings.ToLower(address)

	token, err := s.auth.Connect(ctx, address, signature)
	if err != nil {
		s.reset(ctx)
		return err
	}
	if token == "" {
		s.reset(ctx)
		return fault.New(fault.KindAuthentication, "backend returned an empty session token")
	}

	s.mu.Lock()
	s.address = address
	s.token = token
	s.mu.Unlock()

	if err := s.store.Save(ctx, Record{Address: address, Token: token, UpdatedAt: time.Now()}); err != nil {
		s.log.WithFields(logrus.Fields{"error": err}).Warn("session persist failed")
	}
	s.log.WithFields(logrus.Fields{"address": address}).Info("wallet connected")
	return nil
}

// Disconnect clears all session state. Deliberately global: everything
// scoped to the address goes with it.
func (s *Session) Disconnect(ctx context.Context) error {
	s.reset(ctx)
	s.log.Info("wallet disconnected")
	return nil
}

func (s *Session) reset(ctx context.Context) {
	s.mu.Lock()
	s.address = ""
	s.token = ""
	s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		s.log.WithFields(logrus.Fields{"error": err}).Warn("session clear failed")
	}
}

// Address returns the lowercase-normalized connected address, or "".
func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// Token returns the auth token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Connected reports whether an address and token are both present.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address != "" && s.token != ""
}

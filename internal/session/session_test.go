package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"giftrails/internal/fault"
)

const addr = "0xAbCd00000000000000000000000000000000AbCd"

type stubAuth struct {
	token string
	err   error
}

func (s *stubAuth) Connect(context.Context, string, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestConnectNormalizesAndPersists(t *testing.T) {
	store := NewMemoryStore()
	sess := New(store, &stubAuth{token: "tok-1"}, testLogger())
	ctx := context.Background()

	if err := sess.Connect(ctx, addr, "sig"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if sess.Address() != "0xabcd00000000000000000000000000000000abcd" {
		t.Fatalf("address not lowercased: %q", sess.Address())
	}
	if sess.Token() != "tok-1" {
		t.Fatalf("unexpected token %q", sess.Token())
	}
	if !sess.Connected() {
		t.Fatalf("expected connected session")
	}

	rec, _ := store.Load(ctx)
	if rec == nil || rec.Token != "tok-1" {
		t.Fatalf("session was not persisted: %+v", rec)
	}
}

func TestConnectRejectsMalformedAddress(t *testing.T) {
	sess := New(NewMemoryStore(), &stubAuth{token: "t"}, testLogger())
	err := sess.Connect(context.Background(), "not-an-address", "sig")
	if fault.KindOf(err) != fault.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConnectFailureClearsPartialState(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), Record{Address: "0xold", Token: "old"})
	sess := New(store, &stubAuth{err: errors.New("signature rejected")}, testLogger())

	if err := sess.Connect(context.Background(), addr, "sig"); err == nil {
		t.Fatalf("expected connect to fail")
	}
	if sess.Address() != "" || sess.Token() != "" {
		t.Fatalf("partial state left behind: %q %q", sess.Address(), sess.Token())
	}
	if rec, _ := store.Load(context.Background()); rec != nil {
		t.Fatalf("store not cleared: %+v", rec)
	}
}

func TestDisconnectClearsEverything(t *testing.T) {
	store := NewMemoryStore()
	sess := New(store, &stubAuth{token: "tok"}, testLogger())
	ctx := context.Background()

	if err := sess.Connect(ctx, addr, "sig"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := sess.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if sess.Address() != "" || sess.Token() != "" || sess.Connected() {
		t.Fatalf("session not cleared")
	}
	if rec, _ := store.Load(ctx); rec != nil {
		t.Fatalf("store not cleared: %+v", rec)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if rec, err := store.Load(ctx); err != nil || rec != nil {
		t.Fatalf("expected empty store, got %+v err %v", rec, err)
	}

	record := Record{Address: "0xabc", Token: "tok"}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened := NewFileStore(path)
	rec, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec == nil || rec.Token != "tok" {
		t.Fatalf("unexpected record %+v", rec)
	}

	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if rec, _ := reopened.Load(ctx); rec != nil {
		t.Fatalf("store not cleared: %+v", rec)
	}
	// Clearing twice must not fail.
	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestRestoreLoadsPersistedSession(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save(context.Background(), Record{Address: "0xABC0000000000000000000000000000000000abc", Token: "tok"})
	sess := New(store, &stubAuth{}, testLogger())

	if err := sess.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if sess.Address() != "0xabc0000000000000000000000000000000000abc" {
		t.Fatalf("restored address not normalized: %q", sess.Address())
	}
	if !sess.Connected() {
		t.Fatalf("expected restored session to be connected")
	}
}

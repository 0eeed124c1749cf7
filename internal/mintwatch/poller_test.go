package mintwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"giftrails/internal/giftcard"
)

type scriptedAPI struct {
	mu       sync.Mutex
	statuses []string
	errs     []error
	calls    int
}

func (s *scriptedAPI) MintStatus(_ context.Context, _ string) (giftcard.MintStatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return giftcard.MintStatusResult{}, s.errs[idx]
	}
	status := giftcard.MintPending
	if idx < len(s.statuses) {
		status = s.statuses[idx]
	} else if len(s.statuses) > 0 {
		status = s.statuses[len(s.statuses)-1]
	}
	return giftcard.MintStatusResult{
		Status:     status,
		Background: giftcard.Background{ID: "bg-1", TransactionHash: "0xabc"},
	}, nil
}

func (s *scriptedAPI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestPollerStopsOnConfirmed(t *testing.T) {
	api := &scriptedAPI{statuses: []string{giftcard.MintPending, giftcard.MintPending, giftcard.MintConfirmed}}
	poller := NewPoller(api, 5*time.Millisecond, 0, testLogger())

	watch := poller.Start(context.Background(), "bg-1")
	defer watch.Stop()

	var result Result
	select {
	case result = <-watch.C:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for result")
	}

	if result.Status != giftcard.MintConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", result.Status)
	}
	if result.TxHash != "0xabc" {
		t.Fatalf("expected tx hash, got %q", result.TxHash)
	}
	if got := api.callCount(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}

	// No further ticks after the terminal status.
	time.Sleep(30 * time.Millisecond)
	if got := api.callCount(); got != 3 {
		t.Fatalf("poller kept ticking after CONFIRMED: %d polls", got)
	}

	select {
	case _, ok := <-watch.C:
		if ok {
			t.Fatalf("expected at most one result")
		}
	default:
	}
}

func TestPollerStopsOnFailed(t *testing.T) {
	api := &scriptedAPI{statuses: []string{giftcard.MintFailed}}
	poller := NewPoller(api, 5*time.Millisecond, 0, testLogger())

	watch := poller.Start(context.Background(), "bg-1")
	defer watch.Stop()

	select {
	case result := <-watch.C:
		if result.Status != giftcard.MintFailed {
			t.Fatalf("expected FAILED, got %s", result.Status)
		}
		if result.TimedOut {
			t.Fatalf("backend failure must not be reported as a timeout")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for result")
	}
}

func TestPollerToleratesTransientErrors(t *testing.T) {
	api := &scriptedAPI{
		errs:     []error{errors.New("connection reset"), errors.New("connection reset")},
		statuses: []string{"", "", giftcard.MintConfirmed},
	}
	poller := NewPoller(api, 5*time.Millisecond, 0, testLogger())

	watch := poller.Start(context.Background(), "bg-1")
	defer watch.Stop()

	select {
	case result := <-watch.C:
		if result.Status != giftcard.MintConfirmed {
			t.Fatalf("expected CONFIRMED after transient errors, got %s", result.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("poller terminated on transient errors")
	}
}

func TestStopIsIdempotentAndEndsPolling(t *testing.T) {
	api := &scriptedAPI{statuses: []string{giftcard.MintPending}}
	poller := NewPoller(api, 5*time.Millisecond, 0, testLogger())

	watch := poller.Start(context.Background(), "bg-1")
	time.Sleep(20 * time.Millisecond)
	watch.Stop()
	watch.Stop()

	settled := api.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := api.callCount(); got > settled+1 {
		t.Fatalf("polling continued after stop: %d -> %d", settled, got)
	}

	select {
	case <-watch.C:
		t.Fatalf("stopped watch must not emit a result")
	default:
	}
}

func TestPollerTimesOut(t *testing.T) {
	api := &scriptedAPI{statuses: []string{giftcard.MintPending}}
	poller := NewPoller(api, 5*time.Millisecond, 25*time.Millisecond, testLogger())

	watch := poller.Start(context.Background(), "bg-1")
	defer watch.Stop()

	select {
	case result := <-watch.C:
		if result.Status != giftcard.MintFailed || !result.TimedOut {
			t.Fatalf("expected timed-out failure, got %+v", result)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a timeout result")
	}
}

package mintwatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"giftrails/internal/giftcard"
)

// StatusAPI reads the state of a background-mint resource.
type StatusAPI interface {
	MintStatus(ctx context.Context, backgroundID string) (giftcard.MintStatusResult, error)
}

// Result is the single terminal outcome of a watch.
type Result struct {
	Status   string // giftcard.MintConfirmed or giftcard.MintFailed
	TxHash   string
	TimedOut bool
}

// Poller polls mint status on a fixed cadence until a terminal status, an
// explicit stop, or the overall deadline. Transient tick failures do not
// terminate the watch.
type Poller struct {
	api      StatusAPI
	interval time.Duration
	maxWait  time.Duration
	log      *logrus.Logger
}

func NewPoller(api StatusAPI, interval, maxWait time.Duration, log *logrus.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{api: api, interval: interval, maxWait: maxWait, log: log}
}

// Watch is the handle for one running poll loop. The owner must call Stop
// on teardown or the loop outlives its caller.
type Watch struct {
	C <-chan Result

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Stop tears the watch down. Safe to call more than once.
func (w *Watch) Stop() {
	w.stopOnce.Do(w.cancel)
}

// Start begins polling and returns the watch handle. Exactly one Result is
// delivered on the channel unless the watch is stopped first.
func (p *Poller) Start(ctx context.Context, backgroundID string) *Watch {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Result, 1)
	w := &Watch{C: ch, cancel: cancel}

	go p.run(ctx, backgroundID, ch)
	return w
}

func (p *Poller) run(ctx context.Context, backgroundID string, ch chan<- Result) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if p.maxWait > 0 {
		timer := time.NewTimer(p.maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		status, err := p.api.MintStatus(ctx, backgroundID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient failure: keep polling.
			p.log.WithFields(logrus.Fields{
				"background_id": backgroundID,
				"error":         err,
			}).Warn("mint status tick failed")
		} else {
			switch status.Status {
			case giftcard.MintConfirmed:
				p.log.WithFields(logrus.Fields{
					"background_id": backgroundID,
					"tx_hash":       status.Background.TransactionHash,
				}).Info("background mint confirmed")
				ch <- Result{Status: giftcard.MintConfirmed, TxHash: status.Background.TransactionHash}
				return
			case giftcard.MintFailed:
				p.log.WithFields(logrus.Fields{"background_id": backgroundID}).Warn("background mint failed")
				ch <- Result{Status: giftcard.MintFailed}
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline:
			p.log.WithFields(logrus.Fields{
				"background_id": backgroundID,
				"max_wait":      p.maxWait.String(),
			}).Warn("background mint not confirmed in time")
			ch <- Result{Status: giftcard.MintFailed, TimedOut: true}
			return
		case <-ticker.C:
		}
	}
}

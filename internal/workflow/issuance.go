package workflow

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"giftrails/internal/allowance"
	"giftrails/internal/fault"
	"giftrails/internal/giftcard"
)

// Wallet is the read side of the wallet session.
type Wallet interface {
	Address() string
}

// Backend is the slice of the gift-card API the issuance flow drives.
type Backend interface {
	Create(ctx context.Context, req giftcard.CreateRequest) (string, error)
	SetSecret(ctx context.Context, giftCardID, secret string) error
	Transfer(ctx context.Context, giftCardID, recipientAddress, senderAddress string) (giftcard.TransferResult, error)
	TransferByUsername(ctx context.Context, giftCardID, baseUsername string) error
}

// Authorizer is the ERC-20 payment gate.
type Authorizer interface {
	Check(ctx context.Context, owner common.Address, required *big.Int) (allowance.Status, error)
	Approve(ctx context.Context, owner common.Address, required *big.Int) (allowance.Status, error)
}

// Coordinator owns the shared collaborators and hands out per-dialog
// Issuance instances.
type Coordinator struct {
	wallet  Wallet
	backend Backend
	auth    Authorizer
	metrics *metricsRegistry
	log     *logrus.Logger
}

func NewCoordinator(wallet Wallet, backend Backend, auth Authorizer, log *logrus.Logger) *Coordinator {
	return &Coordinator{
		wallet:  wallet,
		backend: backend,
		auth:    auth,
		metrics: newMetricsRegistry(),
		log:     log,
	}
}

// MetricsHandler exposes the coordinator's prometheus registry.
func (c *Coordinator) MetricsHandler() http.Handler {
	return c.metrics.handler()
}

// NewIssuance opens one issuance dialog for a background.
func (c *Coordinator) NewIssuance(backgroundID, price string) *Issuance {
	return &Issuance{
		coord: c,
		state: StateSelectType,
		draft: Draft{BackgroundID: backgroundID, Price: price},
	}
}

// Issuance is one run of the issuance state machine. All methods are safe
// for the event-loop style interleaving the flow sees: a mutex guards the
// state while suspended calls run outside it.
type Issuance struct {
	coord *Coordinator

	mu         sync.Mutex
	state      State
	draft      Draft
	giftCardID string
	inFlight   bool
	closed     bool
	outcome    *Outcome
}

// State returns the current dialog position.
func (i *Issuance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// GiftCardID returns the captured server-side id, if create has succeeded.
func (i *Issuance) GiftCardID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.giftCardID
}

// Outcome returns the completion artifact once the flow reached COMPLETE.
func (i *Issuance) Outcome() (Outcome, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.outcome == nil {
		return Outcome{}, false
	}
	return *i.outcome, true
}

// Close abandons the dialog. In-flight request results are discarded, not
// aborted; nothing mutates after Close.
func (i *Issuance) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
}

// ChooseMethod moves SELECT_TYPE to ENTER_DETAILS. The only requirement is
// a non-nil selection.
func (i *Issuance) ChooseMethod(m Method) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return fault.New(fault.KindValidation, "issuance dialog is closed")
	}
	if m == nil {
		return fault.Field("transferType", "choose a transfer method")
	}
	if i.state != StateSelectType && i.state != StateEnterDetails {
		return fault.Newf(fault.KindValidation, "cannot choose a transfer method in %s", i.state)
	}
	i.draft.Method = m
	i.state = StateEnterDetails
	return nil
}

// ConfirmDetails validates the per-method fields, records the message and
// payment choice, and moves ENTER_DETAILS to CONFIRM_AND_PAY. For ERC-20
// payment the allowance is recomputed fresh and must already cover the
// required amount; otherwise the transition is blocked with an allowance
// error and the caller offers ApprovePayment.
func (i *Issuance) ConfirmDetails(ctx context.Context, message string, payment PaymentMethod, required *big.Int) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return fault.New(fault.KindValidation, "issuance dialog is closed")
	}
	if i.state != StateEnterDetails {
		i.mu.Unlock()
		return fault.Newf(fault.KindValidation, "cannot confirm details in %s", i.state)
	}
	method := i.draft.Method
	sender := i.coord.wallet.Address()
	i.mu.Unlock()

	if err := validateMethod(method, sender); err != nil {
		return err
	}
	if payment == PaymentUnset {
		return fault.Field("paymentMethod", "choose a payment method")
	}
	if payment == PaymentStablecoin {
		if required == nil || required.Sign() <= 0 {
			return fault.Field("amount", "stablecoin amount must be positive")
		}
		status, err := i.coord.auth.Check(ctx, common.HexToAddress(sender), required)
		if err != nil {
			i.coord.metrics.incAllowance("error")
			return err
		}
		if !status.Approved {
			i.coord.metrics.incAllowance("blocked")
			return fault.New(fault.KindAllowance, "spending allowance below the required amount")
		}
		i.coord.metrics.incAllowance("approved")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed || i.state != StateEnterDetails {
		return fault.New(fault.KindValidation, "issuance dialog moved on")
	}
	i.draft.Message = message
	i.draft.Payment = payment
	i.draft.RequiredAmount = required
	i.state = StateConfirmAndPay
	return nil
}

// ApprovePayment requests an ERC-20 approval for the required amount while
// the dialog is blocked in ENTER_DETAILS.
func (i *Issuance) ApprovePayment(ctx context.Context, required *big.Int) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return fault.New(fault.KindValidation, "issuance dialog is closed")
	}
	sender := i.coord.wallet.Address()
	i.mu.Unlock()

	if sender == "" {
		return fault.New(fault.KindAuthentication, "connect a wallet first")
	}
	status, err := i.coord.auth.Approve(ctx, common.HexToAddress(sender), required)
	if err != nil {
		i.coord.metrics.incAllowance("error")
		return err
	}
	if !status.Approved {
		i.coord.metrics.incAllowance("blocked")
		return fault.New(fault.KindAllowance, "allowance still below the required amount")
	}
	i.coord.metrics.incAllowance("approved")
	return nil
}

// Submit runs the at-most-once create-then-dispatch sequence. If create
// succeeded on an earlier attempt the captured gift card id is reused and
// only the transfer dispatch is retried. Repeated clicks while a submit is
// in flight are rejected.
func (i *Issuance) Submit(ctx context.Context) (Outcome, error) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return Outcome{}, fault.New(fault.KindValidation, "issuance dialog is closed")
	}
	if i.state != StateConfirmAndPay {
		i.mu.Unlock()
		return Outcome{}, fault.Newf(fault.KindValidation, "cannot submit in %s", i.state)
	}
	if i.inFlight {
		i.mu.Unlock()
		return Outcome{}, fault.New(fault.KindValidation, "submission already in progress")
	}
	draft := i.draft
	cardID := i.giftCardID
	// The session may have changed since ConfirmDetails, so the method is
	// re-checked against the wallet address the transfer will actually use.
	sender := i.coord.wallet.Address()
	if sender == "" {
		i.mu.Unlock()
		return Outcome{}, fault.New(fault.KindAuthentication, "wallet is not connected")
	}
	if err := validateMethod(draft.Method, sender); err != nil {
		i.mu.Unlock()
		return Outcome{}, err
	}
	i.inFlight = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.inFlight = false
		i.mu.Unlock()
	}()

	log := i.coord.log.WithFields(logrus.Fields{
		"background_id": draft.BackgroundID,
		"method":        draft.Method.Label(),
	})

	if cardID == "" {
		id, err := i.coord.backend.Create(ctx, giftcard.CreateRequest{
			BackgroundID:  draft.BackgroundID,
			Price:         draft.Price,
			Message:       draft.Message,
			PaymentMethod: draft.Payment.String(),
		})
		if err != nil {
			i.coord.metrics.incIssuance("create_failed")
			log.WithFields(logrus.Fields{"error": err}).Warn("gift card create failed")
			return Outcome{}, err
		}
		cardID = id
		log = log.WithFields(logrus.Fields{"gift_card_id": cardID})
		log.Info("gift card created")

		i.mu.Lock()
		if i.closed {
			i.mu.Unlock()
			return Outcome{}, fault.New(fault.KindValidation, "issuance dialog is closed")
		}
		// Capture before dispatching so a transfer failure resumes here.
		i.giftCardID = cardID
		i.mu.Unlock()
		i.coord.metrics.incIssuance("created")
	} else {
		log = log.WithFields(logrus.Fields{"gift_card_id": cardID})
		i.coord.metrics.incIssuance("resumed")
	}

	outcome, err := i.dispatch(ctx, draft.Method, cardID, sender)
	if err != nil {
		i.coord.metrics.incTransfer(draft.Method.Label(), "failed")
		log.WithFields(logrus.Fields{"error": err}).Warn("transfer dispatch failed")
		return Outcome{}, err
	}
	i.coord.metrics.incTransfer(draft.Method.Label(), "ok")

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return Outcome{}, fault.New(fault.KindValidation, "issuance dialog is closed")
	}
	i.state = StateComplete
	i.outcome = &outcome
	i.coord.metrics.incIssuance("complete")
	log.Info("gift card issued")
	return outcome, nil
}

// dispatch performs step 2 of the submit sequence for the chosen method.
func (i *Issuance) dispatch(ctx context.Context, method Method, cardID, sender string) (Outcome, error) {
	switch m := method.(type) {
	case Direct:
		res, err := i.coord.backend.Transfer(ctx, cardID, strings.ToLower(m.RecipientAddress), sender)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{GiftCardID: cardID, Warning: res.Warning}, nil
	case ByUsername:
		if err := i.coord.backend.TransferByUsername(ctx, cardID, m.Username); err != nil {
			return Outcome{}, err
		}
		return Outcome{GiftCardID: cardID}, nil
	case BySecret:
		secret, err := newSecret()
		if err != nil {
			return Outcome{}, fault.Wrap(fault.KindUnknown, err, "claim secret")
		}
		if err := i.coord.backend.SetSecret(ctx, cardID, secret); err != nil {
			return Outcome{}, err
		}
		return Outcome{GiftCardID: cardID, ClaimSecret: secret}, nil
	default:
		return Outcome{}, fault.Field("transferType", "unsupported transfer method")
	}
}

// validateMethod enforces the per-method field requirements before any
// network call, including the self-transfer guard.
func validateMethod(method Method, sender string) error {
	switch m := method.(type) {
	case Direct:
		if !common.IsHexAddress(m.RecipientAddress) {
			return fault.Field("recipientAddress", "invalid recipient address")
		}
		if sender != "" && strings.EqualFold(m.RecipientAddress, sender) {
			return fault.Field("recipientAddress", "cannot send a gift card to yourself")
		}
	case ByUsername:
		if strings.TrimSpace(m.Username) == "" {
			return fault.Field("recipientUsername", "username is required")
		}
	case BySecret:
		// Nothing to validate; the secret is generated at submit.
	case nil:
		return fault.Field("transferType", "choose a transfer method")
	}
	return nil
}

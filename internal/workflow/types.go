package workflow

import (
	"fmt"
	"math/big"
)

// State is the issuance dialog position. Errors are an overlay, not a
// state: a failed action leaves the state where it was so the user can
// retry.
type State int

const (
	StateSelectType State = iota
	StateEnterDetails
	StateConfirmAndPay
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateSelectType:
		return "SELECT_TYPE"
	case StateEnterDetails:
		return "ENTER_DETAILS"
	case StateConfirmAndPay:
		return "CONFIRM_AND_PAY"
	case StateComplete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PaymentMethod selects how the purchase is settled.
type PaymentMethod int

const (
	PaymentUnset PaymentMethod = iota
	PaymentNative
	PaymentStablecoin
)

func (p PaymentMethod) String() string {
	switch p {
	case PaymentNative:
		return "NATIVE"
	case PaymentStablecoin:
		return "ERC20"
	default:
		return "UNSET"
	}
}

// Method is the transfer channel for a gift card. Each variant carries only
// the fields it needs, so mismatched optionals cannot exist.
type Method interface {
	Label() string
	isMethod()
}

// Direct transfers straight to a recipient wallet address.
type Direct struct {
	RecipientAddress string
}

func (Direct) Label() string { return "direct" }
func (Direct) isMethod()     {}

// ByUsername transfers to a human-readable base username.
type ByUsername struct {
	Username string
}

func (ByUsername) Label() string { return "username" }
func (ByUsername) isMethod()     {}

// BySecret attaches a freshly generated secret; the recipient claims the
// card with the shareable link.
type BySecret struct{}

func (BySecret) Label() string { return "secret" }
func (BySecret) isMethod()     {}

// Draft is the workflow-local card under construction. Nothing is persisted
// server-side until Submit.
type Draft struct {
	BackgroundID string
	Price        string
	Message      string
	Method       Method
	Payment      PaymentMethod
	// RequiredAmount is the stablecoin amount in base units; set when
	// Payment is PaymentStablecoin.
	RequiredAmount *big.Int
}

// Outcome is the shareable artifact surfaced on COMPLETE.
type Outcome struct {
	GiftCardID  string
	ClaimSecret string // set for BySecret transfers
	Warning     string // non-fatal backend notice, if any
}

// ClaimLink renders the shareable claim URL for secret transfers.
func (o Outcome) ClaimLink(base string) string {
	if o.ClaimSecret == "" {
		return ""
	}
	return fmt.Sprintf("%s/claim?giftCardId=%s&secret=%s", base, o.GiftCardID, o.ClaimSecret)
}

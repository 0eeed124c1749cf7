package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfClassifiedError(t *testing.T) {
	err := New(KindAllowance, "spend exceeds allowance")
	if KindOf(err) != KindAllowance {
		t.Fatalf("expected allowance kind, got %s", KindOf(err))
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindAuthentication, "token expired")
	wrapped := fmt.Errorf("submit: %w", inner)
	if KindOf(wrapped) != KindAuthentication {
		t.Fatalf("kind lost through wrapping: %s", KindOf(wrapped))
	}
}

func TestUnclassifiedErrorIsUnknown(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Fatalf("plain errors must report unknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Fatalf("nil must report unknown")
	}
}

func TestFieldErrors(t *testing.T) {
	err := Field("recipientAddress", "invalid recipient address")
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation kind")
	}
	var fe *Error
	if !errors.As(err, &fe) || fe.Field != "recipientAddress" {
		t.Fatalf("field not preserved: %+v", fe)
	}
}

func TestChainReason(t *testing.T) {
	err := Chain(ChainInsufficientFunds, errors.New("insufficient funds for gas"), "approve")
	if KindOf(err) != KindChain {
		t.Fatalf("expected chain kind")
	}
	if ReasonOf(err) != ChainInsufficientFunds {
		t.Fatalf("expected insufficient-funds reason, got %s", ReasonOf(err))
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{New(KindValidation, "missing field"), false},
		{New(KindAuthentication, "expired"), false},
		{New(KindAllowance, "below required"), false},
		{New(KindNetwork, "timeout"), true},
		{New(KindChain, "reverted"), true},
		{errors.New("unclassified"), true},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

package quote

import (
	"context"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"giftrails/internal/fault"
	"giftrails/internal/giftcard"
)

// SpotSource supplies a live fiat spot price for the payment coin.
type SpotSource interface {
	SpotPrice(ctx context.Context) (float64, error)
}

// FeeSource supplies the backend-computed fee breakdown.
type FeeSource interface {
	PriceBreakdown(ctx context.Context, backgroundID, price string) (giftcard.PriceBreakdown, error)
}

// Quote is the display-ready combination of the fee breakdown and spot
// price. A quote is all-or-nothing: if either read fails no quote exists.
type Quote struct {
	BackgroundPrice string
	TaxFee          string
	PlatformFee     string
	Total           string
	SpotPrice       float64
	FiatTotal       string
}

// Service fetches quotes. Nothing is cached: spot price and fee schedule
// can both change between dialog opens.
type Service struct {
	spot    SpotSource
	fees    FeeSource
	timeout time.Duration
	log     *logrus.Logger
}

func NewService(spot SpotSource, fees FeeSource, timeout time.Duration, log *logrus.Logger) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{spot: spot, fees: fees, timeout: timeout, log: log}
}

// GetQuote combines the spot price and the backend fee breakdown. The two
// reads run sequentially; partial results are never surfaced.
func (s *Service) GetQuote(ctx context.Context, backgroundID, price string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	spot, err := s.spot.SpotPrice(ctx)
	if err != nil {
		s.log.WithFields(logrus.Fields{"error": err}).Warn("spot price unavailable")
		return Quote{}, err
	}

	breakdown, err := s.fees.PriceBreakdown(ctx, backgroundID, price)
	if err != nil {
		s.log.WithFields(logrus.Fields{"background_id": backgroundID, "error": err}).Warn("fee breakdown unavailable")
		return Quote{}, err
	}

	total, ok := new(big.Float).SetString(breakdown.Total)
	if !ok {
		return Quote{}, fault.Newf(fault.KindNetwork, "backend returned a non-numeric total: %q", breakdown.Total)
	}
	fiat := new(big.Float).Mul(total, big.NewFloat(spot))

	return Quote{
		BackgroundPrice: breakdown.BackgroundPrice,
		TaxFee:          breakdown.TaxFee,
		PlatformFee:     breakdown.PlatformFee,
		Total:           breakdown.Total,
		SpotPrice:       spot,
		FiatTotal:       fiat.Text('f', 2),
	}, nil
}

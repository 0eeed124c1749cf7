package quote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"giftrails/internal/fault"
)

// HTTPSpotSource reads a spot price from a JSON endpoint of the form
// {"price": 1234.56}.
type HTTPSpotSource struct {
	url        string
	httpClient *http.Client
}

func NewHTTPSpotSource(url string) *HTTPSpotSource {
	return &HTTPSpotSource{
		url: url,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (s *HTTPSpotSource) SpotPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, fault.Wrap(fault.KindUnknown, err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fault.Wrap(fault.KindNetwork, err, "price oracle unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fault.Wrap(fault.KindNetwork, err, "read body")
	}
	if resp.StatusCode >= 400 {
		return 0, fault.Newf(fault.KindNetwork, "price oracle error %d", resp.StatusCode)
	}

	var body struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, fault.Wrap(fault.KindNetwork, err, "unmarshal spot price")
	}
	if body.Price <= 0 {
		return 0, fault.New(fault.KindNetwork, "price oracle returned a non-positive price")
	}
	return body.Price, nil
}

// FixedSpotSource returns a constant price. Used in tests and offline runs.
type FixedSpotSource float64

func (f FixedSpotSource) SpotPrice(context.Context) (float64, error) {
	return float64(f), nil
}

package giftcard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"giftrails/internal/fault"
)

// TokenSource supplies the current session token for Bearer auth.
type TokenSource interface {
	Token() string
}

// Client talks to the gift-card backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        *logrus.Logger
}

func NewClient(baseURL string, tokens TokenSource, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		log:    log,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fault.Wrap(fault.KindUnknown, err, "marshal body")
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fault.Wrap(fault.KindUnknown, err, "create request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return c.send(req, path)
}

// send executes the request and classifies failures once, here at the
// boundary. Callers switch on fault.KindOf instead of message text.
func (c *Client) send(req *http.Request, path string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "backend unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "read body")
	}

	if resp.StatusCode >= 400 {
		c.log.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("backend error response")
		return nil, classifyStatus(resp.StatusCode, data)
	}

	return data, nil
}

func classifyStatus(status int, body []byte) error {
	msg := apiMessage(body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fault.Newf(fault.KindAuthentication, "session rejected: %s", msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fault.Newf(fault.KindValidation, "backend rejected request: %s", msg)
	default:
		return fault.Newf(fault.KindNetwork, "backend error %d: %s", status, msg)
	}
}

// apiMessage pulls a human-readable message out of an error body without
// trusting it to be JSON.
func apiMessage(body []byte) string {
	var wrapper struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if wrapper.Error != "" {
			return wrapper.Error
		}
		if wrapper.Message != "" {
			return wrapper.Message
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	if trimmed == "" {
		return "no detail"
	}
	return trimmed
}

// Connect exchanges an address + ownership signature for a session token.
func (c *Client) Connect(ctx context.Context, address, signature string) (string, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/auth/connect", connectRequest{
		Address:   address,
		Signature: signature,
	})
	if err != nil {
		return "", err
	}
	var resp connectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fault.Wrap(fault.KindNetwork, err, "unmarshal connect response")
	}
	return resp.Token, nil
}

// Create registers a new gift card and returns its id.
func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/gift-cards", req)
	if err != nil {
		return "", err
	}
	var resp createResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fault.Wrap(fault.KindNetwork, err, "unmarshal create response")
	}
	if resp.ID == "" {
		return "", fault.New(fault.KindNetwork, "backend returned an empty gift card id")
	}
	return resp.ID, nil
}

// Get fetches a gift card record by id.
func (c *Client) Get(ctx context.Context, giftCardID string) (Card, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/gift-cards/"+giftCardID, nil)
	if err != nil {
		return Card{}, err
	}
	var card Card
	if err := json.Unmarshal(data, &card); err != nil {
		return Card{}, fault.Wrap(fault.KindNetwork, err, "unmarshal gift card")
	}
	return card, nil
}

// SetSecret attaches a claim secret to a gift card.
func (c *Client) SetSecret(ctx context.Context, giftCardID, secret string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/gift-cards/"+giftCardID+"/set-secret", setSecretRequest{
		Secret: secret,
	})
	return err
}

// Transfer moves a gift card to a recipient wallet address.
func (c *Client) Transfer(ctx context.Context, giftCardID, recipientAddress, senderAddress string) (TransferResult, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/gift-cards/transfer", transferRequest{
		GiftCardID:       giftCardID,
		RecipientAddress: recipientAddress,
		SenderAddress:    senderAddress,
	})
	if err != nil {
		return TransferResult{}, err
	}
	var resp TransferResult
	if err := json.Unmarshal(data, &resp); err != nil {
		return TransferResult{}, fault.Wrap(fault.KindNetwork, err, "unmarshal transfer response")
	}
	return resp, nil
}

// TransferByUsername moves a gift card to a human-readable base username.
func (c *Client) TransferByUsername(ctx context.Context, giftCardID, baseUsername string) error {
	data, err := c.doRequest(ctx, http.MethodPost, "/giftcard/transfer-by-baseusername", usernameTransferRequest{
		GiftCardID:   giftCardID,
		BaseUsername: baseUsername,
	})
	if err != nil {
		return err
	}
	var resp successResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fault.Wrap(fault.KindNetwork, err, "unmarshal transfer response")
	}
	if !resp.Success {
		return fault.New(fault.KindNetwork, "backend reported unsuccessful username transfer")
	}
	return nil
}

// Claim redeems a gift card with its secret.
func (c *Client) Claim(ctx context.Context, giftCardID, secret, claimerAddress string) error {
	data, err := c.doRequest(ctx, http.MethodPost, "/giftcard/claim", claimRequest{
		GiftCardID:     giftCardID,
		Secret:         secret,
		ClaimerAddress: claimerAddress,
	})
	if err != nil {
		return err
	}
	var resp successResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fault.Wrap(fault.KindNetwork, err, "unmarshal claim response")
	}
	if !resp.Success {
		return fault.New(fault.KindNetwork, "backend reported unsuccessful claim")
	}
	return nil
}

// PriceBreakdown fetches the backend fee schedule for a background purchase.
func (c *Client) PriceBreakdown(ctx context.Context, backgroundID, price string) (PriceBreakdown, error) {
	data, err := c.doRequest(ctx, http.MethodPost, "/giftcard/price", priceRequest{
		BackgroundID: backgroundID,
		Price:        price,
	})
	if err != nil {
		return PriceBreakdown{}, err
	}
	var resp priceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return PriceBreakdown{}, fault.Wrap(fault.KindNetwork, err, "unmarshal price response")
	}
	return resp.Breakdown, nil
}

// MintBackground submits a background-mint request as a multipart upload.
// The image reader is consumed fully.
func (c *Client) MintBackground(ctx context.Context, image io.Reader, filename, category, price, artistAddress string) (Background, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return Background{}, fault.Wrap(fault.KindUnknown, err, "multipart image part")
	}
	if _, err := io.Copy(part, image); err != nil {
		return Background{}, fault.Wrap(fault.KindUnknown, err, "copy image")
	}
	fields := map[string]string{
		"category":      category,
		"price":         price,
		"artistAddress": artistAddress,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return Background{}, fault.Wrap(fault.KindUnknown, err, "multipart field")
		}
	}
	if err := writer.Close(); err != nil {
		return Background{}, fault.Wrap(fault.KindUnknown, err, "close multipart")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/artnft", &buf)
	if err != nil {
		return Background{}, fault.Wrap(fault.KindUnknown, err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	data, err := c.send(req, "/artnft")
	if err != nil {
		return Background{}, err
	}
	var resp mintResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Background{}, fault.Wrap(fault.KindNetwork, err, "unmarshal mint response")
	}
	if resp.Background.ID == "" {
		return Background{}, fault.New(fault.KindNetwork, "backend returned an empty background id")
	}
	return resp.Background, nil
}

// MintStatus reads the current state of a background-mint resource.
func (c *Client) MintStatus(ctx context.Context, backgroundID string) (MintStatusResult, error) {
	data, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/backgrounds/%s/status", backgroundID), nil)
	if err != nil {
		return MintStatusResult{}, err
	}
	var resp MintStatusResult
	if err := json.Unmarshal(data, &resp); err != nil {
		return MintStatusResult{}, fault.Wrap(fault.KindNetwork, err, "unmarshal status response")
	}
	return resp, nil
}

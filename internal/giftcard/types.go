package giftcard

// Gift card lifecycle as tracked by the backend. The client only reads
// these or triggers transitions through API calls.
const (
	StatusCreated     = "CREATED"
	StatusTransferred = "TRANSFERRED"
	StatusClaimed     = "CLAIMED"
)

// Background-mint lifecycle. CONFIRMED and FAILED are terminal.
const (
	MintPending   = "PENDING"
	MintConfirmed = "CONFIRMED"
	MintFailed    = "FAILED"
)

// Card mirrors the server-owned gift card record.
type Card struct {
	ID             string `json:"id"`
	CreatorAddress string `json:"creatorAddress"`
	Price          string `json:"price"`
	Message        string `json:"message"`
	Status         string `json:"status"`
}

// Background mirrors the server-owned art background record.
type Background struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Price           string `json:"price"`
	ArtistAddress   string `json:"artistAddress"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Status          string `json:"status,omitempty"`
}

// PriceBreakdown is the backend-computed fee schedule for one purchase.
type PriceBreakdown struct {
	BackgroundPrice string `json:"backgroundPrice"`
	TaxFee          string `json:"taxFee"`
	PlatformFee     string `json:"platformFee"`
	Total           string `json:"total"`
}

type CreateRequest struct {
	BackgroundID  string `json:"backgroundId"`
	Price         string `json:"price"`
	Message       string `json:"message"`
	PaymentMethod string `json:"paymentMethod"`
}

type createResponse struct {
	ID string `json:"id"`
}

type transferRequest struct {
	GiftCardID       string `json:"giftCardId"`
	RecipientAddress string `json:"recipientAddress"`
	SenderAddress    string `json:"senderAddress"`
}

// TransferResult reports a transfer outcome; Warning carries a non-fatal
// notice from the backend (e.g. recipient has no profile yet).
type TransferResult struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
}

type usernameTransferRequest struct {
	GiftCardID   string `json:"giftCardId"`
	BaseUsername string `json:"baseUsername"`
}

type setSecretRequest struct {
	Secret string `json:"secret"`
}

type claimRequest struct {
	GiftCardID     string `json:"giftCardId"`
	Secret         string `json:"secret"`
	ClaimerAddress string `json:"claimerAddress"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type priceRequest struct {
	BackgroundID string `json:"backgroundId"`
	Price        string `json:"price"`
}

type priceResponse struct {
	Breakdown PriceBreakdown `json:"breakdown"`
}

type mintResponse struct {
	Background Background `json:"background"`
}

// MintStatusResult is one observation of a background-mint resource.
type MintStatusResult struct {
	Status     string     `json:"status"`
	Background Background `json:"background"`
}

type connectRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

type connectResponse struct {
	Token string `json:"token"`
}

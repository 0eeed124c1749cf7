package giftcard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"giftrails/internal/fault"
)

type staticToken string

func (t staticToken) Token() string { return string(t) }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestCreateSendsBearerAndReturnsID(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody CreateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("tok-1"), testLogger())
	id, err := client.Create(context.Background(), CreateRequest{
		BackgroundID:  "bg-1",
		Price:         "1.2",
		Message:       "hello",
		PaymentMethod: "NATIVE",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "42" {
		t.Fatalf("unexpected id %q", id)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotPath != "/gift-cards" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.BackgroundID != "bg-1" || gotBody.PaymentMethod != "NATIVE" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestUnauthorizedClassifiedAsAuthentication(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken(""), testLogger())
	_, err := client.Create(context.Background(), CreateRequest{})
	if fault.KindOf(err) != fault.KindAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if !strings.Contains(err.Error(), "token expired") {
		t.Fatalf("expected backend detail in message, got %q", err.Error())
	}
}

func TestBadRequestClassifiedAsValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"price is required"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	err := client.TransferByUsername(context.Background(), "1", "alice")
	if fault.KindOf(err) != fault.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnreachableBackendClassifiedAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // reject all connections

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	_, err := client.Create(context.Background(), CreateRequest{})
	if fault.KindOf(err) != fault.KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestNonJSONSuccessBodyClassifiedAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy error</html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	_, err := client.Create(context.Background(), CreateRequest{})
	if fault.KindOf(err) != fault.KindNetwork {
		t.Fatalf("expected network error for non-JSON body, got %v", err)
	}
}

func TestTransferSurfacesWarning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gift-cards/transfer" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"success":true,"warning":"recipient has no profile yet"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	res, err := client.Transfer(context.Background(), "42", "0xabc", "0xdef")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.Success || res.Warning == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMintStatusPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/backgrounds/bg-9/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"CONFIRMED","background":{"id":"bg-9","transactionHash":"0xfeed"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	status, err := client.MintStatus(context.Background(), "bg-9")
	if err != nil {
		t.Fatalf("mint status: %v", err)
	}
	if status.Status != MintConfirmed || status.Background.TransactionHash != "0xfeed" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestGetCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/gift-cards/gc-7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"gc-7","creatorAddress":"0xabc","price":"50","status":"TRANSFERRED"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	card, err := client.Get(context.Background(), "gc-7")
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if card.ID != "gc-7" || card.Status != StatusTransferred {
		t.Fatalf("unexpected card %+v", card)
	}
}

func TestMintBackgroundMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("category") != "abstract" {
			t.Errorf("missing category field")
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Errorf("missing image part: %v", err)
		} else {
			file.Close()
		}
		_, _ = w.Write([]byte(`{"background":{"id":"bg-3","transactionHash":"0xbeef"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("t"), testLogger())
	bg, err := client.MintBackground(context.Background(), strings.NewReader("png-bytes"), "art.png", "abstract", "2", "0xartist")
	if err != nil {
		t.Fatalf("mint background: %v", err)
	}
	if bg.ID != "bg-3" || bg.TransactionHash != "0xbeef" {
		t.Fatalf("unexpected background %+v", bg)
	}
}

package action

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/danmuck/swapharness/internal/siren"
)

func TestBuildGetAppendsQuery(t *testing.T) {
	w := &fakeWallet{btcPrefix: "bcrt1q..."}
	a := siren.Action{
		Method: "GET",
		Href:   "/x",
		Fields: []siren.Field{field("addr", siren.ClassBitcoin, siren.ClassAddress)},
	}
	values, err := NewResolver(w, AutofillParams{}).Resolve(context.Background(), a, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	req, err := Build(a, values)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.URL != "/x?addr=bcrt1q..." {
		t.Fatalf("unexpected url: %q", req.URL)
	}
	if len(req.Body) != 0 {
		t.Fatalf("GET must not carry a body")
	}
}

func TestBuildGetKeepsExistingQuery(t *testing.T) {
	req, err := Build(siren.Action{Href: "/swaps/1/redeem?address=abc"}, Values{"fee_per_wu": int64(20)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.URL != "/swaps/1/redeem?address=abc&fee_per_wu=20" {
		t.Fatalf("unexpected url: %q", req.URL)
	}
}

func TestBuildGetWithoutValuesIsVerbatim(t *testing.T) {
	req, err := Build(siren.Action{Href: "/swaps/1/fund"}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.URL != "/swaps/1/fund" || req.Method != http.MethodGet {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestBuildPostJSON(t *testing.T) {
	req, err := Build(siren.Action{
		Name:   "accept",
		Method: "POST",
		Href:   "/swaps/1/accept",
		Type:   "application/json",
	}, Values{"beta_ledger_refund_identity": "0xabc"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.URL != "/swaps/1/accept" || req.ContentType != siren.MediaTypeJSON {
		t.Fatalf("unexpected request: %+v", req)
	}
	var body map[string]string
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["beta_ledger_refund_identity"] != "0xabc" {
		t.Fatalf("unexpected body: %s", req.Body)
	}
}

func TestBuildPostEmptyValuesIsObject(t *testing.T) {
	req, err := Build(siren.Action{Name: "decline", Method: "POST", Href: "/d", Type: "application/json"}, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if string(req.Body) != "{}" {
		t.Fatalf("unexpected body: %s", req.Body)
	}
}

func TestBuildPostRejectsNonJSON(t *testing.T) {
	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		_, err := Build(siren.Action{Name: "accept", Method: "POST", Href: "/a", Type: ct}, Values{})
		if !errors.Is(err, ErrUnsupportedContentType) || !errors.Is(err, ErrContractViolation) {
			t.Fatalf("content type %q: expected unsupported content type, got %v", ct, err)
		}
	}
}

func TestBuildRejectsOtherMethods(t *testing.T) {
	_, err := Build(siren.Action{Name: "nuke", Method: "DELETE", Href: "/a", Type: "application/json"}, nil)
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %v", err)
	}
}

func TestHTTPRequestResolvesAgainstBase(t *testing.T) {
	base, _ := url.Parse("http://127.0.0.1:8000")
	req, err := Request{
		Method:      http.MethodPost,
		URL:         "/swaps/1/accept",
		ContentType: siren.MediaTypeJSON,
		Body:        []byte(`{"a":1}`),
	}.HTTPRequest(context.Background(), base)
	if err != nil {
		t.Fatalf("http request: %v", err)
	}
	if req.URL.String() != "http://127.0.0.1:8000/swaps/1/accept" {
		t.Fatalf("unexpected url: %s", req.URL)
	}
	if req.Header.Get("Content-Type") != siren.MediaTypeJSON {
		t.Fatalf("missing content type")
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != `{"a":1}` {
		t.Fatalf("unexpected body: %s", body)
	}

	get, err := Request{Method: http.MethodGet, URL: "http://other/x"}.HTTPRequest(context.Background(), base)
	if err != nil {
		t.Fatalf("http request: %v", err)
	}
	if get.URL.String() != "http://other/x" || get.Body != nil {
		t.Fatalf("unexpected absolute get: %s body=%v", get.URL, get.Body)
	}
}

func TestHTTPRequestKeepsBasePath(t *testing.T) {
	base, _ := url.Parse("http://127.0.0.1:8000/api")
	req, err := Request{Method: http.MethodGet, URL: "/swaps/1/redeem?address=bcrt1q&fee_per_wu=20"}.
		HTTPRequest(context.Background(), base)
	if err != nil {
		t.Fatalf("http request: %v", err)
	}
	if req.URL.String() != "http://127.0.0.1:8000/api/swaps/1/redeem?address=bcrt1q&fee_per_wu=20" {
		t.Fatalf("base path dropped: %s", req.URL)
	}
}

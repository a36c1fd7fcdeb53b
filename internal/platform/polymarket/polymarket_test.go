package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/crypto"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestGammaListMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("active") != "true" || q.Get("closed") != "false" || q.Get("limit") != "50" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, `[
			{"id":"1","question":"Will A win?","active":true,"closed":"false",
			 "outcomes":"[\"Yes\",\"No\"]","outcomePrices":["0.95","0.05"],
			 "clobTokenIds":"[\"t1\",\"t2\"]","liquidity":"1000","liquidityClob":6000.5,
			 "volume":"12.5","endDate":"2026-01-01T00:00:00Z",
			 "tags":[{"slug":"nba"},{"label":"Sports"}]},
			{"id":"2","question":"No liquidity","liquidity":null,"liquidityClob":"0","volume":"bad"}
		]`)
	}))
	defer srv.Close()

	recs, err := NewGammaClient(srv.URL).ListMarkets(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}

	m := recs[0]
	if !m.Active || m.Closed {
		t.Errorf("flags active=%v closed=%v", m.Active, m.Closed)
	}
	if m.OutcomesJSON != `["Yes","No"]` || m.PricesJSON != `["0.95","0.05"]` || m.TokenIDsJSON != `["t1","t2"]` {
		t.Errorf("lists = %q %q %q", m.OutcomesJSON, m.PricesJSON, m.TokenIDsJSON)
	}
	if m.Liquidity == nil || *m.Liquidity != 6000.5 {
		t.Errorf("liquidity = %v, want clob value", m.Liquidity)
	}
	if m.Volume != 12.5 {
		t.Errorf("volume = %g", m.Volume)
	}
	if len(m.Tags) != 2 || m.Tags[0] != "nba" || m.Tags[1] != "Sports" {
		t.Errorf("tags = %v", m.Tags)
	}

	if recs[1].Liquidity != nil {
		t.Errorf("missing liquidity should stay nil, got %v", *recs[1].Liquidity)
	}
}

func TestGammaListMarketsKeepsUndecodableRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"id":"1","question":"Will A win?","active":true},
			{"id":12345,"question":"Typed wrong"},
			{"id":"3","question":"Will C win?","active":true}
		]`)
	}))
	defer srv.Close()

	recs, err := NewGammaClient(srv.URL).ListMarkets(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].ID != "1" || recs[0].DecodeError != "" || !recs[0].Active {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[2].ID != "3" || recs[2].DecodeError != "" {
		t.Errorf("third record = %+v", recs[2])
	}
	bad := recs[1]
	if bad.ID != "12345" || bad.Question != "Typed wrong" || !strings.Contains(bad.DecodeError, "cannot unmarshal") {
		t.Errorf("bad record = %+v", bad)
	}
}

func TestGammaListMarketsPages(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offsets = append(offsets, q.Get("offset"))
		n, _ := strconv.Atoi(q.Get("limit"))
		if q.Get("offset") == "200" {
			n = 3
		}
		page := make([]map[string]string, n)
		for i := range page {
			page[i] = map[string]string{"id": strconv.Itoa(i)}
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	recs, err := NewGammaClient(srv.URL).ListMarkets(context.Background(), 250)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 203 {
		t.Fatalf("got %d records, want 203", len(recs))
	}
	if strings.Join(offsets, ",") != ",100,200" {
		t.Fatalf("offsets = %q", offsets)
	}
}

func TestGammaErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"error":"nope"}`, domain.ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ``, domain.ErrRateLimited},
		{"upstream", http.StatusBadGateway, ``, domain.ErrUpstream},
		{"malformed", http.StatusOK, `{"id":`, domain.ErrMalformedRecord},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := NewGammaClient(srv.URL).GetMarket(context.Background(), "42")
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestClobOrderBookSorted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/book" || r.URL.Query().Get("token_id") != "tok" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.Header.Get("POLY_API_KEY") != "" {
			t.Error("book request should be unauthenticated")
		}
		io.WriteString(w, `{"asset_id":"tok","timestamp":"1700000000000",
			"bids":[{"price":"0.90","size":"100"},{"price":"0.94","size":"50"},{"price":"x","size":"1"}],
			"asks":[{"price":"0.97","size":"10"},{"price":"0.95","size":"20"}]}`)
	}))
	defer srv.Close()

	book, err := NewClobClient(srv.URL, nil, nil).OrderBook(context.Background(), "tok")
	if err != nil {
		t.Fatalf("OrderBook: %v", err)
	}
	if len(book.Bids) != 2 || book.Bids[0].Price != 0.94 {
		t.Fatalf("bids = %+v", book.Bids)
	}
	if len(book.Asks) != 2 || book.Asks[0].Price != 0.95 {
		t.Fatalf("asks = %+v", book.Asks)
	}
	if book.Timestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("timestamp = %v", book.Timestamp)
	}
}

func newTestTrader(t *testing.T, url string, withCreds bool) *Trader {
	t.Helper()
	signer, err := crypto.NewSigner(testKey, 137)
	if err != nil {
		t.Fatal(err)
	}
	var auth *crypto.HMACAuth
	if withCreds {
		auth = &crypto.HMACAuth{Key: "api-key", Secret: "c2VjcmV0", Passphrase: "pass"}
	}
	return NewTrader(NewClobClient(url, signer, auth), signer, "", 0)
}

func TestTraderSubmitOrder(t *testing.T) {
	var posted struct {
		Order     map[string]any `json:"order"`
		Owner     string         `json:"owner"`
		OrderType string         `json:"orderType"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/order" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("POLY_API_KEY") != "api-key" || r.Header.Get("POLY_SIGNATURE") == "" {
			t.Error("missing L2 headers")
		}
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, `{"success":true,"orderID":"0xabc","status":"matched"}`)
	}))
	defer srv.Close()

	tr := newTestTrader(t, srv.URL, true)
	ack, err := tr.SubmitOrder(context.Background(), domain.OrderRequest{
		PositionID: "p1",
		MarketID:   "m1",
		TokenID:    "123",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeFOK,
		Price:      decimal.RequireFromString("0.95"),
		SizeUSD:    decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if ack.OrderID != "0xabc" || ack.Status != domain.OrderStatusMatched {
		t.Fatalf("ack = %+v", ack)
	}

	// 100 / 0.95 = 105.26 shares costing 99.997 USDC.
	if posted.Order["makerAmount"] != "99997000" || posted.Order["takerAmount"] != "105260000" {
		t.Fatalf("amounts = %v / %v", posted.Order["makerAmount"], posted.Order["takerAmount"])
	}
	if posted.Order["side"] != "BUY" || posted.OrderType != "FOK" || posted.Owner != "api-key" {
		t.Fatalf("posted = %+v", posted)
	}
	if posted.Order["maker"] != tr.signer.Address().Hex() {
		t.Fatalf("maker = %v", posted.Order["maker"])
	}
}

func TestTraderNotSubmitted(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	req := domain.OrderRequest{
		TokenID: "123",
		Price:   decimal.RequireFromString("0.95"),
		SizeUSD: decimal.NewFromInt(100),
	}

	_, err := newTestTrader(t, srv.URL, false).SubmitOrder(context.Background(), req)
	if !errors.Is(err, domain.ErrNotSubmitted) || !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("missing creds: err = %v", err)
	}

	bad := req
	bad.Price = decimal.NewFromInt(1)
	_, err = newTestTrader(t, srv.URL, true).SubmitOrder(context.Background(), bad)
	if !errors.Is(err, domain.ErrNotSubmitted) || !errors.Is(err, domain.ErrInvalidOrder) {
		t.Fatalf("bad price: err = %v", err)
	}
	if !domain.IsSafeToRetry(err) {
		t.Fatal("unsubmitted orders are safe to retry")
	}
	if called {
		t.Fatal("nothing should reach the exchange")
	}
}

func TestTraderRejectedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":false,"errorMsg":"not enough balance"}`)
	}))
	defer srv.Close()

	ack, err := newTestTrader(t, srv.URL, true).SubmitOrder(context.Background(), domain.OrderRequest{
		TokenID: "123",
		Price:   decimal.RequireFromString("0.95"),
		SizeUSD: decimal.NewFromInt(10),
	})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if errors.Is(err, domain.ErrNotSubmitted) {
		t.Fatal("a rejected order reached the exchange")
	}
	if ack.Status != domain.OrderStatusFailed || ack.Message != "not enough balance" {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestTraderOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/order/0xabc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"id":"0xabc","status":"LIVE"}`)
	}))
	defer srv.Close()

	ack, err := newTestTrader(t, srv.URL, true).OrderStatus(context.Background(), "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != domain.OrderStatusOpen {
		t.Fatalf("status = %s, want open", ack.Status)
	}
}

func TestTraderCollateralBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/balance-allowance" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q := r.URL.Query(); q.Get("asset_type") != "COLLATERAL" || q.Get("signature_type") != "0" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("POLY_API_KEY") != "api-key" {
			t.Error("missing L2 headers")
		}
		io.WriteString(w, `{"balance":"2500123456","allowances":{}}`)
	}))
	defer srv.Close()

	bal, err := newTestTrader(t, srv.URL, true).CollateralBalance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bal.Equal(decimal.RequireFromString("2500.123456")) {
		t.Fatalf("balance = %s", bal)
	}

	if _, err := newTestTrader(t, srv.URL, false).CollateralBalance(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestMapOrderStatus(t *testing.T) {
	cases := map[string]domain.OrderStatus{
		"live":      domain.OrderStatusOpen,
		"MATCHED":   domain.OrderStatusMatched,
		"canceled":  domain.OrderStatusCancelled,
		"unmatched": domain.OrderStatusCancelled,
		"failed":    domain.OrderStatusFailed,
		"delayed":   domain.OrderStatusPending,
	}
	for in, want := range cases {
		if got := mapOrderStatus(in); got != want {
			t.Errorf("mapOrderStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/crypto"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

// ClobClient talks to the Polymarket CLOB REST API: public order books, and
// order placement, lookup and cancellation with L2 credentials.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer   // nil for read-only use
	hmacAuth   *crypto.HMACAuth // nil until configured or derived
	limiter    domain.RateLimiter
	perSecond  int
}

// NewClobClient creates a client for baseURL. signer and hmac may be nil
// when only order books are read.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
		hmacAuth:   hmac,
	}
}

// WithRateLimiter gates book reads through limiter at perSecond requests per
// second.
func (c *ClobClient) WithRateLimiter(limiter domain.RateLimiter, perSecond int) *ClobClient {
	c.limiter = limiter
	c.perSecond = perSecond
	return c
}

// HasCredentials reports whether L2 API credentials are loaded.
func (c *ClobClient) HasCredentials() bool {
	return c.hmacAuth != nil
}

// OrderBook implements domain.BookSource.
func (c *ClobClient) OrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	if c.limiter != nil && c.perSecond > 0 {
		if err := c.limiter.Wait(ctx, "clob:book", c.perSecond, time.Second); err != nil {
			return domain.OrderBook{}, fmt.Errorf("polymarket/clob: rate limiter: %w", err)
		}
	}

	var book APIBook
	path := "/book?" + url.Values{"token_id": {tokenID}}.Encode()
	if err := c.call(ctx, http.MethodGet, path, nil, &book, nil); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}
	out := book.ToDomainBook()
	if out.TokenID == "" {
		out.TokenID = tokenID
	}
	return out, nil
}

// signedOrder is the wire form of an order in POST /order.
type signedOrder struct {
	Salt          string `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// PostOrder posts a signed order on behalf of owner (the API key). A
// rejection is returned as an error alongside the failed acknowledgement.
func (c *ClobClient) PostOrder(ctx context.Context, order domain.Order, owner string) (domain.OrderAck, error) {
	side := "BUY"
	if order.Side == domain.OrderSideSell {
		side = "SELL"
	}
	body := struct {
		Order     signedOrder `json:"order"`
		Owner     string      `json:"owner"`
		OrderType string      `json:"orderType"`
	}{
		Order: signedOrder{
			Salt:          order.Salt,
			Maker:         order.Wallet,
			Signer:        order.Signer,
			Taker:         zeroAddress,
			TokenID:       order.TokenID,
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Expiration:    "0",
			Nonce:         "0",
			FeeRateBps:    "0",
			Side:          side,
			SignatureType: order.SignatureType,
			Signature:     order.Signature,
		},
		Owner:     owner,
		OrderType: string(order.Type),
	}

	var res APIOrderResult
	if err := c.call(ctx, http.MethodPost, "/order", body, &res, c.l2Headers); err != nil {
		return domain.OrderAck{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}
	ack := res.ToDomainAck()
	if !res.Success {
		return ack, fmt.Errorf("polymarket/clob: order rejected: %s", res.ErrorMsg)
	}
	return ack, nil
}

// CancelOrder cancels one resting order.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]string{"orderID": orderID}
	if err := c.call(ctx, http.MethodDelete, "/order", body, nil, c.l2Headers); err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetOrder returns the exchange's current view of an order.
func (c *ClobClient) GetOrder(ctx context.Context, orderID string) (domain.OrderAck, error) {
	var o APIOrder
	if err := c.call(ctx, http.MethodGet, "/data/order/"+url.PathEscape(orderID), nil, &o, c.l2Headers); err != nil {
		return domain.OrderAck{}, fmt.Errorf("polymarket/clob: get order %s: %w", orderID, err)
	}
	ack := o.ToDomainAck()
	if ack.OrderID == "" {
		ack.OrderID = orderID
	}
	return ack, nil
}

// CollateralBalance returns the wallet's USDC balance in dollars.
func (c *ClobClient) CollateralBalance(ctx context.Context, signatureType int) (decimal.Decimal, error) {
	q := url.Values{
		"asset_type":     {"COLLATERAL"},
		"signature_type": {strconv.Itoa(signatureType)},
	}
	var out struct {
		Balance string `json:"balance"`
	}
	if err := c.call(ctx, http.MethodGet, "/balance-allowance?"+q.Encode(), nil, &out, c.l2Headers); err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: balance: %w", err)
	}
	units, err := decimal.NewFromString(out.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("polymarket/clob: balance %q: %w", out.Balance, domain.ErrMalformedRecord)
	}
	return units.Div(usdcUnits), nil
}

// DeriveAPIKey obtains L2 credentials for the signer's wallet by signing a
// ClobAuth message (L1 auth) and stores them on the client.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", domain.ErrUnauthorized)
	}
	var creds struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := c.call(ctx, http.MethodGet, "/auth/derive-api-key", nil, &creds, c.l1Headers); err != nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}
	c.hmacAuth = &crypto.HMACAuth{
		Key:        creds.APIKey,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}
	return nil
}

// headerFunc returns the auth headers of one request.
type headerFunc func(method, path, body string) (map[string]string, error)

func (c *ClobClient) l1Headers(_, _, _ string) (map[string]string, error) {
	address := c.signer.Address().Hex()
	ts := time.Now().Unix()
	sig, err := c.signer.SignAuthMessage(address, ts, 0)
	if err != nil {
		return nil, fmt.Errorf("sign auth message: %w", err)
	}
	return map[string]string{
		"POLY_ADDRESS":   address,
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": strconv.FormatInt(ts, 10),
		"POLY_NONCE":     "0",
	}, nil
}

func (c *ClobClient) l2Headers(method, path, body string) (map[string]string, error) {
	if c.hmacAuth == nil || c.signer == nil {
		return nil, fmt.Errorf("%w: no clob api credentials", domain.ErrUnauthorized)
	}
	return c.hmacAuth.L2Headers(c.signer.Address().Hex(), method, path, body), nil
}

// call sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil). auth, when set, adds its headers.
func (c *ClobClient) call(ctx context.Context, method, path string, in, out any, auth headerFunc) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		// Signatures cover the path without its query string.
		signed, _, _ := strings.Cut(path, "?")
		headers, err := auth(method, signed, string(payload))
		if err != nil {
			return err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, data); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrMalformedRecord, err)
	}
	return nil
}

// checkHTTPStatus maps a non-2xx response to a domain error.
func checkHTTPStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstream, code, body)
	default:
		return fmt.Errorf("HTTP %d: %s", code, body)
	}
}

package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusMatched   OrderStatus = "matched"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusSimulated OrderStatus = "simulated"
)

// Terminal reports whether no further status transitions are expected.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusMatched, OrderStatusCancelled, OrderStatusFailed, OrderStatusSimulated:
		return true
	}
	return false
}

// OrderRequest is what the executor hands to an OrderSubmitter: buy SizeUSD
// worth of TokenID at no worse than Price.
type OrderRequest struct {
	PositionID string
	MarketID   string
	TokenID    string
	Side       OrderSide
	Type       OrderType
	Price      decimal.Decimal
	SizeUSD    decimal.Decimal
}

// Shares returns the outcome-token quantity the request buys.
func (r OrderRequest) Shares() decimal.Decimal {
	if r.Price.IsZero() {
		return decimal.Zero
	}
	return r.SizeUSD.Div(r.Price).RoundDown(2)
}

// Order represents a signed CLOB order.
type Order struct {
	ID            string
	MarketID      string
	TokenID       string
	Wallet        string // maker (funder) address
	Signer        string // address of the signing key
	SignatureType int
	Side          OrderSide
	Type          OrderType
	MakerAmount   *big.Int // integer notional used in signed payload
	TakerAmount   *big.Int // integer quantity used in signed payload
	Salt          string
	Signature     string // EIP-712 hex
	Status        OrderStatus
	CreatedAt     time.Time
}

// OrderAck is the exchange's immediate answer to a submission or status
// query.
type OrderAck struct {
	OrderID string
	Status  OrderStatus
	Message string
}

// OrderResult is the terminal outcome of executing one position.
type OrderResult struct {
	PositionID  string      `json:"position_id"`
	MarketID    string      `json:"market_id"`
	Success     bool        `json:"success"`
	OrderID     string      `json:"order_id,omitempty"`
	DryRun      bool        `json:"dry_run"`
	Error       string      `json:"error,omitempty"`
	Status      OrderStatus `json:"status"`
	SafeToRetry bool        `json:"safe_to_retry"`
	Attempts    int         `json:"attempts"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

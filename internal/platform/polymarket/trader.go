package polymarket

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/crypto"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// usdcUnits is the fixed-point scale of USDC and outcome-token amounts.
var usdcUnits = decimal.New(1, 6)

// OrderSigner abstracts EIP-712 order signing so the trader never depends on
// a concrete key-management implementation.
type OrderSigner interface {
	SignOrder(payload crypto.OrderPayload) (string, error)
	Address() common.Address
}

// Trader turns order requests into signed CLOB orders. It implements
// domain.OrderSubmitter.
type Trader struct {
	clob          *ClobClient
	signer        OrderSigner
	funder        string
	signatureType int
	salt          atomic.Int64
}

// NewTrader creates a Trader. funder is the proxy or Safe wallet that holds
// the funds; when empty the signer's own address is the maker.
func NewTrader(clob *ClobClient, signer OrderSigner, funder string, signatureType int) *Trader {
	t := &Trader{
		clob:          clob,
		signer:        signer,
		funder:        funder,
		signatureType: signatureType,
	}
	t.salt.Store(time.Now().UnixNano())
	return t
}

// SubmitOrder signs req and posts it. Failures that happen before the
// request leaves the process wrap domain.ErrNotSubmitted.
func (t *Trader) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderAck, error) {
	order, err := t.buildOrder(req)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("polymarket/trader: %w: %w", domain.ErrNotSubmitted, err)
	}
	if !t.clob.HasCredentials() {
		return domain.OrderAck{}, fmt.Errorf("polymarket/trader: %w: %w", domain.ErrNotSubmitted, domain.ErrUnauthorized)
	}

	ack, err := t.clob.PostOrder(ctx, order, t.clob.hmacAuth.Key)
	if err != nil {
		return ack, fmt.Errorf("polymarket/trader: submit %s: %w", req.PositionID, err)
	}
	return ack, nil
}

// CollateralBalance implements domain.BalanceSource for the funding wallet.
func (t *Trader) CollateralBalance(ctx context.Context) (decimal.Decimal, error) {
	if !t.clob.HasCredentials() {
		return decimal.Zero, fmt.Errorf("polymarket/trader: balance: %w", domain.ErrUnauthorized)
	}
	return t.clob.CollateralBalance(ctx, t.signatureType)
}

// OrderStatus reports the exchange's current view of an order.
func (t *Trader) OrderStatus(ctx context.Context, orderID string) (domain.OrderAck, error) {
	return t.clob.GetOrder(ctx, orderID)
}

// CancelOrder cancels a resting order.
func (t *Trader) CancelOrder(ctx context.Context, orderID string) error {
	return t.clob.CancelOrder(ctx, orderID)
}

func (t *Trader) buildOrder(req domain.OrderRequest) (domain.Order, error) {
	if req.TokenID == "" {
		return domain.Order{}, errors.New("missing token id")
	}
	if !req.Price.IsPositive() || req.Price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return domain.Order{}, fmt.Errorf("%w: price %s outside (0, 1)", domain.ErrInvalidOrder, req.Price)
	}
	shares := req.Shares()
	if !shares.IsPositive() {
		return domain.Order{}, fmt.Errorf("%w: size %s buys no shares", domain.ErrInvalidOrder, req.SizeUSD)
	}

	// A buy gives up USDC (maker) for outcome tokens (taker).
	notional := shares.Mul(req.Price).RoundDown(4)
	maker, taker := notional, shares
	side := 0
	if req.Side == domain.OrderSideSell {
		maker, taker = shares, notional
		side = 1
	}
	makerAmount := maker.Mul(usdcUnits).BigInt()
	takerAmount := taker.Mul(usdcUnits).BigInt()

	signerAddr := t.signer.Address().Hex()
	wallet := t.funder
	if wallet == "" {
		wallet = signerAddr
	}
	salt := strconv.FormatInt(t.salt.Add(1), 10)

	payload := crypto.OrderPayload{
		Salt:          salt,
		Maker:         wallet,
		Signer:        signerAddr,
		Taker:         zeroAddress,
		TokenID:       req.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: t.signatureType,
	}
	signature, err := t.signer.SignOrder(payload)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	orderType := req.Type
	if orderType == "" {
		orderType = domain.OrderTypeFOK
	}
	orderSide := req.Side
	if orderSide == "" {
		orderSide = domain.OrderSideBuy
	}

	return domain.Order{
		ID:            req.PositionID,
		MarketID:      req.MarketID,
		TokenID:       req.TokenID,
		Wallet:        wallet,
		Signer:        signerAddr,
		SignatureType: t.signatureType,
		Side:          orderSide,
		Type:          orderType,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Salt:          salt,
		Signature:     signature,
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

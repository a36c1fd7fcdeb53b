package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketSource lists raw markets from the market-data provider.
type MarketSource interface {
	ListMarkets(ctx context.Context, limit int) ([]MarketRecord, error)
	GetMarket(ctx context.Context, id string) (MarketRecord, error)
}

// BookSource fetches the order book of one outcome token.
type BookSource interface {
	OrderBook(ctx context.Context, tokenID string) (OrderBook, error)
}

// OrderSubmitter places orders on the exchange. SubmitOrder errors that wrap
// ErrNotSubmitted guarantee the order never reached the exchange.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	OrderStatus(ctx context.Context, orderID string) (OrderAck, error)
}

// BalanceSource reports the wallet's spendable collateral in USD.
type BalanceSource interface {
	CollateralBalance(ctx context.Context) (decimal.Decimal, error)
}

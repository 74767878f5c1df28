package marginfi

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/utpunwind/internal/domain"
)

// ZoClient talks to the 01 venue through the bridge.
type ZoClient struct {
	c *Client
}

func zoPath(account, suffix string) string {
	return accountPath(account, "/zo"+suffix)
}

func (z *ZoClient) Observe(ctx context.Context, account string) (*domain.Observation, error) {
	var out domain.Observation
	if err := z.c.get(ctx, zoPath(account, "/observation"), &out); err != nil {
		return nil, errors.Wrap(err, "observe zo")
	}
	return &out, nil
}

func (z *ZoClient) LoadMarginState(ctx context.Context, account string) (*domain.ZoMarginState, error) {
	var out domain.ZoMarginState
	if err := z.c.get(ctx, zoPath(account, "/state"), &out); err != nil {
		return nil, errors.Wrap(err, "load zo margin")
	}
	return &out, nil
}

func (z *ZoClient) LoadOrderBook(ctx context.Context, account string, symbol string) (*domain.OrderBook, error) {
	var out domain.OrderBook
	if err := z.c.get(ctx, zoPath(account, "/markets/"+url.PathEscape(symbol)+"/orderbook"), &out); err != nil {
		return nil, errors.Wrapf(err, "load %s order book", symbol)
	}
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	return &out, nil
}

func (z *ZoClient) CreatePerpOpenOrders(ctx context.Context, account string, symbol string) (string, error) {
	sig, err := z.c.execute(ctx, zoPath(account, "/create-perp-open-orders"), map[string]any{"symbol": symbol})
	return sig, errors.Wrapf(err, "create %s open orders", symbol)
}

func (z *ZoClient) CancelPerpOrder(ctx context.Context, account string, symbol string) (string, error) {
	sig, err := z.c.execute(ctx, zoPath(account, "/cancel-perp-order"), map[string]any{"symbol": symbol})
	return sig, errors.Wrapf(err, "cancel %s orders", symbol)
}

func (z *ZoClient) PlacePerpOrder(ctx context.Context, account string, req domain.ZoOrderRequest) (string, error) {
	sig, err := z.c.execute(ctx, zoPath(account, "/place-perp-order"), map[string]any{
		"symbol":    req.Symbol,
		"orderType": req.OrderType,
		"isLong":    req.IsLong,
		"price":     req.Price,
		"size":      req.Size,
		"clientId":  req.ClientID,
	})
	return sig, errors.Wrapf(err, "place %s order", req.Symbol)
}

func (z *ZoClient) SettleFunds(ctx context.Context, account string, symbol string) (string, error) {
	sig, err := z.c.execute(ctx, zoPath(account, "/settle-funds"), map[string]any{"symbol": symbol})
	return sig, errors.Wrapf(err, "settle %s funds", symbol)
}

func (z *ZoClient) Withdraw(ctx context.Context, account string, amount decimal.Decimal) (string, error) {
	sig, err := z.c.execute(ctx, zoPath(account, "/withdraw"), map[string]any{"amount": amount})
	return sig, errors.Wrapf(err, "withdraw %s from zo", amount)
}

func (z *ZoClient) Deactivate(ctx context.Context, account string) (string, error) {
	sig, err := z.c.execute(ctx, zoPath(account, "/deactivate"), nil)
	return sig, errors.Wrap(err, "deactivate zo")
}

package marginfi

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/utpunwind/internal/domain"
)

// MangoClient talks to the perpetuals venue through the bridge.
type MangoClient struct {
	c *Client
}

func mangoPath(account, suffix string) string {
	return accountPath(account, "/mango"+suffix)
}

type perpMarketsResponse struct {
	PerpMarkets []domain.PerpMarketConfig `json:"perpMarkets"`
}

func (m *MangoClient) Observe(ctx context.Context, account string) (*domain.Observation, error) {
	var out domain.Observation
	if err := m.c.get(ctx, mangoPath(account, "/observation"), &out); err != nil {
		return nil, errors.Wrap(err, "observe mango")
	}
	return &out, nil
}

func (m *MangoClient) PerpMarketConfigs(ctx context.Context, account string) ([]domain.PerpMarketConfig, error) {
	var out perpMarketsResponse
	if err := m.c.get(ctx, mangoPath(account, "/markets"), &out); err != nil {
		return nil, errors.Wrap(err, "mango perp markets")
	}
	return out.PerpMarkets, nil
}

func (m *MangoClient) LoadPerpMarket(ctx context.Context, account string, cfg domain.PerpMarketConfig) (*domain.PerpMarket, error) {
	var out domain.PerpMarket
	if err := m.c.get(ctx, mangoPath(account, "/markets/"+strconv.Itoa(cfg.Index)), &out); err != nil {
		return nil, errors.Wrapf(err, "load perp market %d", cfg.Index)
	}
	// the bridge only fills on-chain fields
	out.PerpMarketConfig = cfg
	return &out, nil
}

func (m *MangoClient) LoadAccountState(ctx context.Context, account string) (*domain.PerpAccountState, error) {
	var out domain.PerpAccountState
	if err := m.c.get(ctx, mangoPath(account, "/account"), &out); err != nil {
		return nil, errors.Wrap(err, "load mango account")
	}
	return &out, nil
}

func (m *MangoClient) CancelPerpOrder(ctx context.Context, account string, marketIndex int, orderID string) (string, error) {
	sig, err := m.c.execute(ctx, mangoPath(account, "/cancel-perp-order"), map[string]any{
		"marketIndex": marketIndex,
		"orderId":     orderID,
	})
	return sig, errors.Wrapf(err, "cancel perp order %s", orderID)
}

func (m *MangoClient) PlacePerpOrder(ctx context.Context, account string, req domain.PerpOrderRequest) (string, error) {
	body := map[string]any{
		"marketIndex": req.MarketIndex,
		"side":        req.Side,
		"price":       req.Price,
		"size":        req.Size,
		"orderType":   req.OrderType,
		"reduceOnly":  req.ReduceOnly,
	}
	if req.ComputeUnits > 0 {
		body["computeUnits"] = req.ComputeUnits
	}
	sig, err := m.c.execute(ctx, mangoPath(account, "/place-perp-order"), body)
	return sig, errors.Wrapf(err, "place perp order on market %d", req.MarketIndex)
}

func (m *MangoClient) SettlePnl(ctx context.Context, account string, marketIndex int) (string, error) {
	sig, err := m.c.execute(ctx, mangoPath(account, "/settle-pnl"), map[string]any{"marketIndex": marketIndex})
	return sig, errors.Wrapf(err, "settle pnl on market %d", marketIndex)
}

func (m *MangoClient) Withdraw(ctx context.Context, account string, amount decimal.Decimal) (string, error) {
	sig, err := m.c.execute(ctx, mangoPath(account, "/withdraw"), map[string]any{"amount": amount})
	return sig, errors.Wrapf(err, "withdraw %s from mango", amount)
}

func (m *MangoClient) Deactivate(ctx context.Context, account string) (string, error) {
	sig, err := m.c.execute(ctx, mangoPath(account, "/deactivate"), nil)
	return sig, errors.Wrap(err, "deactivate mango")
}

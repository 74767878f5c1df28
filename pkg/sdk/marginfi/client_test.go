package marginfi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/betbot/utpunwind/internal/ports"
	sdkhttp "github.com/betbot/utpunwind/pkg/sdk/http"
)

var (
	_ ports.MarginProtocol = (*Client)(nil)
	_ ports.MangoVenue     = (*MangoClient)(nil)
	_ ports.ZoVenue        = (*ZoClient)(nil)
)

const testFeePayer = "FVen3X669xLzsi6N2V91DoiyzHzg1uAgqiT8jZ9nS96Z"

type fakeSender struct {
	Calls       map[string]int
	ErrorOnNext map[string]error
	submitted   [][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{Calls: map[string]int{}, ErrorOnNext: map[string]error{}}
}

func (f *fakeSender) take(name string) error {
	f.Calls[name]++
	if err, ok := f.ErrorOnNext[name]; ok {
		delete(f.ErrorOnNext, name)
		return err
	}
	return nil
}

func (f *fakeSender) FeePayer() string { return testFeePayer }

func (f *fakeSender) LatestBlockhash(context.Context) (string, error) {
	if err := f.take("LatestBlockhash"); err != nil {
		return "", err
	}
	return "blockhash-1", nil
}

func (f *fakeSender) Submit(_ context.Context, msg []byte) (string, error) {
	if err := f.take("Submit"); err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, msg)
	return "sig-" + string(msg), nil
}

type recordedRequest struct {
	Method string
	Path   string
	Env    string
	Body   map[string]any
}

// bridge is a scripted bridge; routes map "METHOD path" to a JSON response.
type bridge struct {
	*httptest.Server
	mu       sync.Mutex
	routes   map[string]any
	requests []recordedRequest
}

func newBridge(t *testing.T, routes map[string]any) *bridge {
	t.Helper()
	b := &bridge{routes: routes}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Env: r.Header.Get(EnvironmentHeader)}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req.Body)
		}
		b.mu.Lock()
		b.requests = append(b.requests, req)
		resp, ok := b.routes[r.Method+" "+req.Path]
		b.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "no route " + req.Path})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *bridge) last() recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func message(s string) map[string]any {
	return map[string]any{"message": base64.StdEncoding.EncodeToString([]byte(s))}
}

func newTestClient(b *bridge, sender Sender) *Client {
	return NewClient(b.URL, "production", sender, sdkhttp.WithRetry(0, time.Millisecond, time.Millisecond))
}

func TestClient_OwnAccounts(t *testing.T) {
	b := newBridge(t, map[string]any{
		"GET /v1/authorities/" + testFeePayer + "/accounts": map[string]any{"accounts": []string{"acc1", "acc2"}},
	})
	c := newTestClient(b, newFakeSender())

	accounts, err := c.OwnAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1", "acc2"}, accounts)
	assert.Equal(t, "production", b.last().Env)
}

func TestClient_LoadAccount(t *testing.T) {
	b := newBridge(t, map[string]any{
		"GET /v1/accounts/acc1": map[string]any{
			"authority":  testFeePayer,
			"activeUtps": []string{"mango", "zo"},
			"balances":   map[string]any{"equity": "12.5", "assets": "20", "liabilities": "7.5"},
		},
	})
	c := newTestClient(b, newFakeSender())

	acc, err := c.LoadAccount(context.Background(), "acc1")
	require.NoError(t, err)
	assert.Equal(t, "acc1", acc.Address)
	assert.True(t, acc.IsActive(domain.UTPMango))
	assert.True(t, acc.IsActive(domain.UTPZo))
	assert.True(t, acc.Balances.Equity.Equal(decimal.RequireFromString("12.5")))
}

func TestClient_HTTPErrorCarriesStatusAndBody(t *testing.T) {
	b := newBridge(t, map[string]any{})
	c := newTestClient(b, newFakeSender())

	_, err := c.LoadAccount(context.Background(), "missing")
	require.Error(t, err)
	var httpErr *sdkhttp.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Contains(t, err.Error(), "no route")
	assert.Contains(t, err.Error(), "load margin account missing")
}

func TestClient_WithdrawBuildsSignsAndSubmits(t *testing.T) {
	b := newBridge(t, map[string]any{
		"POST /v1/accounts/acc1/withdraw": message("withdraw-msg"),
	})
	sender := newFakeSender()
	c := newTestClient(b, sender)

	sig, err := c.Withdraw(context.Background(), "acc1", decimal.RequireFromString("3.25"))
	require.NoError(t, err)
	assert.Equal(t, "sig-withdraw-msg", sig)
	require.Len(t, sender.submitted, 1)

	body := b.last().Body
	assert.Equal(t, "3.25", body["amount"])
	assert.Equal(t, testFeePayer, body["feePayer"])
	assert.Equal(t, "blockhash-1", body["recentBlockhash"])
}

func TestClient_SubmitErrorIsWrapped(t *testing.T) {
	b := newBridge(t, map[string]any{
		"POST /v1/accounts/acc1/withdraw": message("withdraw-msg"),
	})
	sender := newFakeSender()
	sender.ErrorOnNext["Submit"] = errors.New("insufficient funds")
	c := newTestClient(b, sender)

	_, err := c.Withdraw(context.Background(), "acc1", decimal.NewFromInt(1))
	assert.ErrorContains(t, err, "insufficient funds")
	assert.ErrorContains(t, err, "withdraw 1 from acc1")
}

func TestClient_BlockhashErrorStopsBeforeBuild(t *testing.T) {
	b := newBridge(t, map[string]any{})
	sender := newFakeSender()
	sender.ErrorOnNext["LatestBlockhash"] = errors.New("rpc down")
	c := newTestClient(b, sender)

	_, err := c.Mango().Deactivate(context.Background(), "acc1")
	assert.ErrorContains(t, err, "rpc down")
	assert.Empty(t, b.requests)
}

func TestClient_EmptyMessageRejected(t *testing.T) {
	b := newBridge(t, map[string]any{
		"POST /v1/accounts/acc1/zo/deactivate": map[string]any{"message": ""},
	})
	sender := newFakeSender()
	c := newTestClient(b, sender)

	_, err := c.Zo().Deactivate(context.Background(), "acc1")
	assert.ErrorContains(t, err, "empty transaction message")
	assert.Zero(t, sender.Calls["Submit"])
}

func TestMango_ReadEndpoints(t *testing.T) {
	b := newBridge(t, map[string]any{
		"GET /v1/accounts/acc1/mango/observation": map[string]any{"freeCollateral": "4.2", "equity": "5", "valid": true},
		"GET /v1/accounts/acc1/mango/markets": map[string]any{"perpMarkets": []any{
			map[string]any{"marketIndex": 3, "baseSymbol": "SOL", "baseDecimals": 9, "quoteDecimals": 6},
		}},
		"GET /v1/accounts/acc1/mango/markets/3": map[string]any{"address": "mkt", "liquidationFee": "0.025", "oraclePrice": "40"},
		"GET /v1/accounts/acc1/mango/account": map[string]any{
			"perpAccounts": []any{map[string]any{"marketIndex": 3, "basePosition": "-2", "quotePosition": "80"}},
			"openOrders":   []any{map[string]any{"orderId": "o1", "marketIndex": 3, "side": "bid", "price": "39", "size": "1"}},
		},
	})
	m := newTestClient(b, newFakeSender()).Mango()
	ctx := context.Background()

	obs, err := m.Observe(ctx, "acc1")
	require.NoError(t, err)
	assert.True(t, obs.Valid)
	assert.True(t, obs.FreeCollateral.Equal(decimal.RequireFromString("4.2")))

	cfgs, err := m.PerpMarketConfigs(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, cfgs, 1)

	market, err := m.LoadPerpMarket(ctx, "acc1", cfgs[0])
	require.NoError(t, err)
	assert.Equal(t, "SOL-PERP", market.Symbol())
	assert.Equal(t, "mkt", market.Address)
	assert.True(t, market.OraclePrice.Equal(decimal.NewFromInt(40)))

	state, err := m.LoadAccountState(ctx, "acc1")
	require.NoError(t, err)
	pa, ok := state.PerpAccountFor(3)
	require.True(t, ok)
	assert.True(t, pa.BasePosition.Equal(decimal.NewFromInt(-2)))
	require.Len(t, state.OrdersFor(3), 1)
	assert.Equal(t, domain.SideBid, state.OrdersFor(3)[0].Side)
}

func TestMango_PlacePerpOrderBody(t *testing.T) {
	b := newBridge(t, map[string]any{
		"POST /v1/accounts/acc1/mango/place-perp-order": message("place"),
	})
	m := newTestClient(b, newFakeSender()).Mango()

	sig, err := m.PlacePerpOrder(context.Background(), "acc1", domain.PerpOrderRequest{
		MarketIndex:  3,
		Side:         domain.SideBid,
		Price:        decimal.NewFromInt(41),
		Size:         decimal.NewFromInt(2),
		OrderType:    domain.OrderTypeMarket,
		ReduceOnly:   true,
		ComputeUnits: 400_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-place", sig)

	body := b.last().Body
	assert.Equal(t, float64(3), body["marketIndex"])
	assert.Equal(t, "bid", body["side"])
	assert.Equal(t, "41", body["price"])
	assert.Equal(t, "2", body["size"])
	assert.Equal(t, "market", body["orderType"])
	assert.Equal(t, true, body["reduceOnly"])
	assert.Equal(t, float64(400_000), body["computeUnits"])
}

func TestMango_WriteEndpoints(t *testing.T) {
	b := newBridge(t, map[string]any{
		"POST /v1/accounts/acc1/mango/cancel-perp-order": message("cancel"),
		"POST /v1/accounts/acc1/mango/settle-pnl":        message("settle"),
		"POST /v1/accounts/acc1/mango/withdraw":          message("withdraw"),
	})
	m := newTestClient(b, newFakeSender()).Mango()
	ctx := context.Background()

	sig, err := m.CancelPerpOrder(ctx, "acc1", 3, "o1")
	require.NoError(t, err)
	assert.Equal(t, "sig-cancel", sig)
	assert.Equal(t, "o1", b.last().Body["orderId"])

	sig, err = m.SettlePnl(ctx, "acc1", 3)
	require.NoError(t, err)
	assert.Equal(t, "sig-settle", sig)

	sig, err = m.Withdraw(ctx, "acc1", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "sig-withdraw", sig)
	assert.Equal(t, "0.5", b.last().Body["amount"])
}

func TestZo_Endpoints(t *testing.T) {
	b := newBridge(t, map[string]any{
		"GET /v1/accounts/acc1/zo/state": map[string]any{
			"markets":    []string{"SOL-PERP"},
			"positions":  []any{map[string]any{"marketKey": "SOL-PERP", "coins": "3", "isLong": true}},
			"openOrders": map[string]any{"SOL-PERP": map[string]any{"symbol": "SOL-PERP", "coinOnAsks": "0", "coinOnBids": "1"}},
		},
		"GET /v1/accounts/acc1/zo/markets/SOL-PERP/orderbook": map[string]any{
			"asks": []any{map[string]any{"price": "10.5", "size": "1"}},
			"bids": []any{map[string]any{"price": "10.3", "size": "1"}, map[string]any{"price": "10.1", "size": "1"}},
		},
		"POST /v1/accounts/acc1/zo/create-perp-open-orders": message("create"),
		"POST /v1/accounts/acc1/zo/place-perp-order":        message("place"),
		"POST /v1/accounts/acc1/zo/settle-funds":            message("settle"),
	})
	z := newTestClient(b, newFakeSender()).Zo()
	ctx := context.Background()

	state, err := z.LoadMarginState(ctx, "acc1")
	require.NoError(t, err)
	require.Len(t, state.Positions, 1)
	assert.True(t, state.Positions[0].IsLong)
	assert.False(t, state.OpenOrdersFor("SOL-PERP").Empty())

	book, err := z.LoadOrderBook(ctx, "acc1", "SOL-PERP")
	require.NoError(t, err)
	assert.Equal(t, "SOL-PERP", book.Symbol)
	require.Len(t, book.Bids, 2)

	_, err = z.CreatePerpOpenOrders(ctx, "acc1", "SOL-PERP")
	require.NoError(t, err)
	assert.Equal(t, "SOL-PERP", b.last().Body["symbol"])

	_, err = z.PlacePerpOrder(ctx, "acc1", domain.ZoOrderRequest{
		Symbol:    "SOL-PERP",
		OrderType: domain.OrderTypeReduceOnlyIoc,
		IsLong:    false,
		Price:     decimal.RequireFromString("10.1"),
		Size:      decimal.NewFromInt(3),
		ClientID:  "cid",
	})
	require.NoError(t, err)
	body := b.last().Body
	assert.Equal(t, "reduceOnlyIoc", body["orderType"])
	assert.Equal(t, false, body["isLong"])
	assert.Equal(t, "10.1", body["price"])
	assert.Equal(t, "cid", body["clientId"])

	sig, err := z.SettleFunds(ctx, "acc1", "SOL-PERP")
	require.NoError(t, err)
	assert.Equal(t, "sig-settle", sig)
}

func TestClient_RetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accounts":["acc1"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", newFakeSender(), sdkhttp.WithRetry(2, time.Millisecond, 5*time.Millisecond))
	accounts, err := c.OwnAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1"}, accounts)
	assert.Equal(t, 2, hits)
}

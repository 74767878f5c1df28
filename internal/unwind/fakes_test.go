package unwind

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/utpunwind/internal/domain"
)

// callLog records calls across all fakes in order.
type callLog struct {
	mu          sync.Mutex
	seq         []string
	counts      map[string]int
	errorOnNext map[string]error
}

func newCallLog() *callLog {
	return &callLog{counts: map[string]int{}, errorOnNext: map[string]error{}}
}

func (c *callLog) track(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = append(c.seq, name)
	c.counts[name]++
	if err, ok := c.errorOnNext[name]; ok {
		delete(c.errorOnNext, name)
		return err
	}
	return nil
}

func (c *callLog) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

func (c *callLog) failNext(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorOnNext[name] = err
}

func (c *callLog) index(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.seq {
		if s == name {
			return i
		}
	}
	return -1
}

func (c *callLog) total(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for name, v := range c.counts {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			n += v
		}
	}
	return n
}

type withdrawal struct {
	Account string
	Amount  decimal.Decimal
}

type fakeMargin struct {
	calls    *callLog
	accounts []string
	state    map[string]*domain.MarginAccount

	mu          sync.Mutex
	withdrawals []withdrawal
}

func newFakeMargin(calls *callLog, accounts ...*domain.MarginAccount) *fakeMargin {
	f := &fakeMargin{calls: calls, state: map[string]*domain.MarginAccount{}}
	for _, a := range accounts {
		f.accounts = append(f.accounts, a.Address)
		f.state[a.Address] = a
	}
	return f
}

func (f *fakeMargin) OwnAccounts(context.Context) ([]string, error) {
	if err := f.calls.track("margin.OwnAccounts"); err != nil {
		return nil, err
	}
	return f.accounts, nil
}

func (f *fakeMargin) LoadAccount(_ context.Context, account string) (*domain.MarginAccount, error) {
	if err := f.calls.track("margin.LoadAccount"); err != nil {
		return nil, err
	}
	a, ok := f.state[account]
	if !ok {
		return nil, errors.Errorf("unknown account %s", account)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeMargin) Withdraw(_ context.Context, account string, amount decimal.Decimal) (string, error) {
	if err := f.calls.track("margin.Withdraw"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals = append(f.withdrawals, withdrawal{Account: account, Amount: amount})
	return "sig-margin-withdraw", nil
}

type fakeMango struct {
	calls       *callLog
	configs     []domain.PerpMarketConfig
	markets     map[int]*domain.PerpMarket
	state       *domain.PerpAccountState
	observation domain.Observation

	mu          sync.Mutex
	placed      []domain.PerpOrderRequest
	cancelled   []string
	settled     []int
	withdrawals []decimal.Decimal
}

func newFakeMango(calls *callLog) *fakeMango {
	return &fakeMango{calls: calls, markets: map[int]*domain.PerpMarket{}, state: &domain.PerpAccountState{}}
}

func (f *fakeMango) addMarket(m *domain.PerpMarket) {
	f.configs = append(f.configs, m.PerpMarketConfig)
	f.markets[m.Index] = m
}

func (f *fakeMango) PerpMarketConfigs(context.Context, string) ([]domain.PerpMarketConfig, error) {
	if err := f.calls.track("mango.PerpMarketConfigs"); err != nil {
		return nil, err
	}
	return f.configs, nil
}

func (f *fakeMango) LoadPerpMarket(_ context.Context, _ string, cfg domain.PerpMarketConfig) (*domain.PerpMarket, error) {
	if err := f.calls.track("mango.LoadPerpMarket"); err != nil {
		return nil, err
	}
	return f.markets[cfg.Index], nil
}

func (f *fakeMango) LoadAccountState(context.Context, string) (*domain.PerpAccountState, error) {
	if err := f.calls.track("mango.LoadAccountState"); err != nil {
		return nil, err
	}
	return f.state, nil
}

func (f *fakeMango) CancelPerpOrder(_ context.Context, _ string, _ int, orderID string) (string, error) {
	if err := f.calls.track("mango.CancelPerpOrder"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return "sig-cancel-" + orderID, nil
}

func (f *fakeMango) PlacePerpOrder(_ context.Context, _ string, req domain.PerpOrderRequest) (string, error) {
	if err := f.calls.track("mango.PlacePerpOrder"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return "sig-place", nil
}

func (f *fakeMango) SettlePnl(_ context.Context, _ string, marketIndex int) (string, error) {
	if err := f.calls.track("mango.SettlePnl"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, marketIndex)
	return "sig-settle", nil
}

func (f *fakeMango) Observe(context.Context, string) (*domain.Observation, error) {
	if err := f.calls.track("mango.Observe"); err != nil {
		return nil, err
	}
	o := f.observation
	return &o, nil
}

func (f *fakeMango) Withdraw(_ context.Context, _ string, amount decimal.Decimal) (string, error) {
	if err := f.calls.track("mango.Withdraw"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals = append(f.withdrawals, amount)
	return "sig-mango-withdraw", nil
}

func (f *fakeMango) Deactivate(context.Context, string) (string, error) {
	if err := f.calls.track("mango.Deactivate"); err != nil {
		return "", err
	}
	return "sig-mango-deactivate", nil
}

type fakeZo struct {
	calls       *callLog
	state       *domain.ZoMarginState
	books       map[string]*domain.OrderBook
	observation domain.Observation

	mu          sync.Mutex
	placed      []domain.ZoOrderRequest
	cancelled   []string
	created     []string
	settled     []string
	withdrawals []decimal.Decimal
}

func newFakeZo(calls *callLog) *fakeZo {
	return &fakeZo{
		calls: calls,
		state: &domain.ZoMarginState{OpenOrders: map[string]domain.ZoOpenOrders{}},
		books: map[string]*domain.OrderBook{},
	}
}

func (f *fakeZo) LoadMarginState(context.Context, string) (*domain.ZoMarginState, error) {
	if err := f.calls.track("zo.LoadMarginState"); err != nil {
		return nil, err
	}
	return f.state, nil
}

func (f *fakeZo) LoadOrderBook(_ context.Context, _ string, symbol string) (*domain.OrderBook, error) {
	if err := f.calls.track("zo.LoadOrderBook"); err != nil {
		return nil, err
	}
	return f.books[symbol], nil
}

func (f *fakeZo) CreatePerpOpenOrders(_ context.Context, _ string, symbol string) (string, error) {
	if err := f.calls.track("zo.CreatePerpOpenOrders"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, symbol)
	return "sig-create", nil
}

func (f *fakeZo) CancelPerpOrder(_ context.Context, _ string, symbol string) (string, error) {
	if err := f.calls.track("zo.CancelPerpOrder"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, symbol)
	return "sig-cancel", nil
}

func (f *fakeZo) PlacePerpOrder(_ context.Context, _ string, req domain.ZoOrderRequest) (string, error) {
	if err := f.calls.track("zo.PlacePerpOrder"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return "sig-place", nil
}

func (f *fakeZo) SettleFunds(_ context.Context, _ string, symbol string) (string, error) {
	if err := f.calls.track("zo.SettleFunds"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, symbol)
	return "sig-settle", nil
}

func (f *fakeZo) Observe(context.Context, string) (*domain.Observation, error) {
	if err := f.calls.track("zo.Observe"); err != nil {
		return nil, err
	}
	o := f.observation
	return &o, nil
}

func (f *fakeZo) Withdraw(_ context.Context, _ string, amount decimal.Decimal) (string, error) {
	if err := f.calls.track("zo.Withdraw"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawals = append(f.withdrawals, amount)
	return "sig-zo-withdraw", nil
}

func (f *fakeZo) Deactivate(context.Context, string) (string, error) {
	if err := f.calls.track("zo.Deactivate"); err != nil {
		return "", err
	}
	return "sig-zo-deactivate", nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	actions []domain.Action
	runIDs  []string
}

func (r *fakeRecorder) RecordAction(_ context.Context, runID string, a domain.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	r.runIDs = append(r.runIDs, runID)
	return nil
}

package ports

import (
	"context"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/shopspring/decimal"
)

// Capability interfaces for the external collaborators the unwinder drives.
// Every mutating call returns the transaction signature it produced.

// MarginProtocol is the margin-protocol client: account enumeration, reload and
// withdrawals to the owner's wallet.
type MarginProtocol interface {
	OwnAccounts(ctx context.Context) ([]string, error)
	LoadAccount(ctx context.Context, account string) (*domain.MarginAccount, error)
	Withdraw(ctx context.Context, account string, amount decimal.Decimal) (string, error)
}

// VenueCollateral is shared by both venue integrations.
type VenueCollateral interface {
	Observe(ctx context.Context, account string) (*domain.Observation, error)
	Withdraw(ctx context.Context, account string, amount decimal.Decimal) (string, error)
	Deactivate(ctx context.Context, account string) (string, error)
}

// MangoVenue is the perpetuals exchange integration (venue A).
type MangoVenue interface {
	VenueCollateral

	PerpMarketConfigs(ctx context.Context, account string) ([]domain.PerpMarketConfig, error)
	LoadPerpMarket(ctx context.Context, account string, cfg domain.PerpMarketConfig) (*domain.PerpMarket, error)
	LoadAccountState(ctx context.Context, account string) (*domain.PerpAccountState, error)
	CancelPerpOrder(ctx context.Context, account string, marketIndex int, orderID string) (string, error)
	PlacePerpOrder(ctx context.Context, account string, req domain.PerpOrderRequest) (string, error)
	SettlePnl(ctx context.Context, account string, marketIndex int) (string, error)
}

// ZoVenue is the options/perps venue integration (venue B).
type ZoVenue interface {
	VenueCollateral

	LoadMarginState(ctx context.Context, account string) (*domain.ZoMarginState, error)
	LoadOrderBook(ctx context.Context, account string, symbol string) (*domain.OrderBook, error)
	CreatePerpOpenOrders(ctx context.Context, account string, symbol string) (string, error)
	CancelPerpOrder(ctx context.Context, account string, symbol string) (string, error)
	PlacePerpOrder(ctx context.Context, account string, req domain.ZoOrderRequest) (string, error)
	SettleFunds(ctx context.Context, account string, symbol string) (string, error)
}

// ActionRecorder persists executed steps (audit journal).
type ActionRecorder interface {
	RecordAction(ctx context.Context, runID string, action domain.Action) error
}

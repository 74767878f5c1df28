package unwind

import (
	"context"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func (u *Unwinder) closeMango(ctx context.Context, acc *AccountReport) error {
	log := u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPMango.String()})
	log.Info("Closing Mango positions")

	if err := u.closeMangoPositions(ctx, acc); err != nil {
		return err
	}
	if err := u.withdrawFromMango(ctx, acc); err != nil {
		return err
	}

	sig, err := u.mango.Deactivate(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "deactivate")
	}
	log.Info("Deactivating mango")
	u.record(ctx, acc, domain.Action{Venue: domain.UTPMango, Kind: domain.ActionDeactivate, Signature: sig})

	if _, err := u.margin.LoadAccount(ctx, acc.Address); err != nil {
		return errors.Wrap(err, "reload account")
	}
	return nil
}

func (u *Unwinder) closeMangoPositions(ctx context.Context, acc *AccountReport) error {
	configs, err := u.mango.PerpMarketConfigs(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "perp market configs")
	}
	markets, err := u.loadPerpMarkets(ctx, acc.Address, configs)
	if err != nil {
		return err
	}
	state, err := u.mango.LoadAccountState(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "load mango account")
	}

	// settlement shares the closing loop's error handling; collateral
	// recovery and deactivation still run after a failed settle
	if err := u.closePerpPositions(ctx, acc, markets, state); err != nil {
		u.swallow(ctx, acc, domain.UTPMango, err)
	}
	if err := u.settleMango(ctx, acc, markets); err != nil {
		if ctx.Err() != nil {
			return err
		}
		u.swallow(ctx, acc, domain.UTPMango, err)
	}
	return nil
}

// loadPerpMarkets fetches every configured market at once; order follows configs.
func (u *Unwinder) loadPerpMarkets(ctx context.Context, account string, configs []domain.PerpMarketConfig) ([]*domain.PerpMarket, error) {
	markets := make([]*domain.PerpMarket, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			m, err := u.mango.LoadPerpMarket(gctx, account, cfg)
			if err != nil {
				return errors.Wrapf(err, "load perp market %d", cfg.Index)
			}
			markets[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return markets, nil
}

func (u *Unwinder) closePerpPositions(ctx context.Context, acc *AccountReport, markets []*domain.PerpMarket, state *domain.PerpAccountState) error {
	log := u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPMango.String()})
	log.Info("Closing positions")

	for _, market := range markets {
		if market == nil {
			continue
		}
		perpAccount, ok := state.PerpAccountFor(market.Index)
		if !ok {
			continue
		}

		for _, order := range state.OrdersFor(market.Index) {
			if order.Size.IsZero() {
				continue
			}
			log.Infof("Canceling Perp Order %s", order.OrderID)
			sig, err := u.mango.CancelPerpOrder(ctx, acc.Address, market.Index, order.OrderID)
			if err != nil {
				return errors.Wrapf(err, "cancel order %s", order.OrderID)
			}
			u.record(ctx, acc, domain.Action{
				Venue: domain.UTPMango, Kind: domain.ActionCancelOrder, Market: market.Symbol(),
				Side: order.Side, Price: order.Price, Amount: order.Size, Signature: sig,
			})
		}

		size := perpAccount.BasePosition.Abs()
		if size.IsZero() {
			continue
		}
		side := mangoClosingSide(perpAccount.BasePosition)
		price := mangoClosingPrice(market, side)
		log.Infof("%sing %s of %s for $%s", side, size, market.Symbol(), price)

		sig, err := u.mango.PlacePerpOrder(ctx, acc.Address, domain.PerpOrderRequest{
			MarketIndex:  market.Index,
			Side:         side,
			Price:        price,
			Size:         size,
			OrderType:    domain.OrderTypeMarket,
			ReduceOnly:   true,
			ComputeUnits: u.opts.ComputeUnits,
		})
		if err != nil {
			return errors.Wrapf(err, "close %s", market.Symbol())
		}
		u.record(ctx, acc, domain.Action{
			Venue: domain.UTPMango, Kind: domain.ActionClosePosition, Market: market.Symbol(),
			Side: side, Price: price, Amount: size, Signature: sig,
		})
	}
	return nil
}

// settleMango settles PnL on every market whose quote position is non-zero.
func (u *Unwinder) settleMango(ctx context.Context, acc *AccountReport, markets []*domain.PerpMarket) error {
	state, err := u.mango.LoadAccountState(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "reload mango account")
	}
	log := u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPMango.String()})

	for _, market := range markets {
		if market == nil {
			continue
		}
		perpAccount, ok := state.PerpAccountFor(market.Index)
		if !ok || perpAccount.QuotePosition.IsZero() {
			continue
		}
		log.Infof("Settle %s, %s", market.Symbol(), perpAccount.QuotePosition)
		sig, err := u.mango.SettlePnl(ctx, acc.Address, market.Index)
		if err != nil {
			return errors.Wrapf(err, "settle %s", market.Symbol())
		}
		u.record(ctx, acc, domain.Action{
			Venue: domain.UTPMango, Kind: domain.ActionSettle, Market: market.Symbol(),
			Amount: perpAccount.QuotePosition, Signature: sig,
		})
		if err := u.settlePause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unwinder) withdrawFromMango(ctx context.Context, acc *AccountReport) error {
	log := u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPMango.String()})
	log.Info("Trying to withdraw from Mango")

	observation, err := u.mango.Observe(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "observe")
	}
	amount := observation.FreeCollateral.Sub(u.opts.MangoDust)
	if !amount.IsPositive() {
		return nil
	}

	log.Infof("Withdrawing %s from Mango", amount)
	sig, err := u.mango.Withdraw(ctx, acc.Address, amount)
	if err != nil {
		return errors.Wrap(err, "withdraw")
	}
	u.record(ctx, acc, domain.Action{Venue: domain.UTPMango, Kind: domain.ActionVenueWithdraw, Amount: amount, Signature: sig})
	return nil
}

// mangoClosingSide sells a long and buys back a short.
func mangoClosingSide(basePosition decimal.Decimal) domain.Side {
	if basePosition.IsPositive() {
		return domain.SideAsk
	}
	return domain.SideBid
}

// mangoClosingPrice crosses the oracle by the market's liquidation fee.
func mangoClosingPrice(market *domain.PerpMarket, side domain.Side) decimal.Decimal {
	if side == domain.SideAsk {
		return market.OraclePrice.Mul(decimal.NewFromInt(1).Sub(market.LiquidationFee))
	}
	return market.OraclePrice.Mul(decimal.NewFromInt(1).Add(market.LiquidationFee))
}

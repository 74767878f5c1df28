package unwind

import (
	"context"

	"github.com/betbot/utpunwind/internal/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrEmptyBook is returned when the side of the book needed to close is empty.
var ErrEmptyBook = errors.New("order book side is empty")

func (u *Unwinder) closeZo(ctx context.Context, acc *AccountReport) error {
	log := u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPZo.String()})
	log.Info("Closing Zo Positions")

	state, err := u.zo.LoadMarginState(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "load margin state")
	}

	log.Info("Cancelling Open Orders")
	for _, symbol := range state.Markets {
		oo := state.OpenOrdersFor(symbol)
		if oo.Empty() {
			continue
		}
		sig, err := u.zo.CancelPerpOrder(ctx, acc.Address, symbol)
		if err != nil {
			return errors.Wrapf(err, "cancel orders on %s", symbol)
		}
		u.record(ctx, acc, domain.Action{
			Venue: domain.UTPZo, Kind: domain.ActionCancelOrder, Market: symbol,
			Amount: oo.CoinOnAsks.Add(oo.CoinOnBids), Signature: sig,
		})
	}

	log.Info("Closing Positions")
	if err := u.closeZoPositions(ctx, acc, state); err != nil {
		u.swallow(ctx, acc, domain.UTPZo, err)
	}

	if err := u.settleZo(ctx, acc); err != nil {
		return err
	}
	if err := u.withdrawFromZo(ctx, acc); err != nil {
		return err
	}

	log.Info("Deactivating ZO")
	sig, err := u.zo.Deactivate(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "deactivate")
	}
	u.record(ctx, acc, domain.Action{Venue: domain.UTPZo, Kind: domain.ActionDeactivate, Signature: sig})
	return nil
}

func (u *Unwinder) closeZoPositions(ctx context.Context, acc *AccountReport, state *domain.ZoMarginState) error {
	log := u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPZo.String()})

	for _, position := range state.Positions {
		if position.Coins.IsZero() {
			continue
		}
		closeLong := !position.IsLong

		book, err := u.zo.LoadOrderBook(ctx, acc.Address, position.MarketKey)
		if err != nil {
			return errors.Wrapf(err, "load book %s", position.MarketKey)
		}
		price, err := zoClosingPrice(book, closeLong)
		if err != nil {
			return errors.Wrapf(err, "price %s", position.MarketKey)
		}
		size := position.Coins.Abs()
		log.Infof("Closing position on %s %s @ %s", size, position.MarketKey, price)

		if state.OpenOrdersFor(position.MarketKey) == nil {
			sig, err := u.zo.CreatePerpOpenOrders(ctx, acc.Address, position.MarketKey)
			if err != nil {
				return errors.Wrapf(err, "create open orders %s", position.MarketKey)
			}
			u.record(ctx, acc, domain.Action{
				Venue: domain.UTPZo, Kind: domain.ActionCreateOpenOrders, Market: position.MarketKey, Signature: sig,
			})
		}

		side := domain.SideAsk
		if closeLong {
			side = domain.SideBid
		}
		sig, err := u.zo.PlacePerpOrder(ctx, acc.Address, domain.ZoOrderRequest{
			Symbol:    position.MarketKey,
			OrderType: domain.OrderTypeReduceOnlyIoc,
			IsLong:    closeLong,
			Price:     price,
			Size:      size,
			ClientID:  uuid.NewString(),
		})
		if err != nil {
			return errors.Wrapf(err, "close %s", position.MarketKey)
		}
		u.record(ctx, acc, domain.Action{
			Venue: domain.UTPZo, Kind: domain.ActionClosePosition, Market: position.MarketKey,
			Side: side, Price: price, Amount: size, Signature: sig,
		})
	}
	return nil
}

// settleZo settles every market that has an open-orders account. State is
// reloaded first so accounts created while closing are included.
func (u *Unwinder) settleZo(ctx context.Context, acc *AccountReport) error {
	state, err := u.zo.LoadMarginState(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "reload margin state")
	}
	for _, symbol := range state.Markets {
		if state.OpenOrdersFor(symbol) == nil {
			continue
		}
		sig, err := u.zo.SettleFunds(ctx, acc.Address, symbol)
		if err != nil {
			return errors.Wrapf(err, "settle %s", symbol)
		}
		u.record(ctx, acc, domain.Action{Venue: domain.UTPZo, Kind: domain.ActionSettle, Market: symbol, Signature: sig})
		if err := u.settlePause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (u *Unwinder) withdrawFromZo(ctx context.Context, acc *AccountReport) error {
	observation, err := u.zo.Observe(ctx, acc.Address)
	if err != nil {
		return errors.Wrap(err, "observe")
	}
	amount := decimal.Max(observation.FreeCollateral.Sub(u.opts.ZoDust), decimal.Zero)
	if !amount.IsPositive() || amount.LessThan(u.opts.ZoMinWithdrawal) {
		return nil
	}

	u.log.WithFields(logrus.Fields{"account": acc.Address, "venue": domain.UTPZo.String()}).
		Infof("Withdrawing %s from ZO", amount)
	sig, err := u.zo.Withdraw(ctx, acc.Address, amount)
	if err != nil {
		return errors.Wrap(err, "withdraw")
	}
	u.record(ctx, acc, domain.Action{Venue: domain.UTPZo, Kind: domain.ActionVenueWithdraw, Amount: amount, Signature: sig})
	return nil
}

// zoClosingPrice takes the first ask when buying back a short and the last bid
// in book order when selling a long.
func zoClosingPrice(book *domain.OrderBook, closeLong bool) (decimal.Decimal, error) {
	if book == nil {
		return decimal.Zero, ErrEmptyBook
	}
	if closeLong {
		if len(book.Asks) == 0 {
			return decimal.Zero, ErrEmptyBook
		}
		return book.Asks[0].Price, nil
	}
	if len(book.Bids) == 0 {
		return decimal.Zero, ErrEmptyBook
	}
	return book.Bids[len(book.Bids)-1].Price, nil
}

package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/pkg/errors"
)

// ErrConfirmTimeout is returned when a signature does not reach the target
// commitment in time.
var ErrConfirmTimeout = errors.New("transaction confirmation timed out")

// TransactionError is an on-chain execution failure.
type TransactionError struct {
	Signature solana.Signature
	Err       any
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

// StatusReader is the polling side of confirmation.
type StatusReader interface {
	SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*rpc.SignatureStatusesResult, error)
}

// Confirmer waits for signatures, over signatureSubscribe when a websocket
// endpoint is configured and by polling otherwise.
type Confirmer struct {
	statuses     StatusReader
	wsURL        string
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	timeout      time.Duration
}

// NewConfirmer builds a Confirmer; wsURL may be empty.
func NewConfirmer(statuses StatusReader, wsURL string, commitment rpc.CommitmentType) *Confirmer {
	if commitmentRank(string(commitment)) == 0 {
		commitment = rpc.CommitmentConfirmed
	}
	return &Confirmer{
		statuses:     statuses,
		wsURL:        wsURL,
		commitment:   commitment,
		pollInterval: 2 * time.Second,
		timeout:      90 * time.Second,
	}
}

// Confirm blocks until sig reaches the configured commitment.
func (c *Confirmer) Confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.wsURL != "" {
		done, err := c.confirmWS(ctx, sig)
		if done {
			return c.timeoutErr(ctx, err)
		}
		rpcLog.WithError(err).Warnf("signature subscription failed, polling %s", sig)
	}
	return c.timeoutErr(ctx, c.poll(ctx, sig))
}

func (c *Confirmer) timeoutErr(ctx context.Context, err error) error {
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(ErrConfirmTimeout, err.Error())
	}
	return err
}

// check returns true once sig has landed at the target commitment.
func (c *Confirmer) check(ctx context.Context, sig solana.Signature) (bool, error) {
	statuses, err := c.statuses.SignatureStatuses(ctx, sig)
	if err != nil {
		return false, err
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return false, nil
	}
	st := statuses[0]
	if st.Err != nil {
		return true, &TransactionError{Signature: sig, Err: st.Err}
	}
	return reached(st.ConfirmationStatus, c.commitment), nil
}

func (c *Confirmer) poll(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		done, err := c.check(ctx, sig)
		if done {
			return err
		}
		if err != nil {
			rpcLog.WithError(err).Debugf("status poll failed for %s", sig)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// confirmWS reports done=false when the subscription itself failed so the
// caller can fall back to polling.
func (c *Confirmer) confirmWS(ctx context.Context, sig solana.Signature) (bool, error) {
	client, err := ws.Connect(ctx, c.wsURL)
	if err != nil {
		return false, errors.Wrap(err, "connect websocket")
	}
	defer client.Close()

	sub, err := client.SignatureSubscribe(sig, c.commitment)
	if err != nil {
		return false, errors.Wrap(err, "signatureSubscribe")
	}
	defer sub.Unsubscribe()

	// the transaction may have landed before the subscription existed
	if done, err := c.check(ctx, sig); done {
		return true, err
	}

	res, err := sub.Recv(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		return false, errors.Wrap(err, "read signature notification")
	}
	if res != nil && res.Value.Err != nil {
		return true, &TransactionError{Signature: sig, Err: res.Value.Err}
	}
	return true, nil
}

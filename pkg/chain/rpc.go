// Package chain lands transactions built by the margin-protocol bridge:
// it signs them with the wallet, sends or simulates them over Solana
// JSON-RPC, and waits for confirmation.
package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var rpcLog = logrus.WithField("component", "solana-rpc")

// ParseCommitment validates a commitment level name.
func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(s); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	}
	return "", errors.Errorf("unknown commitment %q", s)
}

func commitmentRank(c string) int {
	switch c {
	case string(rpc.CommitmentProcessed):
		return 1
	case string(rpc.CommitmentConfirmed):
		return 2
	case string(rpc.CommitmentFinalized):
		return 3
	}
	return 0
}

// reached reports whether a status level satisfies target.
func reached(status rpc.ConfirmationStatusType, target rpc.CommitmentType) bool {
	r := commitmentRank(string(status))
	return r > 0 && r >= commitmentRank(string(target))
}

// SimulationResult is the value of simulateTransaction.
type SimulationResult struct {
	Err           any
	Logs          []string
	UnitsConsumed uint64
}

func (s *SimulationResult) Failed() bool { return s.Err != nil }

// Client wraps the solana-go RPC client with a fixed commitment.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// Dial creates a client for an HTTP(S) RPC endpoint.
func Dial(endpoint string, commitment rpc.CommitmentType) *Client {
	if commitmentRank(string(commitment)) == 0 {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{rpc: rpc.New(endpoint), commitment: commitment}
}

func (c *Client) Commitment() rpc.CommitmentType { return c.commitment }

func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

// LatestBlockhash returns a blockhash usable for new transactions.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, errors.Wrap(err, "getLatestBlockhash")
	}
	if out == nil || out.Value == nil || out.Value.Blockhash == (solana.Hash{}) {
		return solana.Hash{}, errors.New("getLatestBlockhash: empty blockhash")
	}
	return out.Value.Blockhash, nil
}

// Balance returns the lamport balance of account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, errors.Wrapf(err, "getBalance %s", account)
	}
	return out.Value, nil
}

// SendTransaction submits a signed transaction and returns its signature.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "sendTransaction")
	}
	return sig, nil
}

// SimulateTransaction runs tx against the node without landing it.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	out, err := c.rpc.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  true,
		Commitment: c.commitment,
	})
	if err != nil {
		return nil, errors.Wrap(err, "simulateTransaction")
	}
	if out == nil || out.Value == nil {
		return nil, errors.New("simulateTransaction: empty result")
	}
	res := &SimulationResult{Err: out.Value.Err, Logs: out.Value.Logs}
	if out.Value.UnitsConsumed != nil {
		res.UnitsConsumed = *out.Value.UnitsConsumed
	}
	return res, nil
}

// SignatureStatuses returns one entry per signature; nil when unknown.
func (c *Client) SignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*rpc.SignatureStatusesResult, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sigs...)
	if err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses")
	}
	if len(out.Value) != len(sigs) {
		rpcLog.Warnf("getSignatureStatuses returned %d entries for %d signatures", len(out.Value), len(sigs))
	}
	return out.Value, nil
}

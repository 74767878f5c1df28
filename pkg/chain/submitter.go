package chain

import (
	"context"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/utpunwind/pkg/ratelimit"
)

const (
	// DryRunSignature is returned for transactions that simulated cleanly.
	DryRunSignature = "simulated"
	// DryRunFailedSignature is returned, with a nil error, for transactions
	// whose simulation failed.
	DryRunFailedSignature = "simulation-failed"
)

// Node is the RPC surface a Submitter needs.
type Node interface {
	StatusReader
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
}

// Waiter confirms a sent signature.
type Waiter interface {
	Confirm(ctx context.Context, sig solana.Signature) error
}

// Submitter signs messages with the wallet and lands them, one at a time.
type Submitter struct {
	node    Node
	key     solana.PrivateKey
	waiter  Waiter
	limiter ratelimit.RateLimiter
	dryRun  bool
	log     *logrus.Entry
}

type SubmitterOption func(*Submitter)

func WithLimiter(l ratelimit.RateLimiter) SubmitterOption {
	return func(s *Submitter) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithSimulation makes Submit simulate instead of send.
func WithSimulation(dry bool) SubmitterOption {
	return func(s *Submitter) { s.dryRun = dry }
}

func WithSubmitterLogger(entry *logrus.Entry) SubmitterOption {
	return func(s *Submitter) {
		if entry != nil {
			s.log = entry
		}
	}
}

func NewSubmitter(node Node, key solana.PrivateKey, waiter Waiter, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		node:    node,
		key:     key,
		waiter:  waiter,
		limiter: ratelimit.Unlimited{},
		log:     logrus.WithField("component", "submitter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FeePayer is the base58 address every message must be built for.
func (s *Submitter) FeePayer() string {
	return s.key.PublicKey().String()
}

func (s *Submitter) LatestBlockhash(ctx context.Context) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	bh, err := s.node.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	return bh.String(), nil
}

// Submit signs msg and either simulates it or sends and confirms it.
func (s *Submitter) Submit(ctx context.Context, msg []byte) (string, error) {
	tx, err := SignMessage(msg, s.key)
	if err != nil {
		return "", errors.Wrap(err, "sign transaction")
	}
	sig := tx.Signatures[0]
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	if s.dryRun {
		return s.simulate(ctx, tx, sig)
	}

	sent, err := s.node.SendTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	if sent != sig {
		s.log.Warnf("node returned signature %s, expected %s", sent, sig)
	}
	s.log.Debugf("sent %s", sig)
	if err := s.waiter.Confirm(ctx, sig); err != nil {
		return sig.String(), err
	}
	s.log.Infof("confirmed %s", sig)
	return sig.String(), nil
}

func (s *Submitter) simulate(ctx context.Context, tx *solana.Transaction, sig solana.Signature) (string, error) {
	res, err := s.node.SimulateTransaction(ctx, tx)
	if err != nil {
		return "", err
	}
	if res.Failed() {
		s.log.WithField("err", res.Err).Warnf("simulation of %s failed\n%s", sig, strings.Join(res.Logs, "\n"))
		return DryRunFailedSignature, nil
	}
	s.log.WithField("units", res.UnitsConsumed).Infof("simulated %s", sig)
	if len(res.Logs) > 0 {
		s.log.Debug(strings.Join(res.Logs, "\n"))
	}
	return DryRunSignature, nil
}

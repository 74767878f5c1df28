// unwind closes every venue position held by the wallet's margin accounts,
// deactivates the venue integrations and sweeps remaining equity to the wallet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/utpunwind/internal/journal"
	"github.com/betbot/utpunwind/internal/ui"
	"github.com/betbot/utpunwind/internal/unwind"
	"github.com/betbot/utpunwind/pkg/chain"
	"github.com/betbot/utpunwind/pkg/config"
	"github.com/betbot/utpunwind/pkg/logger"
	"github.com/betbot/utpunwind/pkg/ratelimit"
	sdkhttp "github.com/betbot/utpunwind/pkg/sdk/http"
	"github.com/betbot/utpunwind/pkg/sdk/marginfi"
	"github.com/betbot/utpunwind/pkg/secretstore"
	"github.com/betbot/utpunwind/pkg/wallet"
)

const lamportsPerSOL = 1_000_000_000

var log = logrus.WithField("component", "main")

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "config file (.yaml/.yml/.json)")
		dryRun      = flag.Bool("dry-run", false, "simulate every transaction instead of sending it")
		yes         = flag.Bool("yes", false, "skip the confirmation prompt")
		journalPath = flag.String("journal", "", "sqlite journal path (overrides config; \"off\" disables)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	if *dryRun {
		cfg.DryRun = true
	}
	switch *journalPath {
	case "":
	case "off":
		cfg.Journal = ""
	default:
		cfg.Journal = *journalPath
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := unwindAll(ctx, cfg, *yes); err != nil {
		log.WithError(err).Error("Unwind failed")
		return 1
	}
	return 0
}

func loadKeypair(cfg config.WalletConfig) (*wallet.Keypair, error) {
	src := wallet.Source{
		Key:        cfg.Key,
		Path:       cfg.Path,
		Mnemonic:   cfg.Mnemonic,
		Passphrase: cfg.Passphrase,
	}
	if src.Key == "" && src.Path == "" && src.Mnemonic == "" && cfg.SecretDB != "" {
		key, err := secretstore.ParseKey(cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		store, err := secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretDB, EncryptionKey: key, ReadOnly: true})
		if err != nil {
			return nil, err
		}
		defer store.Close()
		src.Secrets = store
	}
	return wallet.Load(src)
}

func unwindAll(ctx context.Context, cfg *config.Config, skipConfirm bool) error {
	kp, err := loadKeypair(cfg.Wallet)
	if err != nil {
		return errors.Wrap(err, "load wallet")
	}
	log.Infof("Wallet %s", kp.Address())

	commitment, err := chain.ParseCommitment(cfg.RPC.Commitment)
	if err != nil {
		return err
	}
	node := chain.Dial(cfg.RPC.Endpoint, commitment)
	defer node.Close()

	if lamports, err := node.Balance(ctx, kp.PublicKey()); err != nil {
		log.WithError(err).Warn("Could not read fee payer balance")
	} else {
		sol := decimal.NewFromInt(int64(lamports)).Shift(-9)
		log.Infof("Fee payer balance %s SOL", sol.StringFixed(4))
		if lamports < lamportsPerSOL/100 {
			log.Warn("Fee payer balance is below 0.01 SOL, transactions may fail")
		}
	}

	submitter := chain.NewSubmitter(node, kp.PrivateKey(),
		chain.NewConfirmer(node, cfg.RPC.WSEndpoint, commitment),
		chain.WithLimiter(ratelimit.New(cfg.RPC.RequestsPerSecond)),
		chain.WithSimulation(cfg.DryRun),
	)
	client := marginfi.NewClient(cfg.Bridge.URL, cfg.Bridge.Environment, submitter,
		sdkhttp.WithTimeout(cfg.Bridge.Timeout),
		sdkhttp.WithRetry(cfg.Bridge.RetryCount, time.Second, 10*time.Second),
	)

	runID := uuid.NewString()
	options := []unwind.Option{
		unwind.WithRunID(runID),
		unwind.WithDryRun(cfg.DryRun),
	}

	var jr *journal.Journal
	if cfg.Journal != "" {
		jr, err = journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer jr.Close()
		options = append(options, unwind.WithRecorder(jr))
	}

	u := unwind.New(client, client.Mango(), client.Zo(), cfg.UnwindOptions(), options...)

	plans, err := u.Plan(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ui.RenderPlan(kp.Address(), plans, cfg.DryRun))
	if len(plans) == 0 {
		log.Info("No margin accounts, nothing to do")
		return nil
	}

	if !skipConfirm {
		ok, err := ui.Confirm(os.Stdin, os.Stdout, fmt.Sprintf("Unwind %d accounts?", len(plans)))
		if err != nil {
			return errors.Wrap(err, "confirm")
		}
		if !ok {
			log.Info("Aborted, nothing was sent")
			return nil
		}
	}

	if jr != nil {
		if err := jr.StartRun(ctx, runID, kp.Address(), cfg.DryRun); err != nil {
			log.WithError(err).Warn("Journal start failed")
		}
	}

	report, runErr := u.Run(ctx)

	if jr != nil {
		// the run context may already be cancelled
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := jr.FinishRun(fctx, runID, journal.RunSummary{
			Accounts:    len(report.Accounts),
			Actions:     report.TotalActions(),
			SweptEquity: report.TotalSwept().String(),
			Err:         runErr,
		})
		cancel()
		if err != nil {
			log.WithError(err).Warn("Journal finish failed")
		}
	}

	fmt.Println(ui.RenderReport(report))
	return runErr
}

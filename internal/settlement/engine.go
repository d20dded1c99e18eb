package settlement

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-esim-orders/internal/metrics"
	"github.com/cenkalti/backoff/v5"
	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
	"time"
)

var log = logging.Logger("settlement")

// PriceOracle quotes the fiat price of one native coin.
type PriceOracle interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

type Transfer struct {
	SourceSecret string
	Destination  string
	Amount       uint64 // smallest units
	Anchor       string
}

type Finality struct {
	Found     bool
	Finalized bool
	ExecErr   string
}

// Ledger is the chain the collection wallets live on.
type Ledger interface {
	Balance(ctx context.Context, address string) (uint64, error)
	// LatestAnchor returns a fresh recent-block reference; anchors expire.
	LatestAnchor(ctx context.Context) (string, error)
	Broadcast(ctx context.Context, t Transfer) (txID string, err error)
	Finality(ctx context.Context, txID string) (Finality, error)
}

type Config struct {
	SettlementAddress string
	BroadcastAttempts int
	BroadcastBackoff  time.Duration
	ConfirmAttempts   int
	ConfirmBackoff    time.Duration
}

func DefaultConfig(settlementAddress string) Config {
	return Config{
		SettlementAddress: settlementAddress,
		BroadcastAttempts: 5,
		BroadcastBackoff:  2 * time.Second,
		ConfirmAttempts:   5,
		ConfirmBackoff:    2 * time.Second,
	}
}

type Engine struct {
	oracle  PriceOracle
	ledger  Ledger
	cfg     Config
	metrics *metrics.Metrics
}

func NewEngine(oracle PriceOracle, ledger Ledger, cfg Config, m *metrics.Metrics) *Engine {
	if cfg.BroadcastAttempts <= 0 {
		cfg.BroadcastAttempts = 1
	}
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = 1
	}
	return &Engine{oracle: oracle, ledger: ledger, cfg: cfg, metrics: m}
}

// Convert quotes fiat in native units at the current oracle rate.
func (e *Engine) Convert(ctx context.Context, fiat decimal.Decimal) (decimal.Decimal, error) {
	if !fiat.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: fiat %s", ErrInvalidAmount, fiat)
	}
	rate, err := e.oracle.Rate(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate %s", ErrPriceUnavailable, rate)
	}
	return fiat.Div(rate), nil
}

// HasSufficientBalance compares in smallest units: any balance at or above
// the ceiling of required is enough.
func (e *Engine) HasSufficientBalance(ctx context.Context, address string, required decimal.Decimal) (bool, error) {
	need, err := ToSmallestUnits(required)
	if err != nil {
		return false, err
	}
	bal, err := e.ledger.Balance(ctx, address)
	if err != nil {
		return false, fmt.Errorf("balance %s: %w", address, err)
	}
	log.Debugw("balance check", "address", address, "balance", bal, "required", need)
	return bal >= need, nil
}

// Sweep moves amount from the collection wallet to the settlement address.
// It returns only after the transfer is finalized; every other outcome wraps
// ErrSettlementFailed.
func (e *Engine) Sweep(ctx context.Context, sourceSecret string, amount decimal.Decimal) (string, error) {
	units, err := ToSmallestUnits(amount)
	if err != nil {
		return "", err
	}
	if units == 0 {
		return "", fmt.Errorf("%w: zero transfer", ErrInvalidAmount)
	}

	txID, err := e.broadcast(ctx, sourceSecret, units)
	if err != nil {
		return "", fmt.Errorf("%w: %w after %d attempts: %w", ErrSettlementFailed, ErrBroadcastFailed, e.cfg.BroadcastAttempts, err)
	}
	if err := e.confirm(ctx, txID); err != nil {
		return "", fmt.Errorf("%w: %w: tx %s after %d attempts: %w", ErrSettlementFailed, ErrConfirmationFailed, txID, e.cfg.ConfirmAttempts, err)
	}
	log.Infow("sweep finalized", "tx", txID, "units", units, "to", e.cfg.SettlementAddress)
	return txID, nil
}

func (e *Engine) broadcast(ctx context.Context, secret string, units uint64) (string, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (string, error) {
		attempt++
		anchor, err := e.ledger.LatestAnchor(ctx)
		if err != nil {
			e.count("broadcast", "anchor_error")
			return "", fmt.Errorf("anchor: %w", err)
		}
		txID, err := e.ledger.Broadcast(ctx, Transfer{
			SourceSecret: secret,
			Destination:  e.cfg.SettlementAddress,
			Amount:       units,
			Anchor:       anchor,
		})
		if err != nil {
			e.count("broadcast", "error")
			log.Warnw("broadcast failed", "attempt", attempt, "err", err)
			return "", err
		}
		e.count("broadcast", "ok")
		return txID, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(e.cfg.BroadcastBackoff)),
		backoff.WithMaxTries(uint(e.cfg.BroadcastAttempts)),
	)
}

var (
	errNotFound     = errors.New("transaction not found")
	errNotFinalized = errors.New("transaction not finalized")
)

func (e *Engine) confirm(ctx context.Context, txID string) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		f, err := e.ledger.Finality(ctx, txID)
		switch {
		case err != nil:
			e.count("confirm", "error")
			return struct{}{}, err
		case !f.Found:
			e.count("confirm", "not_found")
			return struct{}{}, errNotFound
		case f.ExecErr != "":
			// not classified as permanent; retried to budget
			e.count("confirm", "exec_error")
			log.Warnw("transaction execution error", "tx", txID, "attempt", attempt, "err", f.ExecErr)
			return struct{}{}, fmt.Errorf("execution error: %s", f.ExecErr)
		case !f.Finalized:
			e.count("confirm", "pending")
			return struct{}{}, errNotFinalized
		}
		e.count("confirm", "ok")
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(e.cfg.ConfirmBackoff)),
		backoff.WithMaxTries(uint(e.cfg.ConfirmAttempts)),
	)
	return err
}

func (e *Engine) count(phase, outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.SweepAttempts.WithLabelValues(phase, outcome).Inc()
}

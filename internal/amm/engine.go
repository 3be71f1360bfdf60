// Package amm implements a constant-product market maker on top of the ledger.
package amm

import (
	"time"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"ammLedger/internal/address"
	"ammLedger/internal/ledger"
	"ammLedger/internal/model"
	"ammLedger/internal/observability"
)

// LPDecimals is the decimals of every pool's LP mint.
const LPDecimals = 6

// Engine executes pool operations against a ledger. Each operation runs in
// one ledger transaction keyed by the pool address, so operations on the same
// pool are serialized and a failed operation changes nothing.
type Engine struct {
	ledger  *ledger.Ledger
	metrics *observability.Metrics
	logger  *zap.Logger
	feed    event.Feed
	now     func() time.Time
}

// NewEngine builds an engine. metrics may be nil.
func NewEngine(l *ledger.Ledger, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger:  l,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Ledger returns the underlying ledger.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// ProgramID returns the program id pool addresses are derived under.
func (e *Engine) ProgramID() address.PublicKey {
	return e.ledger.ProgramID()
}

// Subscribe delivers every record produced by Apply to ch. Apply blocks until
// all subscribers have received the record, so ch must be drained.
func (e *Engine) Subscribe(ch chan<- model.JournalRecord) event.Subscription {
	return e.feed.Subscribe(ch)
}

// PoolAddress derives the config address of a pool seed.
func (e *Engine) PoolAddress(seed uint64) (address.PublicKey, error) {
	config, _, err := address.FindConfigAddress(e.ledger.ProgramID(), seed)
	return config, err
}

func (e *Engine) observe(kind string, pool, user address.PublicKey, start time.Time, err error, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("kind", kind),
		zap.Stringer("pool", pool),
		zap.Stringer("user", user),
	}, fields...)

	errName := ""
	if err != nil {
		errName = "Internal"
		if ammErr, ok := AsError(err); ok {
			errName = ammErr.Name
		}
		e.logger.Info("operation rejected", append(fields, zap.String("code", errName), zap.Error(err))...)
	} else {
		e.logger.Debug("operation applied", fields...)
	}
	e.metrics.RecordOperation(kind, errName, time.Since(start).Seconds())
}

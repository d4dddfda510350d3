// Package storage declares the persistence contracts of the ledger, the registry and the snapshot store.
// Implementations live in internal/storage/memory and internal/postgres.
package storage

import (
	"context"
	"time"

	"github.com/STTM-NSU/portfolio-tracker/internal/model"
)

type InstrumentRepository interface {
	// CreateInstrument fails with model.DuplicateInstrumentError when (symbol, market) exists.
	CreateInstrument(ctx context.Context, i model.Instrument) error
	// InstrumentBySymbol fails with model.InstrumentNotFoundError.
	InstrumentBySymbol(ctx context.Context, symbol string, market model.Market) (model.Instrument, error)
	InstrumentByID(ctx context.Context, id string) (model.Instrument, error)
	Instruments(ctx context.Context) ([]model.Instrument, error)
	UpdateInstrument(ctx context.Context, id, name, currency string) error
}

// LedgerTx is the view of one instrument's ledger inside an atomic unit.
// Nothing written through it is visible to others until the unit commits.
type LedgerTx interface {
	Holding(ctx context.Context) (model.Holding, bool, error)
	LastExecutedAt(ctx context.Context) (time.Time, bool, error)
	Transactions(ctx context.Context) ([]model.Transaction, error)
	SaveHolding(ctx context.Context, h model.Holding) error
	DeleteHolding(ctx context.Context) error
	AppendTransaction(ctx context.Context, t model.Transaction) error
}

type LedgerRepository interface {
	// WithinInstrument runs fn as one atomic read-modify-write unit serialized against every other
	// unit for the same instrument. A non-nil error from fn discards all of its writes.
	WithinInstrument(ctx context.Context, instrumentID string, fn func(tx LedgerTx) error) error
	Holdings(ctx context.Context) ([]model.HoldingView, error)
	Holding(ctx context.Context, instrumentID string) (model.Holding, bool, error)
	// Transactions returns the instrument's history ordered by execution time, then insertion order.
	Transactions(ctx context.Context, instrumentID string) ([]model.Transaction, error)
	TransactionCount(ctx context.Context) (int, error)
}

type SnapshotRepository interface {
	// InsertSnapshot fails with model.SnapshotAlreadyExistsError when the date is taken.
	InsertSnapshot(ctx context.Context, s model.DailySnapshot) error
	Snapshots(ctx context.Context, r model.DateRange) ([]model.DailySnapshot, error)
}

type BalanceRepository interface {
	Balances(ctx context.Context) ([]model.Balance, error)
	SetBalance(ctx context.Context, b model.Balance) error
}

// Store is a complete back end: memory.Store and postgres.Store both implement it.
type Store interface {
	InstrumentRepository
	LedgerRepository
	SnapshotRepository
	BalanceRepository
}

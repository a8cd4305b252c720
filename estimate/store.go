package estimate

import (
	"context"

	"github.com/warp/cabinet-estimator/catalog"
)

// =============================================================================
// REPOSITORY - Persistence seen by the aggregate
// =============================================================================

// Repository loads estimates and runs multi-statement writes atomically.
type Repository interface {
	// GetJob returns the header and lines in stored order, or nil when the
	// estimate doesn't exist.
	GetJob(ctx context.Context, id int64) (*Job, error)

	// WithTx runs fn in one transaction. Any error rolls back every write
	// made through the Tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of a Repository, valid only inside WithTx.
type Tx interface {
	InsertJob(ctx context.Context, h JobHeader) (int64, error)

	// UpdateJob returns ErrJobNotFound when no row has h.ID.
	UpdateJob(ctx context.Context, h JobHeader) error

	// ReplaceLines deletes every line of the job then inserts lines in order.
	ReplaceLines(ctx context.Context, jobID int64, lines []LineItem) error

	// DeleteJob removes the job and its lines.
	DeleteJob(ctx context.Context, id int64) error
}

// PriceLookup resolves catalog items by id.
type PriceLookup interface {
	// LookupItem returns the item with its category name, or nil when it
	// doesn't exist.
	LookupItem(ctx context.Context, id int64) (*catalog.PriceItem, error)
}

// Package ledger contains the services that keep the ledger consistent:
// the category registry, the installment group lifecycle, and the
// capture flow that guards against duplicate inserts. Persistence is
// reached only through the outbound ports declared here.
package ledger

import (
	"context"
	"errors"
	"time"

	"moneta/internal/core"
)

// ErrNotFound is returned by stores when the requested entity does not
// exist.
var ErrNotFound = errors.New("not found")

// Ports for outbound persistence adapters.
type (
	// TransactionStore persists ledger transactions. Group membership is
	// resolved relationally through ListByGroup (a scan-by-field lookup),
	// never through in-memory pointers, so it survives independent
	// persistence and partial deletion of a group.
	TransactionStore interface {
		Insert(ctx context.Context, tx core.Transaction) error
		// Update overwrites the stored record with the same ID. The only
		// caller that changes an amount is the early-payoff flow.
		Update(ctx context.Context, tx core.Transaction) error
		Delete(ctx context.Context, id string) error
		Get(ctx context.Context, id string) (core.Transaction, error)
		ListAll(ctx context.Context) ([]core.Transaction, error)
		// ListByGroup returns the periods whose back-reference equals
		// groupID, excluding the representative itself.
		ListByGroup(ctx context.Context, groupID string) ([]core.Transaction, error)
		// ListBetween returns transactions of one kind inside a closed
		// time range; the duplicate detectors probe with this.
		ListBetween(ctx context.Context, kind core.Kind, from, to time.Time) ([]core.Transaction, error)
	}

	// CategoryStore persists the category taxonomy.
	CategoryStore interface {
		Find(ctx context.Context, kind core.Kind, main, sub string) (core.Category, error)
		Create(ctx context.Context, c core.Category) error
		IncrementUsage(ctx context.Context, kind core.Kind, main, sub string) error
		List(ctx context.Context, kind core.Kind) ([]core.Category, error)
		DeleteCategory(ctx context.Context, kind core.Kind, main, sub string) error
		Count(ctx context.Context) (int64, error)
	}

	// Store is the full persistence surface the ledger services need.
	Store interface {
		TransactionStore
		CategoryStore
	}
)

package sheets

import (
	"context"
	"tally/internal/core"
)

// Ports for outbound mirror adapters.
type (
	TransactionAppender interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	TransactionRemover interface {
		Remove(ctx context.Context, transactionID string) error
	}
)

// Package vault abstracts the hand-off of released funds to the outside
// world. The ledger keeps custody of deposited funds; executing a withdrawal
// ends with a Transfer call that moves the amount to the requesting party.
package vault

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway moves funds out of custody. Implementations may call back into the
// ledger; the registry commits all bookkeeping before invoking Transfer.
type Gateway interface {
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error
}

// LogGateway records transfers without moving anything. Suitable for local
// runs where no settlement rail is wired up.
type LogGateway struct {
	log *zap.Logger
}

var _ Gateway = (*LogGateway)(nil)

func NewLogGateway(log *zap.Logger) *LogGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogGateway{log: log}
}

func (g *LogGateway) Transfer(_ context.Context, to uuid.UUID, amount int64) error {
	g.log.Info("funds released",
		zap.String("to", to.String()),
		zap.Int64("amount", amount))
	return nil
}

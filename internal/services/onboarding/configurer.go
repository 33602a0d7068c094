package onboarding

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/joseph-ayodele/repair-orders/internal/cache"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

// OperatorCommands is the command menu shown to registered operators.
var OperatorCommands = []string{"/upload", "/mybatches", "/report", "/cancel"}

// StoreConfigurer publishes the per-operator command menu into the shared
// store, where the chat front end picks it up.
type StoreConfigurer struct {
	store cache.Store
}

func NewStoreConfigurer(store cache.Store) *StoreConfigurer {
	return &StoreConfigurer{store: store}
}

func (c *StoreConfigurer) ConfigureOperator(ctx context.Context, op entity.Operator) error {
	b, err := json.Marshal(OperatorCommands)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, "commands:"+strconv.FormatInt(op.TgID, 10), b, 0)
}

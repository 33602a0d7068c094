// Package access holds the approver allow-list.
package access

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
)

// AllowList answers whether an identity may run privileged operations.
// An empty list allows everyone.
type AllowList struct {
	ids    map[int64]struct{}
	logger *slog.Logger
}

func NewAllowList(ids []int64, logger *slog.Logger) *AllowList {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	if len(m) == 0 {
		logger.Warn("access.allow_list.empty", "mode", "open")
	}
	return &AllowList{ids: m, logger: logger}
}

func (a *AllowList) Open() bool { return len(a.ids) == 0 }

func (a *AllowList) Allowed(id int64) bool {
	if a.Open() {
		return true
	}
	_, ok := a.ids[id]
	return ok
}

// Check authorizes the actor carried by ctx.
func (a *AllowList) Check(ctx context.Context, op string) error {
	if a.Open() {
		return nil
	}
	id, ok := common.ActorIDFromContext(ctx)
	if ok && a.Allowed(id) {
		return nil
	}
	a.logger.Warn("access.denied", "op", op, "actor_id", id, "request_id", common.RequestIDFromContext(ctx))
	return common.UnauthorizedError(constants.MsgAccessDenied)
}

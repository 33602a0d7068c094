package operator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
)

func newService(t *testing.T, admins []int64) *Service {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(db.Close)
	return NewService(repository.NewOperatorRepository(db, nil), access.NewAllowList(admins, nil), nil)
}

func TestRegister_OneShotAndUpdate(t *testing.T) {
	svc := newService(t, []int64{1})
	ctx := common.WithActorID(context.Background(), 1)

	op, err := svc.Register(ctx, RegisterRequest{TgID: 123456789, Nickname: " Ivan "})
	require.NoError(t, err)
	assert.Equal(t, "Ivan", *op.Nickname)
	require.NotNil(t, op.RegisteredBy)
	assert.Equal(t, int64(1), *op.RegisteredBy)

	op2, err := svc.Register(ctx, RegisterRequest{TgID: 123456789, Handle: "@ivan", Nickname: "Иван"})
	require.NoError(t, err)
	assert.Equal(t, op.ID, op2.ID)
	assert.Equal(t, "Иван", *op2.Nickname)
	assert.Equal(t, "ivan", *op2.Handle)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRegister_Validation(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{TgID: 5, Nickname: "A"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = svc.Register(ctx, RegisterRequest{TgID: 0, Nickname: "Ivan"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.True(t, ValidNickname("Ян"))
	assert.False(t, ValidNickname(" Я "))
}

func TestRegister_Denied(t *testing.T) {
	svc := newService(t, []int64{1})
	_, err := svc.Register(common.WithActorID(context.Background(), 2), RegisterRequest{TgID: 5, Nickname: "Ivan"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestRemove(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{TgID: 5, Nickname: "Ivan"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, 5))
	err = svc.Remove(ctx, 5)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, constants.MsgOperatorNotFound, common.UserMessage(err, ""))

	op, err := svc.Lookup(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, op)
}

func TestSeenAndResolve(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	require.NoError(t, svc.RecordSeen(ctx, 42, "Petr"))
	require.NoError(t, svc.RecordSeen(ctx, 0, "ghost"))

	id, ok, err := svc.ResolveHandle(ctx, "@petr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok, err = svc.ResolveHandle(ctx, "@ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}

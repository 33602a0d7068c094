package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/repair-orders/internal/common"
)

func TestAllowList_EmptyAllowsAll(t *testing.T) {
	a := NewAllowList(nil, nil)
	assert.True(t, a.Open())
	assert.True(t, a.Allowed(123))
	assert.NoError(t, a.Check(context.Background(), "approve"))
}

func TestAllowList_Restricts(t *testing.T) {
	a := NewAllowList([]int64{1, 2}, nil)
	assert.True(t, a.Allowed(1))
	assert.False(t, a.Allowed(3))

	assert.NoError(t, a.Check(common.WithActorID(context.Background(), 2), "approve"))
	assert.ErrorIs(t, a.Check(common.WithActorID(context.Background(), 3), "approve"), common.ErrUnauthorized)
	assert.ErrorIs(t, a.Check(context.Background(), "approve"), common.ErrUnauthorized)
}

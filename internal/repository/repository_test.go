package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

type RepositorySuite struct {
	suite.Suite
	ctx       context.Context
	db        *DB
	stations  StationRepository
	operators OperatorRepository
	batches   BatchRepository
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	db, err := Open(s.ctx, Config{DSN: ":memory:"}, nil)
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(s.ctx))
	s.db = db
	s.stations = NewStationRepository(db, nil)
	s.operators = NewOperatorRepository(db, nil)
	s.batches = NewBatchRepository(db, nil)
}

func (s *RepositorySuite) TearDownTest() {
	s.db.Close()
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func strPtr(s string) *string { return &s }

func (s *RepositorySuite) TestStations_GetOrCreateIsIdempotent() {
	a, err := s.stations.GetOrCreate(s.ctx, "СТО Север", "Москва")
	s.Require().NoError(err)
	b, err := s.stations.GetOrCreate(s.ctx, " СТО Север ", "")
	s.Require().NoError(err)
	s.Equal(a.ID, b.ID)
	s.Equal("Москва", b.City)

	_, err = s.stations.GetOrCreate(s.ctx, "Юг", "")
	s.Require().NoError(err)
	list, err := s.stations.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 2)

	_, err = s.stations.GetByID(s.ctx, 999)
	s.ErrorIs(err, common.ErrNotFound)

	_, err = s.stations.GetOrCreate(s.ctx, "  ", "")
	s.ErrorIs(err, common.ErrInvalidInput)
}

func (s *RepositorySuite) TestOperators_UpsertListDelete() {
	admin := int64(1)
	op, err := s.operators.Upsert(s.ctx, entity.Operator{TgID: 42, Handle: strPtr("ivan"), Nickname: strPtr("Иван"), RegisteredBy: &admin})
	s.Require().NoError(err)
	s.Equal(int64(42), op.TgID)
	s.Equal("Иван", *op.Nickname)

	op2, err := s.operators.Upsert(s.ctx, entity.Operator{TgID: 42, Nickname: strPtr("Ваня"), RegisteredBy: &admin})
	s.Require().NoError(err)
	s.Equal(op.ID, op2.ID)
	s.Equal("Ваня", *op2.Nickname)
	s.Require().NotNil(op2.Handle)
	s.Equal("ivan", *op2.Handle)

	list, err := s.operators.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)

	ok, err := s.operators.Delete(s.ctx, 42)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.operators.Delete(s.ctx, 42)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.operators.GetByTgID(s.ctx, 42)
	s.ErrorIs(err, common.ErrNotFound)
}

func (s *RepositorySuite) TestSeenUsers_ResolveHandle() {
	s.Require().NoError(s.operators.RecordSeen(s.ctx, 77, "@Petr"))

	id, ok, err := s.operators.ResolveHandle(s.ctx, "@petr")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int64(77), id)

	s.Require().NoError(s.operators.RecordSeen(s.ctx, 77, "petr_new"))
	_, ok, err = s.operators.ResolveHandle(s.ctx, "petr")
	s.Require().NoError(err)
	s.False(ok)

	_, ok, err = s.operators.ResolveHandle(s.ctx, "")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RepositorySuite) TestBatches_CreateGetList() {
	st, err := s.stations.GetOrCreate(s.ctx, "СТО 1", "")
	s.Require().NoError(err)
	op, err := s.operators.Upsert(s.ctx, entity.Operator{TgID: 5})
	s.Require().NoError(err)

	b := &entity.OrderBatch{
		StationID:  &st.ID,
		OperatorID: &op.ID,
		WeekLabel:  "2024-W10",
		Status:     constants.BatchStatusNeedsReview,
		Plate:      "А123ВС77",
		SourceName: "order.pdf",
		Items: []entity.OrderItem{
			{WorkName: "Замена масла", Quantity: 1, Price: 1500, Total: 1500, ValidationError: strPtr("over")},
			{WorkName: "Фильтр", Quantity: 2, Price: 300, Total: 600},
		},
	}
	s.Require().NoError(s.batches.Create(s.ctx, b))
	s.NotZero(b.ID)
	s.NotZero(b.Items[1].ID)

	got, err := s.batches.Get(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal("СТО 1", got.StationName)
	s.Equal(constants.BatchStatusNeedsReview, got.Status)
	s.Require().Len(got.Items, 2)
	s.Equal("over", *got.Items[0].ValidationError)
	s.Nil(got.Items[1].ValidationError)
	s.InDelta(2100, got.Sum(), 0.001)

	s.Require().NoError(s.batches.Create(s.ctx, &entity.OrderBatch{WeekLabel: "2024-W11", Status: constants.BatchStatusUnreviewed}))

	review, err := s.batches.List(s.ctx, BatchFilter{Status: constants.BatchStatusNeedsReview})
	s.Require().NoError(err)
	s.Len(review, 1)

	byOp, err := s.batches.List(s.ctx, BatchFilter{OperatorID: &op.ID})
	s.Require().NoError(err)
	s.Len(byOp, 1)

	week, err := s.batches.List(s.ctx, BatchFilter{WeekLabel: "2024-W11"})
	s.Require().NoError(err)
	s.Require().Len(week, 1)
	s.Empty(week[0].Items)
	s.Nil(week[0].StationID)

	all, err := s.batches.List(s.ctx, BatchFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *RepositorySuite) TestBatches_ListLoadsItemsAcrossChunks() {
	n := itemChunk*2 + 3
	for i := 0; i < n; i++ {
		b := &entity.OrderBatch{
			WeekLabel:  "2024-W12",
			Status:     constants.BatchStatusApproved,
			SourceName: fmt.Sprintf("doc-%d.pdf", i),
			Items:      []entity.OrderItem{{WorkName: fmt.Sprintf("work-%d", i), Quantity: 1, Price: 100, Total: 100}},
		}
		s.Require().NoError(s.batches.Create(s.ctx, b))
	}

	got, err := s.batches.List(s.ctx, BatchFilter{Status: constants.BatchStatusApproved})
	s.Require().NoError(err)
	s.Require().Len(got, n)
	for _, b := range got {
		s.Require().Len(b.Items, 1, "batch %d", b.ID)
		s.Equal(b.ID, b.Items[0].BatchID)
		s.Equal("work-"+strings.TrimSuffix(strings.TrimPrefix(b.SourceName, "doc-"), ".pdf"), b.Items[0].WorkName)
	}
}

func (s *RepositorySuite) TestBatches_StatusAndReject() {
	b := &entity.OrderBatch{WeekLabel: "2024-W10", Status: constants.BatchStatusUnreviewed}
	s.Require().NoError(s.batches.Create(s.ctx, b))

	s.Require().NoError(s.batches.SetStatus(s.ctx, b.ID, constants.BatchStatusApproved))
	got, err := s.batches.Get(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(constants.BatchStatusApproved, got.Status)

	s.Require().NoError(s.batches.Reject(s.ctx, b.ID, strPtr("дубль")))
	got, err = s.batches.Get(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(constants.BatchStatusNeedsReview, got.Status)
	s.Equal("дубль", *got.RejectReason)

	s.ErrorIs(s.batches.SetStatus(s.ctx, 999, constants.BatchStatusApproved), common.ErrNotFound)
	_, err = s.batches.Get(s.ctx, 999)
	s.ErrorIs(err, common.ErrNotFound)
}

func TestRebind(t *testing.T) {
	d := &DB{dialect: DialectPostgres}
	assert.Equal(t, "SELECT $1, $2", d.rebind("SELECT ?, ?"))
	d.dialect = DialectSQLite
	assert.Equal(t, "SELECT ?, ?", d.rebind("SELECT ?, ?"))
}

func TestDialectFor(t *testing.T) {
	require.Equal(t, DialectPostgres, DialectFor("postgres://u@h/db"))
	require.Equal(t, DialectPostgres, DialectFor("postgresql://u@h/db"))
	require.Equal(t, DialectSQLite, DialectFor("file:orders.db"))
}

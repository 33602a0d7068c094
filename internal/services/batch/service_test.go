package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/events"
	"github.com/joseph-ayodele/repair-orders/internal/pricelist"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
)

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc      *Service
	stations repository.StationRepository
	pub      *recordingPublisher
}

func newFixture(t *testing.T, admins []int64) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(db.Close)

	stations := repository.NewStationRepository(db, nil)
	pub := &recordingPublisher{}
	clock := func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }
	svc := NewService(repository.NewBatchRepository(db, nil), stations, access.NewAllowList(admins, nil), nil,
		WithPublisher(pub), WithClock(clock))
	return fixture{svc: svc, stations: stations, pub: pub}
}

func strPtr(s string) *string { return &s }

func cleanOrder() entity.ParsedOrder {
	return entity.ParsedOrder{
		Plate:   "А123ВС77",
		Mileage: "120000",
		Items: []entity.ParsedItem{
			{WorkName: "Замена масла", Quantity: 1, Price: 1200, Total: 1200},
		},
	}
}

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "2024-W10", WeekLabel(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2020-W53", WeekLabel(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIngest_CleanBatchIsUnreviewed(t *testing.T) {
	f := newFixture(t, nil)
	b, err := f.svc.Ingest(context.Background(), IngestRequest{Order: cleanOrder(), SourceName: "a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusUnreviewed, b.Status)
	assert.Equal(t, "2024-W10", b.WeekLabel)
	require.Len(t, b.Items, 1)
	assert.Equal(t, "120000", *b.Items[0].Mileage)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.TypeBatchIngested, f.pub.events[0].Type)
}

func TestIngest_OverageForcesReview(t *testing.T) {
	f := newFixture(t, nil)
	warning := "«Замена масла»: цена 1500 превышает прайс 1200 на 300"
	b, err := f.svc.Ingest(context.Background(), IngestRequest{
		Order:      cleanOrder(),
		Validation: pricelist.Result{Warnings: []string{warning}, ItemErrors: []*string{&warning}},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusNeedsReview, b.Status)
	assert.Equal(t, warning, *b.Items[0].ValidationError)
}

func TestIngest_ReviewStubNeedsReview(t *testing.T) {
	f := newFixture(t, nil)
	b, err := f.svc.Ingest(context.Background(), IngestRequest{Order: entity.ReviewStub("broken", "")})
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusNeedsReview, b.Status)
	assert.Empty(t, b.Items)
	assert.Equal(t, "broken", *b.ReviewReason)
}

func TestApproveRejectLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	b, err := f.svc.Ingest(ctx, IngestRequest{
		Order:      cleanOrder(),
		Validation: pricelist.Result{ItemErrors: []*string{strPtr("цена выше прайса")}},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusNeedsReview, b.Status)

	got, err := f.svc.Approve(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusApproved, got.Status)

	got, err = f.svc.Approve(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusApproved, got.Status)
	assert.Len(t, f.pub.events, 2, "second approve publishes nothing")

	got, err = f.svc.Reject(ctx, b.ID, "не тот автомобиль")
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusNeedsReview, got.Status)

	stored, err := f.svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusNeedsReview, stored.Status)
	require.NotNil(t, stored.RejectReason)
	assert.Equal(t, "не тот автомобиль", *stored.RejectReason)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Замена масла", stored.Items[0].WorkName)
}

func TestApprove_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Approve(context.Background(), 404)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, constants.MsgBatchNotFound, common.UserMessage(err, ""))

	_, err = f.svc.Reject(context.Background(), 404, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t, []int64{10})
	b, err := f.svc.Ingest(context.Background(), IngestRequest{Order: cleanOrder()})
	require.NoError(t, err)

	stranger := common.WithActorID(context.Background(), 99)
	_, err = f.svc.Approve(stranger, b.ID)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = f.svc.List(stranger)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	got, err := f.svc.Get(common.WithActorID(context.Background(), 10), b.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BatchStatusUnreviewed, got.Status, "denied approve must not mutate")
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, nil)
	f.pub.err = errors.New("broker down")
	b, err := f.svc.Ingest(context.Background(), IngestRequest{Order: cleanOrder()})
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), b.ID)
	require.NoError(t, err)
}

func TestExportApproved_OnlyApproved(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	st, err := f.stations.GetOrCreate(ctx, "СТО Север", "")
	require.NoError(t, err)

	approved, err := f.svc.Ingest(ctx, IngestRequest{Order: cleanOrder(), StationID: &st.ID})
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, IngestRequest{Order: cleanOrder(), StationID: &st.ID})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, approved.ID)
	require.NoError(t, err)

	rows, err := f.svc.ExportApproved(ctx, ExportFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.ExportRow{
		Station:   "СТО Север",
		WeekLabel: "2024-W10",
		PlateVIN:  "А123ВС77",
		Mileage:   "120000",
		WorkName:  "Замена масла",
		Quantity:  1,
		Price:     1200,
		Total:     1200,
	}, rows[0])
}

func TestFlatten_PlateAndVIN(t *testing.T) {
	rows := Flatten([]entity.OrderBatch{{
		Plate: "A1", VIN: "XTA000", Mileage: "5",
		Items: []entity.OrderItem{{WorkName: "x", Mileage: strPtr("7")}},
	}})
	require.Len(t, rows, 1)
	assert.Equal(t, "A1 / XTA000", rows[0].PlateVIN)
	assert.Equal(t, "7", rows[0].Mileage)
}

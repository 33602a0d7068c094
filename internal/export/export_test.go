package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/repair-orders/constants"
	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
	"github.com/joseph-ayodele/repair-orders/internal/repository"
	"github.com/joseph-ayodele/repair-orders/internal/services/batch"
)

func sampleBatch(id int64, operatorID *int64) entity.OrderBatch {
	return entity.OrderBatch{
		ID:          id,
		StationName: "СТО Север",
		OperatorID:  operatorID,
		WeekLabel:   "2024-W10",
		Status:      constants.BatchStatusApproved,
		Plate:       "А123ВС77",
		Mileage:     "120000",
		Items: []entity.OrderItem{
			{WorkName: "Замена масла", Quantity: 1, Price: 1200, Total: 1200},
			{WorkName: "Фильтр", Quantity: 2, Price: 350.5, Total: 701},
		},
	}
}

type fakeBatches struct {
	batches []entity.OrderBatch
	filters []batch.ExportFilter
}

func (f *fakeBatches) ApprovedBatches(_ context.Context, flt batch.ExportFilter) ([]entity.OrderBatch, error) {
	f.filters = append(f.filters, flt)
	var out []entity.OrderBatch
	for _, b := range f.batches {
		if flt.OperatorID != nil && (b.OperatorID == nil || *b.OperatorID != *flt.OperatorID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func openXLSX(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWorkbook_ColumnsAndRows(t *testing.T) {
	b := sampleBatch(1, nil)
	data, err := Workbook(batch.Flatten([]entity.OrderBatch{b}), []entity.OrderBatch{b})
	require.NoError(t, err)

	f := openXLSX(t, data)
	rows, err := f.GetRows(ReportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"СТО", "Неделя", "Госномер/VIN", "Пробег", "Наименование работ", "Кол-во", "Цена", "Сумма"}, rows[0])
	assert.Equal(t, "СТО Север", rows[1][0])
	assert.Equal(t, "Замена масла", rows[1][4])
	assert.Equal(t, "1200", rows[1][7])

	journal, err := f.GetRows(JournalSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(journal), 5)
	assert.Equal(t, "Пакет #1", journal[0][0])
	assert.Equal(t, "Наименование работ", journal[1][0])
	assert.Equal(t, "Итого", journal[4][0])
	assert.Equal(t, "1901", journal[4][3])
}

func TestJournalRows_Shape(t *testing.T) {
	rows := JournalRows(sampleBatch(7, nil))
	require.Len(t, rows, 6)
	assert.Equal(t, "Пакет #7", rows[0][0])
	assert.Equal(t, []any{"Наименование работ", "Кол-во", "Цена", "Сумма"}, rows[1])
	assert.Equal(t, []any{"Итого", "", "", 1901.0}, rows[4])
	assert.Empty(t, rows[5])
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	wed := time.Date(2024, 3, 6, 12, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, loc), NextRun(wed, time.Monday, 9))

	monBefore := time.Date(2024, 3, 11, 8, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, loc), NextRun(monBefore, time.Monday, 9))

	monAt := time.Date(2024, 3, 11, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, loc), NextRun(monAt, time.Monday, 9))

	assert.Equal(t, "2024-W10", PreviousWeek(monAt))
}

func newOperators(t *testing.T) repository.OperatorRepository {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(db.Close)
	return repository.NewOperatorRepository(db, nil)
}

func TestService_OperatorReport(t *testing.T) {
	ops := newOperators(t)
	op, err := ops.Upsert(context.Background(), entity.Operator{TgID: 55})
	require.NoError(t, err)

	src := &fakeBatches{batches: []entity.OrderBatch{sampleBatch(1, &op.ID), sampleBatch(2, nil)}}
	svc := NewService(src, ops, access.NewAllowList(nil, nil), nil)

	data, err := svc.OperatorReportXLSX(context.Background(), 55, "")
	require.NoError(t, err)
	rows, err := openXLSX(t, data).GetRows(ReportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = svc.OperatorReportXLSX(context.Background(), 56, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_ExportDenied(t *testing.T) {
	svc := NewService(&fakeBatches{}, newOperators(t), access.NewAllowList([]int64{1}, nil), nil)
	_, err := svc.ExportApprovedXLSX(common.WithActorID(context.Background(), 2))
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestScheduler_RunOnceWritesReports(t *testing.T) {
	ops := newOperators(t)
	op, err := ops.Upsert(context.Background(), entity.Operator{TgID: 55})
	require.NoError(t, err)
	_, err = ops.Upsert(context.Background(), entity.Operator{TgID: 56})
	require.NoError(t, err)

	src := &fakeBatches{batches: []entity.OrderBatch{sampleBatch(1, &op.ID)}}
	dir := t.TempDir()
	s := NewScheduler(NewService(src, ops, nil, nil), DirDeliverer{Dir: dir}, time.Monday, 9, nil)

	require.NoError(t, s.RunOnce(context.Background(), "2024-W10"))

	_, err = os.Stat(filepath.Join(dir, "report_2024-W10_all.xlsx"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "report_2024-W10_55.xlsx"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "report_2024-W10_56.xlsx"))
	assert.True(t, os.IsNotExist(err), "operators without approved work get no report")

	for _, f := range src.filters {
		assert.Equal(t, "2024-W10", f.WeekLabel)
	}
}

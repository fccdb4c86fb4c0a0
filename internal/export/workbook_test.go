package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rongwang/fabricstock/internal/ledger"
	"github.com/rongwang/fabricstock/internal/models"
	"github.com/rongwang/fabricstock/internal/service"
)

func TestWriteWorkbook(t *testing.T) {
	l := ledger.FromDetails([]ledger.FlatDetail{
		{ColorID: 1, Dia: 20, Rolls: 2, Weight: decimal.RequireFromString("10.5")},
		{ColorID: 1, Dia: 22, Rolls: 1, Weight: decimal.RequireFromString("4.25")},
		{ColorID: 9, Dia: 20, Rolls: 3, Weight: decimal.RequireFromString("12")},
	})
	view := &service.DraftView{
		ID:   "draft-1",
		Kind: models.KindReceipt,
		Grid: l.Grid(),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, view, map[int64]string{1: "Black"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"Color", "20 Rolls", "20 Weight", "22 Rolls", "22 Weight", "Total Rolls", "Total Weight"}, rows[0])
	assert.Equal(t, []string{"Black", "2", "10.50", "1", "4.25", "3", "14.75"}, rows[1])
	assert.Equal(t, []string{"#9", "3", "12.00", NotApplicable, NotApplicable, "3", "12.00"}, rows[2])
	assert.Equal(t, []string{"Total", "5", "22.50", "1", "4.25", "6", "26.75"}, rows[3])
}

func TestWriteWorkbookEmptyDraft(t *testing.T) {
	view := &service.DraftView{ID: "draft-2", Kind: models.KindDelivery, Grid: ledger.New().Grid()}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, view, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Total", "0", "0.00"}, rows[1])
}

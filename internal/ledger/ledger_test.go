package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func w(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := w(s)
	return &d
}

func sampleLedger() *Ledger {
	l := New()
	l.AddItem(LineItem{ColorID: 5, Details: []Detail{
		{Dia: 20, Rolls: 1, Weight: w("0.50")},
		{Dia: 22, Rolls: 4, Weight: w("2.00")},
	}})
	l.AddItem(LineItem{ColorID: 7, Details: []Detail{
		{Dia: 20, Rolls: 2, Weight: w("1.25")},
		{Dia: 22, Rolls: 6, Weight: w("3.10")},
	}})
	return l
}

func TestRemoveItemNoMatchIsNoop(t *testing.T) {
	l := sampleLedger()
	before := l.Items()

	assert.Equal(t, 0, l.RemoveItem(99, 20))
	assert.Equal(t, 0, l.RemoveItem(5, 30))
	assert.False(t, l.RemoveAt(-1))
	assert.False(t, l.RemoveAt(2))

	assert.Equal(t, before, l.Items())
}

func TestRemoveItemByColorAndDia(t *testing.T) {
	l := sampleLedger()

	assert.Equal(t, 1, l.RemoveItem(5, 22))
	require.Equal(t, 1, l.Len())
	item, ok := l.Item(0)
	require.True(t, ok)
	assert.Equal(t, 7, item.ColorID)
}

func TestRemoveAt(t *testing.T) {
	l := sampleLedger()

	assert.True(t, l.RemoveAt(0))
	require.Equal(t, 1, l.Len())
	item, _ := l.Item(0)
	assert.Equal(t, 7, item.ColorID)
}

func TestUpdateDetailTouchesOnlyTargetField(t *testing.T) {
	l := sampleLedger()
	before := l.Items()

	n := l.UpdateDetail(5, 22, DetailUpdate{Rolls: intPtr(3)})
	assert.Equal(t, 1, n)

	after := l.Items()
	expected := before
	expected[0].Details[1].Rolls = 3
	assert.Equal(t, expected, after)
}

func TestUpdateDetailWeightOnly(t *testing.T) {
	l := sampleLedger()

	l.UpdateDetail(7, 20, DetailUpdate{Weight: decPtr("9.99")})
	item, _ := l.Item(1)
	assert.Equal(t, 2, item.Details[0].Rolls)
	assert.True(t, item.Details[0].Weight.Equal(w("9.99")))
}

func TestUpdateDetailNoMatchOrEmptyIsNoop(t *testing.T) {
	l := sampleLedger()
	before := l.Items()

	assert.Equal(t, 0, l.UpdateDetail(42, 20, DetailUpdate{Rolls: intPtr(1)}))
	assert.Equal(t, 0, l.UpdateDetail(5, 99, DetailUpdate{Rolls: intPtr(1)}))
	assert.Equal(t, 0, l.UpdateDetail(5, 20, DetailUpdate{}))
	assert.Equal(t, before, l.Items())
}

func TestSetColorRejectsDuplicate(t *testing.T) {
	l := sampleLedger()
	_, err := l.RegisterDiameters("20,22")
	require.NoError(t, err)

	err = l.SetColor(2, 5)
	var dup *DuplicateColorError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 5, dup.ColorID)
	assert.Equal(t, 0, dup.Index)

	item, _ := l.Item(2)
	assert.Equal(t, Placeholder, item.ColorID)

	require.NoError(t, l.SetColor(2, 9))
	require.NoError(t, l.SetColor(2, 9), "reassigning the same row's color is allowed")
	require.NoError(t, l.SetColor(0, Placeholder))
	assert.ErrorIs(t, l.SetColor(5, 1), ErrItemNotFound)
}

func TestItemsReturnsCopy(t *testing.T) {
	l := sampleLedger()
	items := l.Items()
	items[0].Details[0].Rolls = 100

	item, _ := l.Item(0)
	assert.Equal(t, 1, item.Details[0].Rolls)
}

func TestDiametersFirstSeenOrder(t *testing.T) {
	l := New()
	l.AddItem(LineItem{ColorID: 1, Details: []Detail{{Dia: 24}, {Dia: 20}}})
	l.AddItem(LineItem{ColorID: 2, Details: []Detail{{Dia: 20}, {Dia: 30}}})

	assert.Equal(t, []int{24, 20, 30}, l.Diameters())
}

func TestUsedColors(t *testing.T) {
	l := sampleLedger()
	_, err := l.RegisterDiameters("20")
	require.NoError(t, err)

	assert.Equal(t, map[int]struct{}{5: {}, 7: {}}, l.UsedColors(-1))
	assert.Equal(t, map[int]struct{}{7: {}}, l.UsedColors(0))
}

func TestReset(t *testing.T) {
	l := sampleLedger()
	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Diameters())
}

package storage

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowPage_InsertAndGetRow(t *testing.T) {
	page := NewPage(0)
	rp := NewRowPage(page, Movies)

	slot, ok := rp.InsertRow([]string{"tt0001", "A Movie"})
	require.True(t, ok)
	assert.Equal(t, SlotID(0), slot)

	row, ok := rp.GetRow(slot)
	require.True(t, ok)
	assert.Equal(t, "tt0001", row.Values[0])
	assert.Equal(t, "A Movie", row.Values[1])
	assert.Equal(t, RID{PageID: 0, SlotID: 0}, row.RID)
}

func TestRowPage_InsertFillsPageThenSignalsFull(t *testing.T) {
	page := NewPage(0)
	rp := NewRowPage(page, Movies)
	codec := CodecFor(Movies)

	faker := gofakeit.New(7)
	for i := 0; i < codec.MaxRowsPerPage(); i++ {
		_, ok := rp.InsertRow([]string{faker.LetterN(9), faker.Sentence(3)})
		require.True(t, ok, "row %d should fit", i)
	}
	assert.True(t, rp.IsFull())

	_, ok := rp.InsertRow([]string{"tt9999", "One Too Many"})
	assert.False(t, ok, "insert past capacity must return the FULL sentinel")
}

func TestRowPage_GetRowOutOfRangeReturnsFalse(t *testing.T) {
	page := NewPage(0)
	rp := NewRowPage(page, People)
	_, ok := rp.GetRow(0)
	assert.False(t, ok)
}

func TestRowPage_LoadFromBytesRoundTrips(t *testing.T) {
	page := NewPage(3)
	rp := NewRowPage(page, People)
	_, ok := rp.InsertRow([]string{"nm0001", "Alice Actor"})
	require.True(t, ok)

	raw := append([]byte(nil), rp.RawBytes()...)

	fresh := NewPage(3)
	freshRP := NewRowPage(fresh, People)
	require.NoError(t, freshRP.LoadFromBytes(raw))

	row, ok := freshRP.GetRow(0)
	require.True(t, ok)
	assert.Equal(t, "nm0001", row.Values[0])
	assert.Equal(t, "Alice Actor", row.Values[1])
}

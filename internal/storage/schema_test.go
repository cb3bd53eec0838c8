package storage

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowCodec_EncodeDecodeRoundTrips(t *testing.T) {
	faker := gofakeit.New(42)
	codec := CodecFor(Movies)

	for i := 0; i < 20; i++ {
		movieID := faker.LetterN(9)
		title := faker.Sentence(3)
		encoded, err := codec.Encode([]string{movieID, title})
		require.NoError(t, err)
		require.Len(t, encoded, codec.RowSize())

		decoded, err := codec.Decode(encoded)
		require.NoError(t, err)
		require.Len(t, decoded, 2)
		assert.Equal(t, movieID, decoded[0])
		if len(title) > 30 {
			title = title[:30]
		}
		assert.Equal(t, strings.TrimRight(title, " "), decoded[1])
	}
}

func TestRowCodec_EncodeTruncatesOverWidthValue(t *testing.T) {
	codec := CodecFor(WorkedOn)
	long := strings.Repeat("x", 40)
	encoded, err := codec.Encode([]string{"tt0001", "nm0001", long})
	require.NoError(t, err)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Len(t, decoded[2], 20)
}

func TestRowCodec_EncodeRejectsWrongArity(t *testing.T) {
	codec := CodecFor(People)
	_, err := codec.Encode([]string{"nm0001"})
	assert.Error(t, err)
}

func TestRowCodec_DecodeRejectsShortBuffer(t *testing.T) {
	codec := CodecFor(Movies)
	_, err := codec.Decode(make([]byte, codec.RowSize()-1))
	assert.Error(t, err)
}

func TestRowCodec_QualifiedColumnNames(t *testing.T) {
	codec := CodecFor(Movies)
	assert.Equal(t, []string{"Movies.movieId", "Movies.title"}, codec.QualifiedColumnNames())
	assert.Equal(t, []string{"movieId", "title"}, codec.ColumnNames())
}

func TestRowCodec_MaxRowsPerPageFitsWithinPage(t *testing.T) {
	for _, kind := range []TableKind{Movies, WorkedOn, People} {
		codec := CodecFor(kind)
		max := codec.MaxRowsPerPage()
		require.Greater(t, max, 0)
		assert.LessOrEqual(t, HeaderSize+max*codec.RowSize(), PageSize)
	}
}

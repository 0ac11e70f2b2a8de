package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 2, 15, 10, 30, 0, 123, time.UTC)
	id := "an_5f0c"

	cursor, err := Decode(Encode(ts, id))
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, ts.Equal(cursor.AnalyzedAt))
	assert.Equal(t, id, cursor.ID)
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	for _, in := range []string{
		"not-base64!!!",
		"bm9waXBl",     // "nopipe"
		"YWJjfGFuXzE",  // "abc|an_1"
		"MTIzNHw",      // "1234|"
	} {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrInvalidCursor, in)
	}
}

func TestCursor_After(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Cursor{AnalyzedAt: at, ID: "an_m"}

	assert.True(t, c.After(at.Add(-time.Second), "an_z"), "older sorts after")
	assert.False(t, c.After(at.Add(time.Second), "an_a"), "newer sorts before")
	assert.True(t, c.After(at, "an_a"), "same instant, lower id")
	assert.False(t, c.After(at, "an_m"), "the cursor item itself is excluded")

	var none *Cursor
	assert.True(t, none.After(at, "anything"))
}

type item struct {
	at time.Time
	id string
}

func TestPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []item{{base.Add(3 * time.Minute), "c"}, {base.Add(2 * time.Minute), "b"}, {base.Add(time.Minute), "a"}}
	key := func(i item) (time.Time, string) { return i.at, i.id }

	page, next := Page(items, 2, key)
	assert.Len(t, page, 2)
	require.NotEmpty(t, next)
	c, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, "b", c.ID)

	page, next = Page(items, 3, key)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

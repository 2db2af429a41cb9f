package marketdata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBarStore_RoundTrip(t *testing.T) {
	store, err := OpenBarStore(filepath.Join(t.TempDir(), "bars.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err = store.GetBar(ctx, "QQQ", date)
	assert.ErrorIs(t, err, ErrBarNotFound)

	bar := Bar{Symbol: "QQQ", Date: date, Open: 438, High: 442, Low: 437, Close: 440.5, Volume: 1000}
	require.NoError(t, store.PutBar(ctx, bar))

	got, err := store.GetBar(ctx, "QQQ", date)
	require.NoError(t, err)
	assert.Equal(t, 440.5, got.Close)
	assert.Equal(t, int64(1000), got.Volume)

	// Upsert replaces.
	bar.Close = 441.0
	require.NoError(t, store.PutBar(ctx, bar))
	got, err = store.GetBar(ctx, "QQQ", date)
	require.NoError(t, err)
	assert.Equal(t, 441.0, got.Close)
}

func TestMapBarStore(t *testing.T) {
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	store := NewMapBarStore(Bar{Symbol: "QQQ", Date: date, Close: 440})

	got, err := store.GetBar(context.Background(), "QQQ", date)
	require.NoError(t, err)
	assert.Equal(t, 440.0, got.Close)

	_, err = store.GetBar(context.Background(), "QQQ", date.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, ErrBarNotFound)
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) PredictionStore {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })

	store, err := NewPredictionStore(ctx, db, nil)
	require.NoError(t, err)
	return store
}

func TestPredictionStoreInsertAndList(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	rec := PredictionRecord{
		ID:           uuid.New(),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Amount:       120.50,
		Geo:          "US",
		BIN:          411111,
		MerchantAge:  30,
		Hour:         14,
		Probability:  0.0321,
		Fraud:        false,
		MerchantName: "Joe's Cafe",
		TotalAmount:  12.50,
	}
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, rec.Geo, got[0].Geo)
	assert.Equal(t, rec.Probability, got[0].Probability)
	assert.Equal(t, rec.Fraud, got[0].Fraud)
	assert.Equal(t, rec.MerchantName, got[0].MerchantName)
}

func TestPredictionStoreListOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, PredictionRecord{
			ID:           uuid.New(),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			Amount:       float64(i),
			Geo:          "IN",
			MerchantName: "Store",
		}))
	}

	got, err := store.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// newest first
	assert.Equal(t, float64(4), got[0].Amount)
	assert.Equal(t, float64(2), got[2].Amount)
}

func TestPredictionStoreEmptyList(t *testing.T) {
	store := openTestStore(t)
	got, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

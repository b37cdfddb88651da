package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rastreador-precos/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "products.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleProduct(id string) models.Product {
	return models.Product{
		ID:            id,
		UserID:        "42",
		URL:           "https://www.amazon.in/dp/" + id,
		Source:        "amazon",
		Currency:      "₹",
		Name:          "Fone " + id,
		CurrentPrice:  models.PricePair{Display: "₹1,299.00", Amount: 1299},
		OriginalPrice: models.PricePair{Display: "₹1,999.00", Amount: 1999},
		Discount:      35,
		Rating:        4.2,
		ReviewsCount:  812,
		Images:        []string{"https://img.example/1.jpg"},
		Metadata:      map[string]string{"brand": "boAt"},
	}
}

func TestInsertAndGetProduct(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.InsertProduct(ctx, sampleProduct("p1")))

	got, err := db.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Fone p1", got.Name)
	assert.Equal(t, models.PricePair{Display: "₹1,299.00", Amount: 1299}, got.CurrentPrice)
	assert.Equal(t, int64(1999), got.OriginalPrice.Amount)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, got.Images)
	assert.Equal(t, "boAt", got.Metadata["brand"])
	assert.False(t, got.CreatedAt.IsZero())

	_, err = db.GetProduct(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetProductsAndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertProduct(ctx, sampleProduct("a")))
	require.NoError(t, db.InsertProduct(ctx, sampleProduct("b")))

	got, err := db.GetProducts(ctx, []string{"a", "b", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a")
	assert.NotContains(t, got, "ghost")

	count, err := db.CountProduct(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = db.CountProduct(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetProductsManyIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < maxQueryParams+20; i++ {
		id := fmt.Sprintf("p%04d", i)
		ids = append(ids, id)
		if i%100 == 0 {
			require.NoError(t, db.InsertProduct(ctx, sampleProduct(id)))
		}
	}

	got, err := db.GetProducts(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestUpdateProduct(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertProduct(ctx, sampleProduct("p1")))

	checked := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	err := db.UpdateProduct(ctx, "p1", models.ProductUpdate{
		Name:          "Fone novo",
		Currency:      "₹",
		CurrentPrice:  models.PricePair{Display: "999", Amount: 999},
		OriginalPrice: models.PricePair{Display: "N/A"},
		Images:        []string{"https://img.example/2.jpg"},
		CheckedAt:     checked,
	})
	require.NoError(t, err)

	got, err := db.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Fone novo", got.Name)
	assert.Equal(t, int64(999), got.CurrentPrice.Amount)
	assert.Equal(t, "N/A", got.OriginalPrice.Display)
	assert.Equal(t, []string{"https://img.example/2.jpg"}, got.Images)
	assert.True(t, got.LastChecked.Equal(checked))
	assert.Equal(t, "boAt", got.Metadata["brand"])

	err = db.UpdateProduct(ctx, "ghost", models.ProductUpdate{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrackings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AppendTrackedID(ctx, "u1", "a"))
	require.NoError(t, db.AppendTrackedID(ctx, "u1", "b"))
	require.NoError(t, db.AppendTrackedID(ctx, "u1", "a"))
	require.NoError(t, db.AppendTrackedID(ctx, "u2", "ghost"))
	created, err := db.UpsertUser(ctx, "u3")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = db.UpsertUser(ctx, "u3")
	require.NoError(t, err)
	assert.False(t, created)
	created, err = db.UpsertUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, created, "usuário criado pelo monitoramento já existe")

	ids, err := db.TrackedIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	subs, err := db.ListSubscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Subscriber{
		{ID: "u1", TrackedIDs: []string{"a", "b"}},
		{ID: "u2", TrackedIDs: []string{"ghost"}},
		{ID: "u3"},
	}, subs)

	require.NoError(t, db.RemoveTrackedIDs(ctx, "u1", []string{"a", "missing"}))
	ids, err = db.TrackedIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	ctx := context.Background()

	db, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.InsertProduct(ctx, sampleProduct("p1")))
	require.NoError(t, db.AppendTrackedID(ctx, "u1", "p1"))
	require.NoError(t, db.Close())

	db, err = New(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	count, err := db.CountProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

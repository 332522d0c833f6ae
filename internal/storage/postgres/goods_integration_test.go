//go:build integration

package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/goods-catalog/internal/domain/product"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "goods",
				"POSTGRES_PASSWORD": "goods",
				"POSTGRES_DB":       "goods",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://goods:goods@%s:%s/goods?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedGoods(t *testing.T, repo *GoodsRepository, n int) []product.Product {
	t.Helper()

	goods := make([]product.Product, n)
	for i := range n {
		goods[i] = product.Product{
			ID:       fmt.Sprintf("%03d", i+1),
			Title:    fmt.Sprintf("Item %d", i+1),
			Category: []string{"Кухня", "Дом"}[i%2],
			Price:    decimal.NewFromInt(int64(10 + i)),
			Count:    int64(i + 1),
		}
		if i%3 == 0 {
			goods[i].Title = fmt.Sprintf("Чайник %d", i+1)
			goods[i].Discount = decimal.NewFromInt(5)
		}
		require.NoError(t, repo.Insert(context.Background(), &goods[i]))
	}
	return goods
}

func TestGoodsRepository(t *testing.T) {
	pool := newTestPool(t)
	repo := NewGoodsRepository(pool)
	ctx := context.Background()

	all := seedGoods(t, repo, 25)

	t.Run("pages concatenate to the full listing", func(t *testing.T) {
		listed, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, listed, len(all))

		var paged []product.Product
		for page := 1; ; page++ {
			chunk, err := repo.ListByPage(ctx, page)
			require.NoError(t, err)
			require.LessOrEqual(t, len(chunk), product.PageSize)
			if len(chunk) == 0 {
				break
			}
			paged = append(paged, chunk...)
		}
		assert.Equal(t, listed, paged)

		empty, err := repo.ListByPage(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("search is a case-insensitive substring", func(t *testing.T) {
		found, err := repo.ListBySearch(ctx, "чайн")
		require.NoError(t, err)

		listed, err := repo.List(ctx)
		require.NoError(t, err)
		var want []product.Product
		for _, p := range listed {
			if strings.Contains(strings.ToLower(p.Title), "чайн") {
				want = append(want, p)
			}
		}
		assert.Equal(t, want, found)

		page, err := repo.ListBySearchAndPage(ctx, "чайн", 1)
		require.NoError(t, err)
		assert.Equal(t, want, page)

		none, err := repo.ListBySearch(ctx, "%")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("category, discount and categories", func(t *testing.T) {
		kitchen, err := repo.ListByCategory(ctx, "кухня")
		require.NoError(t, err)
		assert.Len(t, kitchen, 13)

		discounted, err := repo.ListDiscounted(ctx)
		require.NoError(t, err)
		assert.Len(t, discounted, 9)

		categories, err := repo.ListCategories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Дом", "Кухня"}, categories)
	})

	t.Run("insert then get", func(t *testing.T) {
		p := product.Product{
			ID: "new", Title: "Новый", Category: "Дом",
			Price: decimal.RequireFromString("9.99"), Count: 1, Image: "image/new.png",
		}
		require.NoError(t, repo.Insert(ctx, &p))

		got, err := repo.GetByID(ctx, "new")
		require.NoError(t, err)
		assert.Equal(t, p.Title, got.Title)
		assert.True(t, p.Price.Equal(got.Price))
		assert.True(t, got.Discount.IsZero())
		assert.Equal(t, "image/new.png", got.Image)

		err = repo.Insert(ctx, &p)
		var storeErr *product.StoreError
		require.ErrorAs(t, err, &storeErr)
	})

	t.Run("update leaves other fields", func(t *testing.T) {
		title := "Переименован"
		require.NoError(t, repo.UpdateByID(ctx, "new", product.Patch{Title: &title}))

		got, err := repo.GetByID(ctx, "new")
		require.NoError(t, err)
		assert.Equal(t, title, got.Title)
		assert.Equal(t, "image/new.png", got.Image)
		assert.Equal(t, int64(1), got.Count)

		require.ErrorIs(t, repo.UpdateByID(ctx, "missing", product.Patch{Title: &title}), product.ErrNotFound)
	})

	t.Run("delete twice", func(t *testing.T) {
		require.NoError(t, repo.DeleteByID(ctx, "new"))

		_, err := repo.GetByID(ctx, "new")
		require.ErrorIs(t, err, product.ErrNotFound)

		require.ErrorIs(t, repo.DeleteByID(ctx, "new"), product.ErrNotFound)
	})
}

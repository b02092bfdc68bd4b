package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-shop-bot/models"
)

func testRows() []models.AdProducts {
	return []models.AdProducts{
		{
			AdID: "ad_1",
			Products: []models.Product{
				{Name: "Wooden Clothes Rack", Price: "Rs. 4,500", Detail: "6ft foldable", Images: []string{"https://cdn.example.com/rack1.jpg", "https://cdn.example.com/rack2.jpg"}},
				{Name: "Steel Clothes Rack", Price: "Rs. 6,000", Images: []string{"not-a-url"}},
			},
		},
		{
			AdID: "ad_2",
			Products: []models.Product{
				{Name: "Baby Cot", Price: "Rs. 12,000", Images: []string{"https://cdn.example.com/cot.jpg"}},
			},
		},
	}
}

func staticFetcher(rows []models.AdProducts) AdRowFetcher {
	return func(ctx context.Context) ([]models.AdProducts, error) {
		return rows, nil
	}
}

func TestCatalogProductsForAd(t *testing.T) {
	catalog := NewCatalog(time.Minute, staticFetcher(testRows()))

	t.Run("known ad", func(t *testing.T) {
		text, images, products := catalog.ProductsForAd(context.Background(), "ad_1")

		require.Len(t, products, 2)
		assert.Contains(t, text, "Wooden Clothes Rack - Rs. 4,500")
		assert.Contains(t, text, "6ft foldable")
		assert.Equal(t, []string{"https://cdn.example.com/rack1.jpg", "https://cdn.example.com/rack2.jpg"}, images)
	})

	t.Run("unknown ad is empty, not an error", func(t *testing.T) {
		text, images, products := catalog.ProductsForAd(context.Background(), "ad_nope")

		assert.Empty(t, text)
		assert.Empty(t, images)
		assert.Empty(t, products)
	})

	t.Run("slots capped at five products", func(t *testing.T) {
		var many []models.Product
		for i := 0; i < 8; i++ {
			many = append(many, models.Product{Name: fmt.Sprintf("Item %d", i), Price: "Rs. 100"})
		}
		c := NewCatalog(time.Minute, staticFetcher([]models.AdProducts{{AdID: "big", Products: many}}))

		_, _, products := c.ProductsForAd(context.Background(), "big")
		assert.Len(t, products, 5)
	})
}

func TestCatalogSearchProducts(t *testing.T) {
	catalog := NewCatalog(time.Minute, staticFetcher(testRows()))

	t.Run("matches across ads", func(t *testing.T) {
		_, _, products := catalog.SearchProducts(context.Background(), "clothes rack")
		assert.Len(t, products, 2)
	})

	t.Run("short tokens are ignored", func(t *testing.T) {
		text, _, products := catalog.SearchProducts(context.Background(), "a be")
		assert.Empty(t, text)
		assert.Empty(t, products)
	})

	t.Run("case insensitive", func(t *testing.T) {
		_, _, products := catalog.SearchProducts(context.Background(), "BABY cot")
		require.Len(t, products, 1)
		assert.Equal(t, "Baby Cot", products[0].Name)
	})

	t.Run("non-url images are dropped", func(t *testing.T) {
		_, images, _ := catalog.SearchProducts(context.Background(), "steel")
		assert.Empty(t, images)
	})
}

func TestCatalogCaching(t *testing.T) {
	t.Run("fresh snapshot skips the fetcher", func(t *testing.T) {
		calls := 0
		catalog := NewCatalog(time.Minute, func(ctx context.Context) ([]models.AdProducts, error) {
			calls++
			return testRows(), nil
		})

		catalog.ProductsForAd(context.Background(), "ad_1")
		catalog.ProductsForAd(context.Background(), "ad_2")

		assert.Equal(t, 1, calls)
	})

	t.Run("expired snapshot refetches", func(t *testing.T) {
		calls := 0
		catalog := NewCatalog(time.Nanosecond, func(ctx context.Context) ([]models.AdProducts, error) {
			calls++
			return testRows(), nil
		})

		catalog.ProductsForAd(context.Background(), "ad_1")
		time.Sleep(time.Millisecond)
		catalog.ProductsForAd(context.Background(), "ad_1")

		assert.Equal(t, 2, calls)
	})

	t.Run("stale rows served when refresh fails", func(t *testing.T) {
		calls := 0
		catalog := NewCatalog(time.Nanosecond, func(ctx context.Context) ([]models.AdProducts, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("mongo down")
			}
			return testRows(), nil
		})

		_, _, first := catalog.ProductsForAd(context.Background(), "ad_1")
		require.NotEmpty(t, first)

		time.Sleep(time.Millisecond)
		_, _, second := catalog.ProductsForAd(context.Background(), "ad_1")
		assert.Equal(t, first, second)
	})
}

func TestCatalogAllProducts(t *testing.T) {
	catalog := NewCatalog(time.Minute, staticFetcher(testRows()))

	text, _, products := catalog.AllProducts(context.Background(), 2)
	assert.Len(t, products, 2)
	assert.Contains(t, text, "Wooden Clothes Rack")
}

func TestParsePriceValue(t *testing.T) {
	assert.Equal(t, 4500, ParsePriceValue("Rs. 4,500"))
	assert.Equal(t, 12000, ParsePriceValue("Rs.12000"))
	assert.Equal(t, 0, ParsePriceValue("price varies"))
	assert.Equal(t, 0, ParsePriceValue(""))
}

func TestFormatProducts(t *testing.T) {
	assert.Equal(t, "", FormatProducts(nil))

	got := FormatProducts([]models.Product{
		{Name: "Baby Cot", Price: "Rs. 12,000", Detail: "solid wood"},
		{Name: "Rack", Price: "Rs. 4,500"},
	})
	assert.Equal(t, "Baby Cot - Rs. 12,000\n  solid wood\nRack - Rs. 4,500", got)
}

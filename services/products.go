package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-shop-bot/models"
)

const (
	maxProductsPerAd   = 5
	maxImagesPerSlot   = 3
	maxSearchProducts  = 5
	maxSearchImages    = 15
	minSearchTokenLen  = 3
	catalogRefreshWait = time.Minute
)

// AdRowFetcher loads the full ad_products table.
type AdRowFetcher func(ctx context.Context) ([]models.AdProducts, error)

// Catalog is a read-through TTL cache over the ad_products rows. One
// snapshot covers the whole table; staleness within the TTL is accepted,
// and on refresh failure the stale snapshot is served rather than
// failing (availability over freshness).
type Catalog struct {
	mu        sync.Mutex
	ttl       time.Duration
	fetch     AdRowFetcher
	rows      []models.AdProducts
	fetchedAt time.Time
}

// NewCatalog creates a catalog cache with the given TTL and fetcher.
func NewCatalog(ttl time.Duration, fetch AdRowFetcher) *Catalog {
	return &Catalog{ttl: ttl, fetch: fetch}
}

// FetchAdRows is the production fetcher reading from MongoDB.
func FetchAdRows(ctx context.Context) ([]models.AdProducts, error) {
	collection := GetDatabase().Collection("ad_products")

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []models.AdProducts
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// snapshot returns the cached rows, refreshing when the TTL has lapsed.
func (c *Catalog) snapshot(ctx context.Context) []models.AdProducts {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.fetchedAt) < c.ttl && c.rows != nil {
		return c.rows
	}

	rows, err := c.fetch(ctx)
	if err != nil {
		slog.Warn("Catalog refresh failed, serving stale rows",
			"error", err,
			"staleAge", time.Since(c.fetchedAt).String(),
		)
		return c.rows
	}

	c.rows = rows
	c.fetchedAt = time.Now()
	return c.rows
}

// ProductsForAd resolves an ad id to its product slots, display text and
// image URLs. Unknown ad ids return empty results, never an error.
func (c *Catalog) ProductsForAd(ctx context.Context, adID string) (string, []string, []models.Product) {
	for _, row := range c.snapshot(ctx) {
		if row.AdID != adID {
			continue
		}

		products := row.Products
		if len(products) > maxProductsPerAd {
			products = products[:maxProductsPerAd]
		}
		return FormatProducts(products), collectImages(products, maxSearchImages), products
	}

	return "", nil, nil
}

// SearchProducts scans every row's product names for case-insensitive
// substring matches against the query tokens, deduplicated by name.
func (c *Catalog) SearchProducts(ctx context.Context, query string) (string, []string, []models.Product) {
	tokens := searchTokens(query)
	if len(tokens) == 0 {
		return "", nil, nil
	}

	seen := make(map[string]bool)
	var matches []models.Product

	for _, row := range c.snapshot(ctx) {
		for _, product := range row.Products {
			nameLower := strings.ToLower(product.Name)
			if seen[nameLower] {
				continue
			}
			for _, token := range tokens {
				if strings.Contains(nameLower, token) {
					seen[nameLower] = true
					matches = append(matches, product)
					break
				}
			}
			if len(matches) >= maxSearchProducts {
				return FormatProducts(matches), collectImages(matches, maxSearchImages), matches
			}
		}
	}

	return FormatProducts(matches), collectImages(matches, maxSearchImages), matches
}

// StartRefresh refreshes the snapshot in the background so webhook
// requests rarely pay the fetch cost.
func (c *Catalog) StartRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Catalog refresher stopped")
				return
			case <-ticker.C:
				refreshCtx, cancel := context.WithTimeout(context.Background(), catalogRefreshWait)
				c.mu.Lock()
				rows, err := c.fetch(refreshCtx)
				if err != nil {
					slog.Warn("Scheduled catalog refresh failed", "error", err)
				} else {
					c.rows = rows
					c.fetchedAt = time.Now()
				}
				c.mu.Unlock()
				cancel()
			}
		}
	}()

	slog.Info("Catalog refresher started", "ttl", c.ttl.String())
}

func searchTokens(query string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if len(word) >= minSearchTokenLen {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

func collectImages(products []models.Product, limit int) []string {
	var urls []string
	for _, product := range products {
		images := product.Images
		if len(images) > maxImagesPerSlot {
			images = images[:maxImagesPerSlot]
		}
		for _, url := range images {
			if !strings.HasPrefix(url, "http") {
				continue
			}
			urls = append(urls, url)
			if len(urls) >= limit {
				return urls
			}
		}
	}
	return urls
}

// AllProducts returns up to limit products across the catalog, for
// "what do you have" questions with no ad context.
func (c *Catalog) AllProducts(ctx context.Context, limit int) (string, []string, []models.Product) {
	seen := make(map[string]bool)
	var all []models.Product

	for _, row := range c.snapshot(ctx) {
		for _, product := range row.Products {
			nameLower := strings.ToLower(product.Name)
			if seen[nameLower] {
				continue
			}
			seen[nameLower] = true
			all = append(all, product)
			if len(all) >= limit {
				return FormatProducts(all), collectImages(all, maxSearchImages), all
			}
		}
	}

	return FormatProducts(all), collectImages(all, maxSearchImages), all
}

var priceDigitsPattern = regexp.MustCompile(`\d[\d,]*`)

// ParsePriceValue pulls a numeric value out of a display price like
// "Rs. 5,000". Returns 0 when the display string has no number.
func ParsePriceValue(display string) int {
	m := priceDigitsPattern.FindString(display)
	if m == "" {
		return 0
	}
	m = strings.ReplaceAll(m, ",", "")
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// FormatProducts renders product slots as the display text shown to the
// customer and handed to the model as grounding.
func FormatProducts(products []models.Product) string {
	if len(products) == 0 {
		return ""
	}

	var b strings.Builder
	for i, product := range products {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s - %s", product.Name, product.Price))
		if product.Detail != "" {
			b.WriteString("\n  ")
			b.WriteString(product.Detail)
		}
	}
	return b.String()
}

// UpsertAdProducts writes an ad row, replacing any existing one.
func UpsertAdProducts(ctx context.Context, row *models.AdProducts) error {
	collection := GetDatabase().Collection("ad_products")

	row.UpdatedAt = time.Now()

	filter := bson.M{"ad_id": row.AdID}
	update := bson.M{"$set": bson.M{
		"ad_id":      row.AdID,
		"products":   row.Products,
		"updated_at": row.UpdatedAt,
	}}

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, filter, update, opts)
	return err
}

// ListAdProducts returns the raw catalog rows for the dashboard.
func ListAdProducts(ctx context.Context) ([]models.AdProducts, error) {
	return FetchAdRows(ctx)
}

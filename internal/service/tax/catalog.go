package tax

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "tax-configurations"

type catalogEntry struct {
	config tax.Configuration
	err    error // validation failure, surfaced when the entry is selected
}

// Catalog holds validated tax configurations and selects one by date.
// Slab tables are validated when loaded, never per calculation.
type Catalog struct {
	repo tax.Repository

	mu       sync.RWMutex
	entries  []catalogEntry
	loaded   bool
	loadedAt time.Time

	group singleflight.Group
}

func NewCatalog(repo tax.Repository) *Catalog {
	return &Catalog{repo: repo}
}

// Refresh reloads configurations from the repository. Concurrent callers share
// one load. On a repository error the previous snapshot is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do(refreshKey, func() (interface{}, error) {
		configs, err := c.repo.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load tax configurations: %w", err)
		}

		entries := make([]catalogEntry, 0, len(configs))
		for _, cfg := range configs {
			entry := catalogEntry{config: cfg}
			if err := cfg.Validate(); err != nil {
				entry.err = fmt.Errorf("tax configuration %s: %w", cfg.FinancialYear, err)
				slog.Error("Tax configuration rejected", "financial_year", cfg.FinancialYear, "id", cfg.ID, "error", err)
			}
			entries = append(entries, entry)
		}

		// Latest validity start wins when windows overlap
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].config.ValidFrom.After(entries[j].config.ValidFrom)
		})

		c.mu.Lock()
		c.entries = entries
		c.loaded = true
		c.loadedAt = time.Now()
		c.mu.Unlock()

		slog.Info("Tax configurations loaded", "count", len(entries))
		return nil, nil
	})
	return err
}

// Select returns the configuration whose validity window contains date
func (c *Catalog) Select(ctx context.Context, date time.Time) (tax.Configuration, error) {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()

	if !loaded {
		if err := c.Refresh(ctx); err != nil {
			return tax.Configuration{}, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, entry := range c.entries {
		if !entry.config.Active || !entry.config.Covers(date) {
			continue
		}
		if entry.err != nil {
			return tax.Configuration{}, entry.err
		}
		return entry.config, nil
	}

	return tax.Configuration{}, fmt.Errorf("%w: %s", tax.ErrNoActiveTaxConfiguration, date.Format("2006-01-02"))
}

// LoadedAt reports when the current snapshot was taken
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

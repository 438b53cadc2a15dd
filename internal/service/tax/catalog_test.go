package tax

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/cmlabs-hris/payrun-backend-go/internal/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTaxRepository struct {
	configs []tax.Configuration
	err     error
	calls   atomic.Int32
	delay   time.Duration
}

func (f *fakeTaxRepository) ListActive(ctx context.Context) ([]tax.Configuration, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.configs, f.err
}

func TestCatalog_Select_ByValidityWindow(t *testing.T) {
	// Arrange
	fy2024 := fixtures.GetDefaultTaxConfiguration(2024)
	fy2024.ID = "fy2024"
	fy2025 := fixtures.GetDefaultTaxConfiguration(2025)
	fy2025.ID = "fy2025"
	catalog := NewCatalog(&fakeTaxRepository{configs: []tax.Configuration{fy2024, fy2025}})

	// Act
	got2024, err2024 := catalog.Select(context.Background(), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	got2025, err2025 := catalog.Select(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	// Assert
	require.NoError(t, err2024)
	require.NoError(t, err2025)
	assert.Equal(t, "fy2024", got2024.ID)
	assert.Equal(t, "fy2025", got2025.ID)
}

func TestCatalog_Select_NoActiveConfiguration(t *testing.T) {
	inactive := fixtures.GetDefaultTaxConfiguration(2025)
	inactive.Active = false
	catalog := NewCatalog(&fakeTaxRepository{configs: []tax.Configuration{fixtures.GetDefaultTaxConfiguration(2024), inactive}})

	_, err := catalog.Select(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.ErrorIs(t, err, tax.ErrNoActiveTaxConfiguration)
}

func TestCatalog_Select_MalformedTableFailsAtLoad(t *testing.T) {
	broken := fixtures.GetDefaultTaxConfiguration(2025)
	// Gap between 7,500 and 8,000
	broken.Slabs[1].From = d("8000")
	catalog := NewCatalog(&fakeTaxRepository{configs: []tax.Configuration{broken}})

	require.NoError(t, catalog.Refresh(context.Background()))
	_, err := catalog.Select(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.ErrorIs(t, err, tax.ErrMalformedSlabTable)
}

func TestCatalog_Refresh_KeepsSnapshotOnError(t *testing.T) {
	repo := &fakeTaxRepository{configs: []tax.Configuration{fixtures.GetDefaultTaxConfiguration(2025)}}
	catalog := NewCatalog(repo)
	require.NoError(t, catalog.Refresh(context.Background()))

	repo.err = errors.New("connection refused")
	err := catalog.Refresh(context.Background())
	require.Error(t, err)

	_, selectErr := catalog.Select(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, selectErr)
}

func TestCatalog_Select_LoadsLazily(t *testing.T) {
	repo := &fakeTaxRepository{configs: []tax.Configuration{fixtures.GetDefaultTaxConfiguration(2025)}}
	catalog := NewCatalog(repo)

	_, err := catalog.Select(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = catalog.Select(context.Background(), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, int32(1), repo.calls.Load())
	assert.False(t, catalog.LoadedAt().IsZero())
}

func TestCatalog_Refresh_CoalescesConcurrentLoads(t *testing.T) {
	repo := &fakeTaxRepository{
		configs: []tax.Configuration{fixtures.GetDefaultTaxConfiguration(2025)},
		delay:   50 * time.Millisecond,
	}
	catalog := NewCatalog(repo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, catalog.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	assert.Less(t, repo.calls.Load(), int32(8))
}

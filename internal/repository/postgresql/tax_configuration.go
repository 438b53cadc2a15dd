package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/tax"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TaxConfigurationRepository reads tax configurations and seeds defaults
type TaxConfigurationRepository struct {
	db *database.DB
}

func NewTaxConfigurationRepository(db *database.DB) *TaxConfigurationRepository {
	return &TaxConfigurationRepository{db: db}
}

// ListActive implements tax.Repository.
func (r *TaxConfigurationRepository) ListActive(ctx context.Context) ([]tax.Configuration, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id::text, financial_year, valid_from, valid_to, currency_code, periods_per_year,
			tax_free_threshold, default_residency, employee_contribution_rate, employer_contribution_rate,
			contribution_minimum_salary, is_active
		FROM tax_configurations
		WHERE is_active = TRUE
		ORDER BY valid_from
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax configurations: %w", err)
	}
	defer rows.Close()

	var configs []tax.Configuration
	var ids []string
	index := make(map[string]int)
	for rows.Next() {
		var c tax.Configuration
		var residency string
		if err := rows.Scan(
			&c.ID, &c.FinancialYear, &c.ValidFrom, &c.ValidTo, &c.CurrencyCode, &c.PeriodsPerYear,
			&c.TaxFreeThreshold, &residency, &c.EmployeeContributionRate, &c.EmployerContributionRate,
			&c.ContributionMinimumSalary, &c.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tax configuration: %w", err)
		}
		c.DefaultResidency = tax.Residency(residency)
		index[c.ID] = len(configs)
		configs = append(configs, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tax configurations: %w", err)
	}
	if len(configs) == 0 {
		return configs, nil
	}

	slabQuery := `
		SELECT id::text, tax_configuration_id::text, slab_order, residency, income_from, income_to, rate, description
		FROM tax_slabs
		WHERE tax_configuration_id = ANY($1::uuid[])
		ORDER BY tax_configuration_id, residency, slab_order
	`
	slabRows, err := q.Query(ctx, slabQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax slabs: %w", err)
	}
	defer slabRows.Close()

	for slabRows.Next() {
		var s tax.Slab
		var configID, residency string
		var to decimal.NullDecimal
		if err := slabRows.Scan(&s.ID, &configID, &s.Order, &residency, &s.From, &to, &s.Rate, &s.Description); err != nil {
			return nil, fmt.Errorf("failed to scan tax slab: %w", err)
		}
		s.Residency = tax.Residency(residency)
		if to.Valid {
			upper := to.Decimal
			s.To = &upper
		}
		i := index[configID]
		configs[i].Slabs = append(configs[i].Slabs, s)
	}
	if err := slabRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tax slabs: %w", err)
	}

	return configs, nil
}

// EnsureDefault inserts cfg and its slabs unless a configuration for the same
// financial year already exists. Returns true when rows were written.
func (r *TaxConfigurationRepository) EnsureDefault(ctx context.Context, cfg tax.Configuration) (bool, error) {
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	created := false
	err := WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			INSERT INTO tax_configurations (
				financial_year, valid_from, valid_to, currency_code, periods_per_year, tax_free_threshold,
				default_residency, employee_contribution_rate, employer_contribution_rate,
				contribution_minimum_salary, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (financial_year) DO NOTHING
			RETURNING id::text
		`,
			cfg.FinancialYear, cfg.ValidFrom, cfg.ValidTo, cfg.CurrencyCode, cfg.PeriodsPerYear, cfg.TaxFreeThreshold,
			string(cfg.DefaultResidency), cfg.EmployeeContributionRate, cfg.EmployerContributionRate,
			cfg.ContributionMinimumSalary, cfg.Active,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to insert tax configuration %s: %w", cfg.FinancialYear, err)
		}

		batch := &pgx.Batch{}
		for _, s := range cfg.Slabs {
			var to decimal.NullDecimal
			if s.To != nil {
				to = decimal.NewNullDecimal(*s.To)
			}
			batch.Queue(`
				INSERT INTO tax_slabs (tax_configuration_id, slab_order, residency, income_from, income_to, rate, description)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, id, s.Order, string(s.Residency), s.From, to, s.Rate, s.Description)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert tax slabs for %s: %w", cfg.FinancialYear, err)
		}

		created = true
		return nil
	})
	return created, err
}

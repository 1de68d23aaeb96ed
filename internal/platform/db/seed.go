package db

import (
	"context"
	"fmt"
	"strings"

	"timeoff/internal/platform/config"
)

// CategorySeeder inserts a category unless the tenant already has one with
// the same title.
type CategorySeeder interface {
	EnsureCategory(ctx context.Context, tenantID, title string, annualQuota int, isPaid bool) error
}

type seedCategory struct {
	Title       string
	AnnualQuota int
	IsPaid      bool
}

var defaultCategories = []seedCategory{
	{Title: "Annual Leave", AnnualQuota: 20, IsPaid: true},
	{Title: "Sick Leave", AnnualQuota: 10, IsPaid: true},
	{Title: "Unpaid Leave", AnnualQuota: 0, IsPaid: false},
}

func Seed(ctx context.Context, seeder CategorySeeder, cfg config.Config) error {
	tenantID := strings.TrimSpace(cfg.SeedTenantID)
	if tenantID == "" {
		return nil
	}
	for _, c := range defaultCategories {
		if err := seeder.EnsureCategory(ctx, tenantID, c.Title, c.AnnualQuota, c.IsPaid); err != nil {
			return fmt.Errorf("seed category %q: %w", c.Title, err)
		}
	}
	return nil
}

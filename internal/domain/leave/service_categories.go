package leave

import (
	"context"
	"fmt"
	"strings"

	"timeoff/internal/domain/auth"
)

// ListCategories lists the tenant's categories. Inactive ones are only
// included for admins who ask for them.
func (s *Service) ListCategories(ctx context.Context, id auth.Identity, includeInactive bool) ([]Category, error) {
	if includeInactive && !s.policy.IsAdmin(id) {
		includeInactive = false
	}
	out, err := s.store.ListCategories(ctx, id.TenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Category{}
	}
	return out, nil
}

func (s *Service) CreateCategory(ctx context.Context, id auth.Identity, cmd CreateCategoryCommand) (Category, error) {
	if !s.policy.IsAdmin(id) {
		return Category{}, ErrForbidden
	}
	cmd.Title = strings.TrimSpace(cmd.Title)
	verr, err := validateStruct(cmd)
	if err != nil {
		return Category{}, err
	}
	if err := verr.orNil(); err != nil {
		return Category{}, err
	}

	active := true
	if cmd.IsActive != nil {
		active = *cmd.IsActive
	}
	created, err := s.store.InsertCategory(ctx, Category{
		TenantID:    id.TenantID,
		Title:       cmd.Title,
		AnnualQuota: cmd.AnnualQuota,
		IsPaid:      cmd.IsPaid,
		IsActive:    active,
	})
	if err != nil {
		return Category{}, err
	}
	s.emit(ctx, id, ActionCategoryCreate, EntityCategory, created.ID, 0, "", "", map[string]any{
		"title":       created.Title,
		"annualQuota": created.AnnualQuota,
	})
	return created, nil
}

// UpdateCategory applies a partial update. Once any request references the
// category its title and paid flag are frozen.
func (s *Service) UpdateCategory(ctx context.Context, id auth.Identity, categoryID int64, cmd UpdateCategoryCommand) (Category, error) {
	if !s.policy.IsAdmin(id) {
		return Category{}, ErrForbidden
	}
	if cmd.Title != nil {
		trimmed := strings.TrimSpace(*cmd.Title)
		cmd.Title = &trimmed
	}
	verr, err := validateStruct(cmd)
	if err != nil {
		return Category{}, err
	}
	if err := verr.orNil(); err != nil {
		return Category{}, err
	}

	var updated Category
	err = s.store.WithinTx(ctx, func(q Queries) error {
		current, err := q.GetCategory(ctx, id.TenantID, categoryID)
		if err != nil {
			return err
		}
		renamed := cmd.Title != nil && *cmd.Title != current.Title
		repaid := cmd.IsPaid != nil && *cmd.IsPaid != current.IsPaid
		if renamed || repaid {
			inUse, err := q.CategoryInUse(ctx, id.TenantID, categoryID)
			if err != nil {
				return err
			}
			if inUse {
				return fmt.Errorf("category %d is referenced by requests, only quota and active flag may change: %w", categoryID, ErrInvalidState)
			}
		}

		if cmd.Title != nil {
			current.Title = *cmd.Title
		}
		if cmd.AnnualQuota != nil {
			current.AnnualQuota = *cmd.AnnualQuota
		}
		if cmd.IsPaid != nil {
			current.IsPaid = *cmd.IsPaid
		}
		if cmd.IsActive != nil {
			current.IsActive = *cmd.IsActive
		}
		updated, err = q.UpdateCategory(ctx, current)
		return err
	})
	if err != nil {
		return Category{}, err
	}
	s.forgetCategory(id.TenantID, categoryID)
	s.emit(ctx, id, ActionCategoryUpdate, EntityCategory, updated.ID, 0, "", "", map[string]any{
		"title":       updated.Title,
		"annualQuota": updated.AnnualQuota,
		"isActive":    updated.IsActive,
	})
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id auth.Identity, categoryID int64) error {
	if !s.policy.IsAdmin(id) {
		return ErrForbidden
	}
	err := s.store.WithinTx(ctx, func(q Queries) error {
		if _, err := q.GetCategory(ctx, id.TenantID, categoryID); err != nil {
			return err
		}
		inUse, err := q.CategoryInUse(ctx, id.TenantID, categoryID)
		if err != nil {
			return err
		}
		if inUse {
			return fmt.Errorf("category %d is referenced by requests: %w", categoryID, ErrInvalidState)
		}
		return q.DeleteCategory(ctx, id.TenantID, categoryID)
	})
	if err != nil {
		return err
	}
	s.forgetCategory(id.TenantID, categoryID)
	s.emit(ctx, id, ActionCategoryDelete, EntityCategory, categoryID, 0, "", "", nil)
	return nil
}

// EnsureCategory creates a category when no category with that title exists.
// Used by seeding.
func (s *Service) EnsureCategory(ctx context.Context, tenantID, title string, annualQuota int, isPaid bool) error {
	return s.store.EnsureCategory(ctx, tenantID, title, annualQuota, isPaid)
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/rbac"
	"fintrack/internal/report"
	syncport "fintrack/internal/sync"
)

// TaxonomyService maintains the shared categories and persons. The taxonomy
// is global, so only the role permissions matter, not record ownership.
type TaxonomyService struct {
	store     TaxonomyStore
	auth      report.AuthContext
	gate      *rbac.Gate
	publisher DirtyPublisher
}

func NewTaxonomyService(store TaxonomyStore, auth report.AuthContext, gate *rbac.Gate, publisher DirtyPublisher) *TaxonomyService {
	return &TaxonomyService{
		store:     store,
		auth:      auth,
		gate:      gate,
		publisher: publisher,
	}
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, callerID string, c core.Category) (int64, error) {
	if err := s.require(ctx, callerID, rbac.PermAddCategory); err != nil {
		return 0, err
	}
	if err := c.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("save category: %w", err)
	}
	s.publishDirty(ctx, syncport.EntityCategories, id)
	return id, nil
}

func (s *TaxonomyService) UpdateCategory(ctx context.Context, callerID string, c core.Category) error {
	if err := s.require(ctx, callerID, rbac.PermEditCategory); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	s.publishDirty(ctx, syncport.EntityCategories, c.ID)
	return nil
}

func (s *TaxonomyService) DeleteCategory(ctx context.Context, callerID string, id int64) error {
	if err := s.require(ctx, callerID, rbac.PermDeleteCategory); err != nil {
		return err
	}
	if err := s.store.SoftDeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("soft delete category: %w", err)
	}
	s.publishDirty(ctx, syncport.EntityCategories, id)
	return nil
}

func (s *TaxonomyService) ListCategories(ctx context.Context, callerID string, isExpense bool) ([]core.Category, error) {
	if err := s.require(ctx, callerID, rbac.PermViewCategories); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, isExpense)
}

func (s *TaxonomyService) CreatePerson(ctx context.Context, callerID string, p core.Person) (int64, error) {
	if err := s.require(ctx, callerID, rbac.PermAddPerson); err != nil {
		return 0, err
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.CreatePerson(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("save person: %w", err)
	}
	s.publishDirty(ctx, syncport.EntityPersons, id)
	return id, nil
}

func (s *TaxonomyService) UpdatePerson(ctx context.Context, callerID string, p core.Person) error {
	if err := s.require(ctx, callerID, rbac.PermEditPerson); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	s.publishDirty(ctx, syncport.EntityPersons, p.ID)
	return nil
}

func (s *TaxonomyService) DeletePerson(ctx context.Context, callerID string, id int64) error {
	if err := s.require(ctx, callerID, rbac.PermDeletePerson); err != nil {
		return err
	}
	if err := s.store.SoftDeletePerson(ctx, id); err != nil {
		return fmt.Errorf("soft delete person: %w", err)
	}
	s.publishDirty(ctx, syncport.EntityPersons, id)
	return nil
}

func (s *TaxonomyService) ListPersons(ctx context.Context, callerID string) ([]core.Person, error) {
	if err := s.require(ctx, callerID, rbac.PermViewPerson); err != nil {
		return nil, err
	}
	return s.store.ListPersons(ctx)
}

func (s *TaxonomyService) require(ctx context.Context, callerID string, perm rbac.Permission) error {
	user, err := s.auth.ResolveUser(ctx, callerID)
	if err != nil {
		return fmt.Errorf("resolve caller: %w", err)
	}
	if !s.gate.HasPermission(user.Role, perm) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *TaxonomyService) publishDirty(ctx context.Context, entity syncport.EntityType, id int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping dirty notification")
		return
	}
	if err := s.publisher.PublishRecordDirty(ctx, entity, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish dirty notification",
			"entity", entity, "record_id", id, "error", err)
	}
}

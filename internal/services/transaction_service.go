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

// TransactionService handles expense and income writes on behalf of a
// caller.
type TransactionService struct {
	store     TransactionStore
	auth      report.AuthContext
	gate      *rbac.Gate
	publisher DirtyPublisher
}

func NewTransactionService(store TransactionStore, auth report.AuthContext, gate *rbac.Gate, publisher DirtyPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		auth:      auth,
		gate:      gate,
		publisher: publisher,
	}
}

// CreateTransaction records a new expense or income owned by the caller.
func (s *TransactionService) CreateTransaction(ctx context.Context, callerID string, tx core.Transaction) (int64, error) {
	user, err := s.auth.ResolveUser(ctx, callerID)
	if err != nil {
		return 0, fmt.Errorf("resolve caller: %w", err)
	}
	if !s.gate.HasPermission(user.Role, rbac.PermAddTransaction) {
		return 0, ErrPermissionDenied
	}

	tx.UserID = user.ID
	if err := tx.Validate(); err != nil {
		return 0, err
	}
	if err := s.checkCategoryType(ctx, tx); err != nil {
		return 0, err
	}

	id, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	s.publishDirty(ctx, transactionEntity(tx.IsExpense), id)
	return id, nil
}

// UpdateTransaction rewrites an existing record. Callers may edit their own
// records; editing someone else's requires the all-transactions permission.
func (s *TransactionService) UpdateTransaction(ctx context.Context, callerID string, tx core.Transaction) error {
	user, err := s.auth.ResolveUser(ctx, callerID)
	if err != nil {
		return fmt.Errorf("resolve caller: %w", err)
	}
	if !s.gate.HasPermission(user.Role, rbac.PermAddTransaction) {
		return ErrPermissionDenied
	}

	existing, err := s.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if existing.UserID != user.ID && !s.gate.HasPermission(user.Role, rbac.PermViewAllTxns) {
		return ErrPermissionDenied
	}

	tx.UserID = existing.UserID
	tx.IsExpense = existing.IsExpense
	if err := tx.Validate(); err != nil {
		return err
	}
	if err := s.checkCategoryType(ctx, tx); err != nil {
		return err
	}

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	s.publishDirty(ctx, transactionEntity(tx.IsExpense), tx.ID)
	return nil
}

// DeleteTransaction soft deletes a record under the same ownership rules as
// UpdateTransaction.
func (s *TransactionService) DeleteTransaction(ctx context.Context, callerID string, id int64) error {
	user, err := s.auth.ResolveUser(ctx, callerID)
	if err != nil {
		return fmt.Errorf("resolve caller: %w", err)
	}
	if !s.gate.HasPermission(user.Role, rbac.PermAddTransaction) {
		return ErrPermissionDenied
	}

	existing, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if existing.UserID != user.ID && !s.gate.HasPermission(user.Role, rbac.PermViewAllTxns) {
		return ErrPermissionDenied
	}

	if err := s.store.SoftDeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("soft delete transaction: %w", err)
	}

	s.publishDirty(ctx, transactionEntity(existing.IsExpense), id)
	return nil
}

// GetTransaction returns a single record the caller is allowed to see.
func (s *TransactionService) GetTransaction(ctx context.Context, callerID string, id int64) (core.Transaction, error) {
	user, err := s.auth.ResolveUser(ctx, callerID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("resolve caller: %w", err)
	}
	if !s.gate.HasPermission(user.Role, rbac.PermViewOwnTxns) {
		return core.Transaction{}, ErrPermissionDenied
	}

	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.UserID != user.ID && !s.gate.HasPermission(user.Role, rbac.PermViewAllTxns) {
		return core.Transaction{}, ErrPermissionDenied
	}
	return tx, nil
}

// checkCategoryType rejects an expense filed under an income category and
// vice versa.
func (s *TransactionService) checkCategoryType(ctx context.Context, tx core.Transaction) error {
	cat, err := s.store.GetCategory(ctx, tx.CategoryID)
	if err != nil {
		return fmt.Errorf("load category %d: %w", tx.CategoryID, err)
	}
	if cat.IsExpenseCategory != tx.IsExpense {
		return core.ErrCategoryTypeMismatch
	}
	return nil
}

func (s *TransactionService) publishDirty(ctx context.Context, entity syncport.EntityType, id int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping dirty notification")
		return
	}
	if err := s.publisher.PublishRecordDirty(ctx, entity, id); err != nil {
		// The record is saved locally; the periodic pass will sync it.
		slog.ErrorContext(ctx, "Failed to publish dirty notification",
			"entity", entity, "record_id", id, "error", err)
	}
}

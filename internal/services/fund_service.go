package services

import (
	"context"
	"fmt"
	"log/slog"

	"bucks/internal/amqp"
	"bucks/internal/core"
	"bucks/internal/storage"
)

// ChangePublisher broadcasts entity change notifications to interested
// consumers (e.g. the backup worker). Publishing is best effort: a
// failed publish never fails the local write.
type ChangePublisher interface {
	PublishChange(ctx context.Context, entity, action string, id int64) error
}

// FundService orchestrates fund operations: validation and
// normalization, persistence, and change notification.
type FundService struct {
	repo      *storage.Repository
	publisher ChangePublisher
}

// NewFundService wires a fund service. publisher may be nil when no
// broker is configured.
func NewFundService(repo *storage.Repository, publisher ChangePublisher) *FundService {
	return &FundService{repo: repo, publisher: publisher}
}

// CreateFund validates and saves a new fund. A zero identifier gets a
// generated one; serial numbers are normalized before validation.
func (s *FundService) CreateFund(ctx context.Context, f core.Fund) (core.Fund, error) {
	if f.HasSerial() {
		f.SerialNumber = core.NormalizeSerial(f.SerialNumber)
	}
	if err := f.Validate(); err != nil {
		return core.Fund{}, fmt.Errorf("validate fund: %w", err)
	}
	if f.ID == 0 {
		f.ID = core.NewID()
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = core.NowMillis()
	}

	if err := s.repo.InsertFund(ctx, f); err != nil {
		return core.Fund{}, err
	}

	s.publish(ctx, amqp.EntityFund, amqp.ActionInsert, f.ID)
	return f, nil
}

// UpdateFund validates and replaces an existing fund record.
func (s *FundService) UpdateFund(ctx context.Context, f core.Fund) error {
	if f.HasSerial() {
		f.SerialNumber = core.NormalizeSerial(f.SerialNumber)
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("validate fund: %w", err)
	}

	if err := s.repo.UpdateFund(ctx, f); err != nil {
		return err
	}

	s.publish(ctx, amqp.EntityFund, amqp.ActionUpdate, f.ID)
	return nil
}

// DeleteFund removes a fund. Its movements survive with the dangling
// reference cleared, so history is preserved.
func (s *FundService) DeleteFund(ctx context.Context, id int64) error {
	if err := s.repo.DeleteFund(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, amqp.EntityFund, amqp.ActionDelete, id)
	return nil
}

func (s *FundService) GetFund(ctx context.Context, id int64) (core.Fund, error) {
	return s.repo.GetFund(ctx, id)
}

func (s *FundService) ListFunds(ctx context.Context) ([]core.Fund, error) {
	return s.repo.ListFunds(ctx)
}

// GetFundComplete returns the fund joined with its movement partitions;
// (nil, nil) when the fund does not exist.
func (s *FundService) GetFundComplete(ctx context.Context, id int64) (*core.FundWithMovements, error) {
	return s.repo.FundWithMovements(ctx, id)
}

func (s *FundService) ListFundsComplete(ctx context.Context) ([]core.FundWithMovements, error) {
	return s.repo.ListFundsWithMovements(ctx)
}

func (s *FundService) publish(ctx context.Context, entity, action string, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, entity, action, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"entity", entity, "action", action, "id", id, "error", err)
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bucks/internal/amqp"
	"bucks/internal/core"
	"bucks/internal/storage"
)

// MovementInput is a transfer request addressed by fund identifiers,
// as it arrives from the API.
type MovementInput struct {
	ActiveFundID     int64
	Direction        core.Direction
	CounterpartyID   *int64
	CounterpartyName string
	Title            string
	Description      string
	AmountText       string
}

// MovementService records and reverses transfers, keeping fund
// balances consistent with movement history.
type MovementService struct {
	repo      *storage.Repository
	publisher ChangePublisher
}

func NewMovementService(repo *storage.Repository, publisher ChangePublisher) *MovementService {
	return &MovementService{repo: repo, publisher: publisher}
}

// Record validates the input, adjusts the balances on both sides and
// persists the movement, all in one transaction.
func (s *MovementService) Record(ctx context.Context, in MovementInput) (core.Movement, error) {
	active, err := s.repo.GetFund(ctx, in.ActiveFundID)
	if err != nil {
		return core.Movement{}, err
	}

	var counterparty *core.Fund
	if in.CounterpartyID != nil {
		counterparty, err = s.repo.FindFund(ctx, *in.CounterpartyID)
		if err != nil {
			return core.Movement{}, err
		}
		if counterparty == nil {
			return core.Movement{}, fmt.Errorf("counterparty fund %d: %w", *in.CounterpartyID, storage.ErrNotFound)
		}
	}

	name := in.CounterpartyName
	if strings.TrimSpace(name) == "" && counterparty != nil {
		name = counterparty.Title
	}

	req := core.MovementRequest{
		Direction:        in.Direction,
		Active:           active,
		Counterparty:     counterparty,
		CounterpartyName: name,
		Title:            in.Title,
		Description:      in.Description,
		AmountText:       in.AmountText,
	}

	amount, err := req.Validate()
	if err != nil {
		return core.Movement{}, fmt.Errorf("validate movement: %w", err)
	}

	m := req.Build(amount, core.NowMillis())

	var funds []core.Fund
	if in.Direction == core.In {
		funds = append(funds, active.WithCash(active.Cash+amount))
		if counterparty != nil {
			funds = append(funds, counterparty.WithCash(counterparty.Cash-amount))
		}
	} else {
		funds = append(funds, active.WithCash(active.Cash-amount))
		if counterparty != nil {
			funds = append(funds, counterparty.WithCash(counterparty.Cash+amount))
		}
	}

	if err := s.repo.ApplyMovement(ctx, m, funds...); err != nil {
		return core.Movement{}, err
	}

	s.publish(ctx, amqp.ActionInsert, m.ID)
	return m, nil
}

// Delete reverses a movement: the receiving fund gives the amount back,
// the sending fund regains it, and the record is removed, all in one
// transaction. Sides whose fund no longer exists are skipped.
func (s *MovementService) Delete(ctx context.Context, id int64) error {
	m, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		return err
	}

	var funds []core.Fund
	if m.FundInID != nil {
		f, err := s.repo.FindFund(ctx, *m.FundInID)
		if err != nil {
			return err
		}
		if f != nil {
			funds = append(funds, f.WithCash(f.Cash-m.Amount))
		}
	}
	if m.FundOutID != nil {
		f, err := s.repo.FindFund(ctx, *m.FundOutID)
		if err != nil {
			return err
		}
		if f != nil {
			funds = append(funds, f.WithCash(f.Cash+m.Amount))
		}
	}

	if err := s.repo.RevertMovement(ctx, id, funds...); err != nil {
		return err
	}

	s.publish(ctx, amqp.ActionDelete, id)
	return nil
}

func (s *MovementService) GetMovement(ctx context.Context, id int64) (core.Movement, error) {
	return s.repo.GetMovement(ctx, id)
}

func (s *MovementService) ListMovements(ctx context.Context) ([]core.Movement, error) {
	return s.repo.ListMovements(ctx)
}

func (s *MovementService) publish(ctx context.Context, action string, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, amqp.EntityMovement, action, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"entity", amqp.EntityMovement, "action", action, "id", id, "error", err)
	}
}

package core

import (
	"errors"
	"strings"
)

// Direction of a movement relative to the active fund: In means money
// flows into it, Out means money leaves it.
type Direction int

const (
	In  Direction = 0
	Out Direction = 1
)

func (d Direction) Valid() bool { return d == In || d == Out }

func (d Direction) String() string {
	if d == In {
		return "In"
	}
	return "Out"
}

var (
	ErrEmptyCounterparty  = errors.New("empty counterparty name")
	ErrEmptyMovementTitle = errors.New("empty movement title")
	ErrEmptyDescription   = errors.New("empty movement description")
	ErrInvalidDirection   = errors.New("invalid movement direction")
	ErrInsufficientFunds  = errors.New("amount exceeds available balance")
	ErrNoFundReference    = errors.New("movement references no fund")
)

// Movement is a single recorded transfer. It references up to two funds:
// both set means a transfer between owned funds, only FundInID set means
// external income, only FundOutID set means external expense.
type Movement struct {
	ID          int64   `json:"movementID"`
	FundInID    *int64  `json:"fundInID"`
	FundOutID   *int64  `json:"fundOutID"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        int64   `json:"date"` // milliseconds since epoch
}

// External reports whether the movement has exactly one fund reference,
// i.e. money entering or leaving the tracked system entirely.
func (m Movement) External() bool {
	return (m.FundInID == nil) != (m.FundOutID == nil)
}

func (m Movement) Validate() error {
	if m.FundInID == nil && m.FundOutID == nil {
		return ErrNoFundReference
	}
	if strings.TrimSpace(m.Title) == "" {
		return ErrEmptyMovementTitle
	}
	if strings.TrimSpace(m.Description) == "" {
		return ErrEmptyDescription
	}
	if m.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MovementRequest is a user-authored transfer before it is accepted. The
// active fund is the one whose screen the request originates from; the
// counterparty is the other owned fund, nil for purely external in/out.
type MovementRequest struct {
	Direction        Direction
	Active           Fund
	Counterparty     *Fund
	CounterpartyName string
	Title            string
	Description      string
	AmountText       string
}

// Validate applies the acceptance rules: all three labels non-blank, a
// positive parseable amount, and neither side sending more cash than it
// holds. It returns the parsed amount on success.
func (r MovementRequest) Validate() (float64, error) {
	if !r.Direction.Valid() {
		return 0, ErrInvalidDirection
	}
	if strings.TrimSpace(r.CounterpartyName) == "" {
		return 0, ErrEmptyCounterparty
	}
	if strings.TrimSpace(r.Title) == "" {
		return 0, ErrEmptyMovementTitle
	}
	if strings.TrimSpace(r.Description) == "" {
		return 0, ErrEmptyDescription
	}
	amount, err := ParseAmount(r.AmountText)
	if err != nil {
		return 0, err
	}
	switch {
	case r.Direction == In && r.Counterparty != nil:
		// Cannot receive more than the sender has.
		if amount > r.Counterparty.Cash {
			return 0, ErrInsufficientFunds
		}
	case r.Direction == Out:
		if amount > r.Active.Cash {
			return 0, ErrInsufficientFunds
		}
	}
	return amount, nil
}

// Build constructs the movement record for an accepted request.
func (r MovementRequest) Build(amount float64, now int64) Movement {
	m := Movement{
		ID:          NewID(),
		Title:       r.Title,
		Description: r.Description,
		Amount:      amount,
		Date:        now,
	}
	activeID := r.Active.ID
	if r.Direction == In {
		m.FundInID = &activeID
		if r.Counterparty != nil {
			cpID := r.Counterparty.ID
			m.FundOutID = &cpID
		}
	} else {
		m.FundOutID = &activeID
		if r.Counterparty != nil {
			cpID := r.Counterparty.ID
			m.FundInID = &cpID
		}
	}
	return m
}

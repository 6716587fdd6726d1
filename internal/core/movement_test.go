package core

import (
	"errors"
	"testing"
)

func validRequest() MovementRequest {
	return MovementRequest{
		Direction:        Out,
		Active:           Fund{ID: 1, Title: "Wallet", Type: FundWallet, Cash: 100},
		CounterpartyName: "Groceries",
		Title:            "Weekly shop",
		Description:      "Supermarket",
		AmountText:       "40",
	}
}

func TestMovementRequestValidate(t *testing.T) {
	cp := Fund{ID: 2, Title: "Savings", Type: FundStash, Cash: 30}

	cases := []struct {
		name   string
		mutate func(*MovementRequest)
		err    error
	}{
		{"valid external out", func(r *MovementRequest) {}, nil},
		{"blank counterparty name", func(r *MovementRequest) { r.CounterpartyName = " " }, ErrEmptyCounterparty},
		{"blank title", func(r *MovementRequest) { r.Title = "" }, ErrEmptyMovementTitle},
		{"blank description", func(r *MovementRequest) { r.Description = "" }, ErrEmptyDescription},
		{"zero amount", func(r *MovementRequest) { r.AmountText = "0" }, ErrInvalidAmount},
		{"garbage amount", func(r *MovementRequest) { r.AmountText = "a lot" }, ErrInvalidAmount},
		{"out exceeds active balance", func(r *MovementRequest) { r.AmountText = "100,01" }, ErrInsufficientFunds},
		{"out at exactly the balance", func(r *MovementRequest) { r.AmountText = "100" }, nil},
		{"in from counterparty exceeds its balance", func(r *MovementRequest) {
			r.Direction = In
			r.Counterparty = &cp
			r.AmountText = "31"
		}, ErrInsufficientFunds},
		{"in from counterparty within its balance", func(r *MovementRequest) {
			r.Direction = In
			r.Counterparty = &cp
			r.AmountText = "30"
		}, nil},
		{"external in ignores active balance", func(r *MovementRequest) {
			r.Direction = In
			r.AmountText = "100000"
		}, nil},
	}
	for _, tc := range cases {
		r := validRequest()
		tc.mutate(&r)
		_, err := r.Validate()
		if tc.err == nil && err != nil {
			t.Errorf("%s: expected ok, got %v", tc.name, err)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestMovementRequestBuild(t *testing.T) {
	cp := Fund{ID: 2, Title: "Savings", Type: FundStash, Cash: 500}

	t.Run("out with counterparty", func(t *testing.T) {
		r := validRequest()
		r.Counterparty = &cp
		m := r.Build(40, 1234)
		if m.FundOutID == nil || *m.FundOutID != 1 {
			t.Fatalf("expected outbound ref to active fund, got %v", m.FundOutID)
		}
		if m.FundInID == nil || *m.FundInID != 2 {
			t.Fatalf("expected inbound ref to counterparty, got %v", m.FundInID)
		}
		if m.Amount != 40 || m.Date != 1234 {
			t.Fatalf("unexpected movement %+v", m)
		}
	})

	t.Run("in without counterparty is external income", func(t *testing.T) {
		r := validRequest()
		r.Direction = In
		m := r.Build(15, 99)
		if m.FundInID == nil || *m.FundInID != 1 {
			t.Fatalf("expected inbound ref to active fund, got %v", m.FundInID)
		}
		if m.FundOutID != nil {
			t.Fatalf("expected nil outbound ref, got %v", *m.FundOutID)
		}
		if !m.External() {
			t.Fatal("expected external movement")
		}
	})
}

func TestMovementValidate(t *testing.T) {
	in := int64(1)
	good := Movement{ID: 1, FundInID: &in, Title: "t", Description: "d", Amount: 5}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Movement{ID: 2, Title: "t", Description: "d", Amount: 5}).Validate(); !errors.Is(err, ErrNoFundReference) {
		t.Fatalf("expected ErrNoFundReference, got %v", err)
	}
}

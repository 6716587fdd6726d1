package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"bucks/internal/core"
	"bucks/internal/storage"
)

type publishedChange struct {
	entity string
	action string
	id     int64
}

type recordingPublisher struct {
	changes []publishedChange
	err     error
}

func (p *recordingPublisher) PublishChange(_ context.Context, entity, action string, id int64) error {
	p.changes = append(p.changes, publishedChange{entity, action, id})
	return p.err
}

func newTestServices(t *testing.T) (*FundService, *MovementService, *recordingPublisher) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "bucks.db"), nil)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	pub := &recordingPublisher{}
	return NewFundService(repo, pub), NewMovementService(repo, pub), pub
}

func mustCreateFund(t *testing.T, fs *FundService, title string, cash float64) core.Fund {
	t.Helper()
	f, err := fs.CreateFund(context.Background(), core.Fund{
		Title: title,
		Type:  core.FundWallet,
		Cash:  cash,
	})
	if err != nil {
		t.Fatalf("create fund %s: %v", title, err)
	}
	return f
}

func TestTransferBetweenFundsAndReversal(t *testing.T) {
	fs, ms, _ := newTestServices(t)
	ctx := context.Background()

	a := mustCreateFund(t, fs, "A", 100)
	b := mustCreateFund(t, fs, "B", 0)

	m, err := ms.Record(ctx, MovementInput{
		ActiveFundID:   a.ID,
		Direction:      core.Out,
		CounterpartyID: &b.ID,
		Title:          "Transfer",
		Description:    "moving savings",
		AmountText:     "40",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if m.FundOutID == nil || *m.FundOutID != a.ID {
		t.Errorf("expected outbound reference to A, got %v", m.FundOutID)
	}
	if m.FundInID == nil || *m.FundInID != b.ID {
		t.Errorf("expected inbound reference to B, got %v", m.FundInID)
	}

	gotA, _ := fs.GetFund(ctx, a.ID)
	gotB, _ := fs.GetFund(ctx, b.ID)
	if gotA.Cash != 60 {
		t.Errorf("A balance after transfer = %v, want 60", gotA.Cash)
	}
	if gotB.Cash != 40 {
		t.Errorf("B balance after transfer = %v, want 40", gotB.Cash)
	}

	if err := ms.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gotA, _ = fs.GetFund(ctx, a.ID)
	gotB, _ = fs.GetFund(ctx, b.ID)
	if gotA.Cash != 100 {
		t.Errorf("A balance after reversal = %v, want 100", gotA.Cash)
	}
	if gotB.Cash != 0 {
		t.Errorf("B balance after reversal = %v, want 0", gotB.Cash)
	}
	movements, _ := ms.ListMovements(ctx)
	if len(movements) != 0 {
		t.Errorf("expected no movements after reversal, got %d", len(movements))
	}
}

func TestExternalMovements(t *testing.T) {
	fs, ms, _ := newTestServices(t)
	ctx := context.Background()

	a := mustCreateFund(t, fs, "Wallet", 50)

	// Income from outside the tracked system.
	in, err := ms.Record(ctx, MovementInput{
		ActiveFundID:     a.ID,
		Direction:        core.In,
		CounterpartyName: "Employer",
		Title:            "Salary",
		Description:      "august",
		AmountText:       "1200,50",
	})
	if err != nil {
		t.Fatalf("record income: %v", err)
	}
	if !in.External() {
		t.Error("income should be external")
	}
	if in.FundOutID != nil {
		t.Errorf("income should have no outbound reference, got %v", *in.FundOutID)
	}
	got, _ := fs.GetFund(ctx, a.ID)
	if got.Cash != 1250.50 {
		t.Errorf("balance after income = %v, want 1250.50", got.Cash)
	}

	// Expense toward outside the tracked system.
	out, err := ms.Record(ctx, MovementInput{
		ActiveFundID:     a.ID,
		Direction:        core.Out,
		CounterpartyName: "Grocery store",
		Title:            "Groceries",
		Description:      "weekly shop",
		AmountText:       "50,50",
	})
	if err != nil {
		t.Fatalf("record expense: %v", err)
	}
	if out.FundInID != nil {
		t.Errorf("expense should have no inbound reference, got %v", *out.FundInID)
	}
	got, _ = fs.GetFund(ctx, a.ID)
	if got.Cash != 1200 {
		t.Errorf("balance after expense = %v, want 1200", got.Cash)
	}
}

func TestRecordRejections(t *testing.T) {
	fs, ms, _ := newTestServices(t)
	ctx := context.Background()

	a := mustCreateFund(t, fs, "A", 10)
	b := mustCreateFund(t, fs, "B", 5)

	tests := []struct {
		name    string
		input   MovementInput
		wantErr error
	}{
		{
			name: "outgoing amount exceeds active balance",
			input: MovementInput{
				ActiveFundID: a.ID, Direction: core.Out,
				CounterpartyName: "Shop", Title: "t", Description: "d",
				AmountText: "10,01",
			},
			wantErr: core.ErrInsufficientFunds,
		},
		{
			name: "incoming amount exceeds counterparty balance",
			input: MovementInput{
				ActiveFundID: a.ID, Direction: core.In, CounterpartyID: &b.ID,
				Title: "t", Description: "d", AmountText: "6",
			},
			wantErr: core.ErrInsufficientFunds,
		},
		{
			name: "blank title",
			input: MovementInput{
				ActiveFundID: a.ID, Direction: core.Out,
				CounterpartyName: "Shop", Title: "  ", Description: "d",
				AmountText: "1",
			},
			wantErr: core.ErrEmptyMovementTitle,
		},
		{
			name: "unparseable amount",
			input: MovementInput{
				ActiveFundID: a.ID, Direction: core.Out,
				CounterpartyName: "Shop", Title: "t", Description: "d",
				AmountText: "abc",
			},
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "unknown active fund",
			input: MovementInput{
				ActiveFundID: 424242, Direction: core.Out,
				CounterpartyName: "Shop", Title: "t", Description: "d",
				AmountText: "1",
			},
			wantErr: storage.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ms.Record(ctx, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Rejections leave balances untouched.
	gotA, _ := fs.GetFund(ctx, a.ID)
	gotB, _ := fs.GetFund(ctx, b.ID)
	if gotA.Cash != 10 || gotB.Cash != 5 {
		t.Errorf("balances changed by rejected requests: %v, %v", gotA.Cash, gotB.Cash)
	}
	movements, _ := ms.ListMovements(ctx)
	if len(movements) != 0 {
		t.Errorf("expected no movements, got %d", len(movements))
	}
}

func TestCounterpartyNameDefaultsToFundTitle(t *testing.T) {
	fs, ms, _ := newTestServices(t)
	ctx := context.Background()

	a := mustCreateFund(t, fs, "A", 100)
	b := mustCreateFund(t, fs, "Savings", 0)

	_, err := ms.Record(ctx, MovementInput{
		ActiveFundID:   a.ID,
		Direction:      core.Out,
		CounterpartyID: &b.ID,
		Title:          "t",
		Description:    "d",
		AmountText:     "1",
	})
	if err != nil {
		t.Fatalf("record without explicit counterparty name: %v", err)
	}
}

func TestDeleteSkipsMissingFundSides(t *testing.T) {
	fs, ms, _ := newTestServices(t)
	ctx := context.Background()

	a := mustCreateFund(t, fs, "A", 100)
	b := mustCreateFund(t, fs, "B", 0)

	m, err := ms.Record(ctx, MovementInput{
		ActiveFundID:   a.ID,
		Direction:      core.Out,
		CounterpartyID: &b.ID,
		Title:          "t",
		Description:    "d",
		AmountText:     "40",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	// A disappears; reversing the movement restores only B.
	if err := fs.DeleteFund(ctx, a.ID); err != nil {
		t.Fatalf("delete fund: %v", err)
	}
	if err := ms.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete movement: %v", err)
	}
	gotB, _ := fs.GetFund(ctx, b.ID)
	if gotB.Cash != 0 {
		t.Errorf("B balance after reversal = %v, want 0", gotB.Cash)
	}
}

func TestDeleteUnknownMovement(t *testing.T) {
	_, ms, _ := newTestServices(t)
	if err := ms.Delete(context.Background(), 99); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMovementChangesArePublished(t *testing.T) {
	fs, ms, pub := newTestServices(t)
	ctx := context.Background()

	a := mustCreateFund(t, fs, "A", 100)
	m, err := ms.Record(ctx, MovementInput{
		ActiveFundID:     a.ID,
		Direction:        core.Out,
		CounterpartyName: "Shop",
		Title:            "t",
		Description:      "d",
		AmountText:       "1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ms.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []publishedChange{
		{"fund", "insert", a.ID},
		{"movement", "insert", m.ID},
		{"movement", "delete", m.ID},
	}
	if len(pub.changes) != len(want) {
		t.Fatalf("expected %d published changes, got %d: %+v", len(want), len(pub.changes), pub.changes)
	}
	for i, w := range want {
		if pub.changes[i] != w {
			t.Errorf("change %d = %+v, want %+v", i, pub.changes[i], w)
		}
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	fs, ms, pub := newTestServices(t)
	pub.err = errors.New("broker down")
	ctx := context.Background()

	a := mustCreateFund(t, fs, "A", 100)
	if _, err := ms.Record(ctx, MovementInput{
		ActiveFundID:     a.ID,
		Direction:        core.Out,
		CounterpartyName: "Shop",
		Title:            "t",
		Description:      "d",
		AmountText:       "1",
	}); err != nil {
		t.Fatalf("record should succeed despite publish failure: %v", err)
	}
}

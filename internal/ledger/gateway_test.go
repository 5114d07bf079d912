package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

func validPair() (*models.ServiceRecord, *models.TransactionRecord) {
	scheduled := time.Date(2026, 8, 15, 8, 0, 0, 0, time.UTC)
	service := &models.ServiceRecord{
		OrderID:              "ORD-1",
		ClientCode:           45,
		BranchCode:           10,
		Concept:              models.ConceptOfficeProvision,
		TransferKind:         models.TransferKindNormal,
		RequestedAt:          time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC),
		State:                models.StateRequested,
		OriginPoint:          "FK1",
		OriginIndicator:      models.IndicatorFund,
		DestinationPoint:     "PK75",
		DestinationIndicator: models.IndicatorPoint,
		BanknoteValue:        decimal.NewFromInt(1000000),
		CoinValue:            decimal.NewFromInt(20000),
		TotalValue:           decimal.NewFromInt(1020000),
		ScheduledFor:         &scheduled,
		Modality:             models.DefaultModality,
		RegisteredBy:         models.RegistrationUserID,
	}
	transaction := &models.TransactionRecord{
		BranchCode:        10,
		RegisteredAt:      time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC),
		RegisteredBy:      models.RegistrationUserID,
		Currency:          "COP",
		Kind:              models.KindProvision,
		DeclaredBanknotes: decimal.NewFromInt(1000000),
		DeclaredCoins:     decimal.NewFromInt(20000),
		DeclaredTotal:     decimal.NewFromInt(1020000),
		State:             models.TxRegistered,
	}
	return service, transaction
}

func TestMemoryGatewayInsertThenDuplicate(t *testing.T) {
	g := NewMemoryGateway()
	service, txn := validPair()

	result, err := g.Insert(context.Background(), service, txn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != Inserted || result.OrderRef == "" {
		t.Errorf("first insert = %s ref %q", result.Outcome, result.OrderRef)
	}

	// Re-submitting the same order id must not write a second row.
	result, err = g.Insert(context.Background(), service, txn)
	if err != nil {
		t.Fatalf("unexpected error on duplicate: %v", err)
	}
	if result.Outcome != AlreadyExists {
		t.Errorf("duplicate insert = %s, want already_exists", result.Outcome)
	}
	if g.Count() != 1 {
		t.Errorf("stored services = %d, want 1", g.Count())
	}
}

func TestGatewayBranchMismatch(t *testing.T) {
	g := NewMemoryGateway()
	service, txn := validPair()
	service.BranchCode = 10
	txn.BranchCode = 20

	_, err := g.Insert(context.Background(), service, txn)
	pe, ok := errors.AsPipelineError(err)
	if !ok || pe.Code != errors.CodeBranchMismatch {
		t.Fatalf("expected branch mismatch, got %v", err)
	}

	// The violating pair never reaches storage.
	if g.Count() != 0 {
		t.Errorf("stored services = %d, want 0", g.Count())
	}
}

func TestGatewayRejectsInvalidPair(t *testing.T) {
	g := NewMemoryGateway()
	service, txn := validPair()
	service.OrderID = ""

	_, err := g.Insert(context.Background(), service, txn)
	if !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestMemoryGatewayFailOrders(t *testing.T) {
	g := NewMemoryGateway()
	g.FailOrders = map[string]bool{"ORD-1": true}
	service, txn := validPair()

	_, err := g.Insert(context.Background(), service, txn)
	pe, ok := errors.AsPipelineError(err)
	if !ok || pe.Code != errors.CodeWriteFailed {
		t.Errorf("expected write failure, got %v", err)
	}
}

func TestInsertArgsShape(t *testing.T) {
	service, txn := validPair()
	args := insertArgs(service, txn)

	if len(args) != 69 {
		t.Fatalf("insert routine takes 69 parameters, got %d", len(args))
	}
	if args[0] != "ORD-1" {
		t.Errorf("arg 1 = %v, want the order id", args[0])
	}
	if args[3] != 10 {
		t.Errorf("arg 4 = %v, want the branch code", args[3])
	}
	if args[63] != string(models.TxRegistered) {
		t.Errorf("arg 64 = %v, want the transaction state", args[63])
	}

	// Lifecycle fields the ingestion never sets must travel as NULL.
	for _, pos := range []int{15, 16, 19, 20, 21, 22, 23, 24, 25, 26} {
		if args[pos] != nil {
			t.Errorf("arg %d = %v, want nil", pos+1, args[pos])
		}
	}
}

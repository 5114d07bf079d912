// Package ledger writes canonical service/transaction pairs into the ledger,
// exactly once per business order id.
package ledger

import (
	"context"
	"sync"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

// Outcome says what the gateway did with a pair
type Outcome int

const (
	// Inserted means the pair was written and an order reference generated
	Inserted Outcome = iota
	// AlreadyExists means the business order id was present and nothing
	// was written
	AlreadyExists
)

// String returns the outcome name
func (o Outcome) String() string {
	if o == AlreadyExists {
		return "already_exists"
	}
	return "inserted"
}

// Result is the gateway's answer for one pair. OrderRef is set only on
// Inserted.
type Result struct {
	Outcome  Outcome
	OrderRef string
}

// Gateway inserts pairs idempotently. Re-submitting a file must never
// produce duplicate rows; an existing order id reports AlreadyExists and is
// not an error. Implementations must be safe for concurrent use.
type Gateway interface {
	Insert(ctx context.Context, service *models.ServiceRecord, transaction *models.TransactionRecord) (Result, error)
}

// checkPair enforces the cross-record invariants no backend may skip. A
// violating pair never reaches a write.
func checkPair(service *models.ServiceRecord, transaction *models.TransactionRecord) error {
	if service.BranchCode != transaction.BranchCode {
		return errors.ValidationError(errors.CodeBranchMismatch, "branch", service.OrderID, nil).
			WithContext("service_branch", service.BranchCode).
			WithContext("transaction_branch", transaction.BranchCode)
	}
	if err := service.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "service", service.OrderID, err)
	}
	if err := transaction.Validate(); err != nil {
		return errors.ValidationError(errors.CodeInvalidData, "transaction", service.OrderID, err)
	}
	return nil
}

// MemoryGateway keeps inserted pairs in memory. Used by tests and dry runs.
type MemoryGateway struct {
	mu       sync.Mutex
	services map[string]*models.ServiceRecord
	refs     map[string]string
	nextRef  int

	// FailOrders makes Insert fail for the listed order ids, to exercise
	// partial-failure handling.
	FailOrders map[string]bool
}

// NewMemoryGateway creates an empty in-memory gateway
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		services: make(map[string]*models.ServiceRecord),
		refs:     make(map[string]string),
	}
}

// Insert stores the pair unless the order id is already present
func (g *MemoryGateway) Insert(_ context.Context, service *models.ServiceRecord, transaction *models.TransactionRecord) (Result, error) {
	if err := checkPair(service, transaction); err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailOrders[service.OrderID] {
		return Result{}, errors.LedgerError(errors.CodeWriteFailed, service.OrderID, nil)
	}

	if _, exists := g.services[service.OrderID]; exists {
		return Result{Outcome: AlreadyExists}, nil
	}

	g.nextRef++
	ref := orderRef(g.nextRef)
	g.services[service.OrderID] = service
	g.refs[service.OrderID] = ref

	return Result{Outcome: Inserted, OrderRef: ref}, nil
}

// Count returns the number of stored services
func (g *MemoryGateway) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.services)
}

// Service returns a stored service by order id, or nil
func (g *MemoryGateway) Service(orderID string) *models.ServiceRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.services[orderID]
}

func orderRef(n int) string {
	digits := [7]byte{'S', '-', '0', '0', '0', '0', '0'}
	for i := 6; i >= 2 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[:])
}

// Package mapping converts channel-specific raw records into the canonical
// service/transaction pair the ledger accepts. One raw record maps to exactly
// one pair; the pair is immutable once built.
package mapping

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cash-interchange-service/internal/denom"
	"cash-interchange-service/internal/models"
	"cash-interchange-service/internal/resolve"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// defaultScheduleHour is used when the file carries no service time
const defaultScheduleHour = 8

// Mapper builds canonical pairs from raw records. Safe for concurrent use;
// resolution goes through the shared Resolver and nothing else is stateful.
type Mapper struct {
	resolver resolve.Resolver
	logger   logger.Logger
	now      func() time.Time
}

// NewMapper creates a canonical mapper over the given resolver
func NewMapper(resolver resolve.Resolver, log logger.Logger) *Mapper {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Mapper{
		resolver: resolver,
		logger:   log.WithComponent("canonical_mapper"),
		now:      time.Now,
	}
}

// Map resolves the record's client and point and produces the canonical
// pair. Every returned error is categorized; resolution failures keep the
// raw code so the novelty report can show it.
func (m *Mapper) Map(ctx context.Context, raw *models.RawRecord) (*models.ServiceRecord, *models.TransactionRecord, error) {
	clientCode, err := m.clientCode(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	point, err := m.resolver.Resolve(ctx, raw.PointCode, clientCode)
	if err != nil {
		return nil, nil, err
	}

	concept := conceptFor(raw)
	totals := m.aggregate(raw, concept)

	now := m.now()
	requestedAt := m.requestedAt(raw, now)
	scheduledFor := m.scheduledFor(raw, requestedAt)

	orderID := strings.TrimSpace(raw.OrderID)
	if orderID == "" {
		orderID = mintOrderID(clientCode, now, raw.Line)
	}

	origin, originInd, dest, destInd := resolve.Endpoints(point, concept)

	service := &models.ServiceRecord{
		OrderID:      orderID,
		ClientCode:   point.ClientCode,
		BranchCode:   point.BranchCode,
		Concept:      concept,
		TransferKind: models.TransferKindNormal,
		RequestedAt:  requestedAt,
		State:        models.StateRequested,

		OriginPoint:          origin,
		OriginIndicator:      originInd,
		DestinationPoint:     dest,
		DestinationIndicator: destInd,

		BanknoteValue: totals.Banknotes,
		CoinValue:     totals.Coins,
		TotalValue:    totals.Total(),

		ExternalID:   strings.TrimSpace(raw.ExternalID),
		ScheduledFor: &scheduledFor,
		Modality:     models.DefaultModality,
		Observation:  m.observation(raw, concept),
		KitCount:     raw.KitQuantity,
		SourceFile:   raw.SourceFile,
		RegisteredBy: models.RegistrationUserID,
	}

	transaction := &models.TransactionRecord{
		BranchCode:   point.BranchCode,
		RegisteredAt: now,
		RegisteredBy: models.RegistrationUserID,
		Currency:     models.CurrencyFromFileCode(raw.CurrencyCode),
		Kind:         concept.TransactionKind(),

		DeclaredBanknotes: totals.Banknotes,
		DeclaredCoins:     totals.Coins,
		DeclaredTotal:     totals.Total(),

		State: transactionStateFor(raw),
	}
	if transaction.State == models.TxProvisionOngoing {
		transaction.Note = service.Observation
	}

	if err := service.Validate(); err != nil {
		return nil, nil, errors.ValidationError(errors.CodeInvalidData, "service", orderID, err)
	}
	if err := transaction.Validate(); err != nil {
		return nil, nil, errors.ValidationError(errors.CodeInvalidData, "transaction", orderID, err)
	}

	m.logger.WithFields(logger.Fields{
		"order_id": orderID,
		"client":   point.ClientCode,
		"concept":  int(concept),
		"total":    service.TotalValue.String(),
	}).Debug("Record mapped")

	return service, transaction, nil
}

// clientCode derives the owning client. Short numeric hints are the client
// code itself; longer numeric hints are a tax id and go through the
// reference database.
func (m *Mapper) clientCode(ctx context.Context, raw *models.RawRecord) (int, error) {
	hint := strings.TrimSpace(raw.ClientHint)
	if hint == "" {
		return 0, errors.ValidationError(errors.CodeMissingField, "client", raw.SourceFile,
			fmt.Errorf("record carries no client hint"))
	}

	if code, err := strconv.Atoi(hint); err == nil && code > 0 && len(hint) <= 4 {
		return code, nil
	}

	return m.resolver.ClientByTaxID(ctx, hint)
}

// aggregate sums the record's denomination slots and pre-bucketed kit values
// into the two buckets. Collection orders are created with zero monetary
// values; the declared amount survives only in the observation.
func (m *Mapper) aggregate(raw *models.RawRecord, concept models.Concept) denom.Totals {
	if concept.IsCollection() {
		return denom.NewTotals()
	}

	totals := denom.Aggregate(raw.Denominations)
	if !raw.KitBanknoteValue.IsZero() {
		totals = totals.Add(denom.Banknote, raw.KitBanknoteValue)
	}
	if !raw.KitCoinValue.IsZero() {
		totals = totals.Add(denom.Coin, raw.KitCoinValue)
	}
	return totals
}

// requestedAt keeps the file's request date when it carries one, with the
// current time of day; otherwise the moment of mapping.
func (m *Mapper) requestedAt(raw *models.RawRecord, now time.Time) time.Time {
	for _, field := range []string{"request_date", "generatedOn"} {
		value := raw.Field(field)
		if value == "" {
			continue
		}
		if date, err := models.ParseDate(value); err == nil {
			return models.CombineDateTime(date, now)
		}
	}
	return now
}

// scheduledFor derives the service schedule from the record's date and time,
// falling back to the request date at the default hour
func (m *Mapper) scheduledFor(raw *models.RawRecord, requestedAt time.Time) time.Time {
	date := requestedAt
	if raw.ServiceDate != "" {
		if parsed, err := models.ParseDate(raw.ServiceDate); err == nil {
			date = parsed
		} else {
			m.logger.WithFields(logger.Fields{
				"file":  raw.SourceFile,
				"line":  raw.Line,
				"value": raw.ServiceDate,
			}).Warn("Unparseable service date, scheduling for the request date")
		}
	}

	clock := time.Date(0, 1, 1, defaultScheduleHour, 0, 0, 0, time.UTC)
	if raw.ServiceTime != "" {
		if parsed, err := models.ParseTimeOfDay(raw.ServiceTime); err == nil {
			clock = parsed
		}
	}

	return models.CombineDateTime(date, clock)
}

// observation assembles the stored observation, appending the declared
// collection value when the monetary fields were zeroed, capped at the
// column limit
func (m *Mapper) observation(raw *models.RawRecord, concept models.Concept) string {
	obs := strings.TrimSpace(raw.Observation)

	if concept.IsCollection() && raw.HasCollectionValue && !raw.CollectionValue.IsZero() {
		declared := "Valor declarado: " + raw.CollectionValue.String()
		if obs == "" {
			obs = declared
		} else {
			obs = obs + " | " + declared
		}
	}

	if len(obs) > models.MaxObservationLength {
		obs = obs[:models.MaxObservationLength]
	}
	return obs
}

// conceptFor decides the service concept when the normalizer left it open.
// A pre-summed collection value or a collection wording wins; ATM wording
// selects the ATM provision concept; everything else is an office provision.
func conceptFor(raw *models.RawRecord) models.Concept {
	if raw.Concept != 0 {
		return raw.Concept
	}

	kind := strings.ToUpper(raw.OrderType + " " + raw.Field("modality") + " " + raw.Field("quality"))
	switch {
	case raw.HasCollectionValue:
		return models.ConceptCollection
	case strings.Contains(kind, "RECOLECC"):
		return models.ConceptCollection
	case strings.Contains(kind, "ATM"), strings.Contains(kind, "CAJERO"):
		return models.ConceptATMProvision
	default:
		return models.ConceptOfficeProvision
	}
}

// transactionStateFor honors a layout-selected initial workflow state;
// everything else starts at treasury registration
func transactionStateFor(raw *models.RawRecord) models.TransactionState {
	if state := models.TransactionState(raw.Field("transaction_state")); state.IsValid() {
		return state
	}
	return models.TxRegistered
}

// mintOrderID builds a business order id for rows whose channel supplies
// none: client code, timestamp to the microsecond, and the row index
func mintOrderID(clientCode int, now time.Time, line int) string {
	return fmt.Sprintf("%d%s%06d%03d",
		clientCode,
		now.Format("20060102150405"),
		now.Nanosecond()/1000,
		line%1000)
}

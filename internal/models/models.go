package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel identifies which interchange format a record came from
type Channel string

const (
	// ChannelXML is the batch XML order/remit feed
	ChannelXML Channel = "xml"
	// ChannelText is the fixed-layout multi-record-type text feed
	ChannelText Channel = "text"
	// ChannelSheet is the client-specific spreadsheet feed
	ChannelSheet Channel = "sheet"
)

// String returns the string representation of the channel
func (c Channel) String() string {
	return string(c)
}

// IsValid checks if the channel is one of the three known feeds
func (c Channel) IsValid() bool {
	return c == ChannelXML || c == ChannelText || c == ChannelSheet
}

// Indicator marks whether a service endpoint is a client, a point, or a
// central fund
type Indicator string

const (
	IndicatorClient Indicator = "C"
	IndicatorPoint  Indicator = "P"
	IndicatorFund   Indicator = "F"
)

// IsValid checks if the indicator is one of the three known values
func (i Indicator) IsValid() bool {
	return i == IndicatorClient || i == IndicatorPoint || i == IndicatorFund
}

// Concept is the service concept code carried by the ledger
type Concept int

const (
	// ConceptCollection picks cash up from a point
	ConceptCollection Concept = 1
	// ConceptOfficeProvision delivers cash to an office
	ConceptOfficeProvision Concept = 2
	// ConceptATMProvision delivers cash to an ATM
	ConceptATMProvision Concept = 3
)

// IsProvision reports whether the concept delivers cash to a point
func (c Concept) IsProvision() bool {
	return c == ConceptOfficeProvision || c == ConceptATMProvision
}

// IsCollection reports whether the concept picks cash up from a point
func (c Concept) IsCollection() bool {
	return c == ConceptCollection
}

// OrderPrefix returns the two-letter prefix used when minting order ids
func (c Concept) OrderPrefix() string {
	switch c {
	case ConceptCollection:
		return "RC"
	case ConceptOfficeProvision:
		return "PV"
	case ConceptATMProvision:
		return "PR"
	default:
		return ""
	}
}

// TransactionKind returns the declared-value transaction kind for the concept
func (c Concept) TransactionKind() TransactionKind {
	if c.IsProvision() {
		return KindProvision
	}
	return KindCollection
}

// ServiceState is the ledger's service state code. The range is 0-7; new
// services are always created as StateRequested and the ledger promotes them.
type ServiceState int

const (
	StateRequested ServiceState = 0
	StateConfirmed ServiceState = 1
	StateRejected  ServiceState = 2
	StateScheduled ServiceState = 3
	StateAttention ServiceState = 4
	StateFinished  ServiceState = 5
	StateCancelled ServiceState = 6
	StatePending   ServiceState = 7
)

// IsValid checks if the state is within the ledger's range
func (s ServiceState) IsValid() bool {
	return s >= StateRequested && s <= StatePending
}

// TransactionState is the declared-value workflow state, a fixed ten-value
// enumeration on the ledger side
type TransactionState string

const (
	TxRegistered       TransactionState = "RegistroTesoreria"
	TxQueuedForCount   TransactionState = "EncoladoParaConteo"
	TxCounting         TransactionState = "Conteo"
	TxPendingReview    TransactionState = "PendienteRevision"
	TxApproved         TransactionState = "Aprobado"
	TxRejected         TransactionState = "Rechazado"
	TxCancelled        TransactionState = "Cancelado"
	TxProvisionOngoing TransactionState = "ProvisionEnProceso"
	TxReadyForDelivery TransactionState = "ListoParaEntrega"
	TxDelivered        TransactionState = "Entregado"
)

// IsValid checks if the state belongs to the workflow enumeration
func (t TransactionState) IsValid() bool {
	switch t {
	case TxRegistered, TxQueuedForCount, TxCounting, TxPendingReview,
		TxApproved, TxRejected, TxCancelled, TxProvisionOngoing,
		TxReadyForDelivery, TxDelivered:
		return true
	}
	return false
}

// TransactionKind is the declared-value transaction kind
type TransactionKind string

const (
	KindCollection TransactionKind = "RC"
	KindProvision  TransactionKind = "PV"
)

// IsValid checks if the kind is one of the two accepted values
func (k TransactionKind) IsValid() bool {
	return k == KindCollection || k == KindProvision
}

// Fixed values every inserted pair carries
const (
	// TransferKindNormal is the only transfer kind produced by file ingestion
	TransferKindNormal = "N"

	// DefaultModality marks on-demand services
	DefaultModality = "2"

	// MaxObservationLength is the ledger column limit for observations
	MaxObservationLength = 500

	// RegistrationUserID is the system user that owns file-originated inserts
	RegistrationUserID = "e5926e18-33b1-468c-a979-e4e839a86f30"
)

// CurrencyFromFileCode maps the numeric currency code some partners send to
// the ISO code the ledger stores. Unknown codes default to COP.
func CurrencyFromFileCode(code int) string {
	switch code {
	case 1, 2:
		return "COP"
	case 3:
		return "USD"
	case 4:
		return "CAD"
	case 5, 6, 24:
		return "EUR"
	case 7:
		return "CHF"
	case 8:
		return "JPY"
	case 9:
		return "GBP"
	default:
		return "COP"
	}
}

// DenominationCount is one denomination slot extracted from an input row
type DenominationCount struct {
	Code     string          `json:"code"`     // vocabulary code, e.g. "50000AD"
	Unit     decimal.Decimal `json:"unit"`     // unit value of the denomination
	Quantity decimal.Decimal `json:"quantity"` // declared count
	Coin     bool            `json:"coin"`     // slot explicitly flagged as coin
}

// Value returns quantity times unit value
func (d DenominationCount) Value() decimal.Decimal {
	return d.Quantity.Mul(d.Unit)
}

// RawRecord is the channel-specific bag of fields extracted from one input
// row or element. It is created by a format normalizer and consumed exactly
// once by the canonical mapper; it is never persisted.
type RawRecord struct {
	Channel    Channel `json:"channel"`
	SourceFile string  `json:"source_file"`
	Line       int     `json:"line"`

	OrderID     string  `json:"order_id,omitempty"`    // business id when the channel supplies one
	ClientHint  string  `json:"client_hint,omitempty"` // client code as written in the file
	PointCode   string  `json:"point_code"`            // raw point code, possibly composite
	PointName   string  `json:"point_name,omitempty"`
	City        string  `json:"city,omitempty"`
	ServiceDate string  `json:"service_date"` // raw date text, format depends on channel
	ServiceTime string  `json:"service_time,omitempty"`
	Concept     Concept `json:"concept,omitempty"` // zero until mapping decides
	OrderType   string  `json:"order_type,omitempty"`
	Observation string  `json:"observation,omitempty"`
	ExternalID  string  `json:"external_id,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	RouteType   string  `json:"route_type,omitempty"`

	Denominations []DenominationCount `json:"denominations,omitempty"`

	// Pre-summed collection value carried by some spreadsheet layouts.
	CollectionValue    decimal.Decimal `json:"collection_value,omitempty"`
	HasCollectionValue bool            `json:"has_collection_value,omitempty"`

	// Kit-based layouts pre-aggregate kit values into buckets because kit
	// unit values are configured per file, not per denomination.
	KitQuantity      int             `json:"kit_quantity,omitempty"`
	KitBanknoteValue decimal.Decimal `json:"kit_banknote_value,omitempty"`
	KitCoinValue     decimal.Decimal `json:"kit_coin_value,omitempty"`

	// Numeric partner currency code, zero when the file carries none.
	CurrencyCode int `json:"currency_code,omitempty"`

	// Extra keeps channel fields the mapper reads by name.
	Extra map[string]string `json:"extra,omitempty"`
}

// Field returns a named extra field, trimmed, or "" when absent
func (r *RawRecord) Field(name string) string {
	if r.Extra == nil {
		return ""
	}
	return strings.TrimSpace(r.Extra[name])
}

// ResolvedPoint is the result of code resolution. PointKey is always set;
// FundKey is set only when the point has an associated central fund.
// Resolved per record, never cached across files.
type ResolvedPoint struct {
	ClientCode int    `json:"client_code"`
	BranchCode int    `json:"branch_code"`
	PointKey   string `json:"point_key"`
	FundKey    string `json:"fund_key,omitempty"`
}

// HasFund reports whether the point has an associated central fund
func (p ResolvedPoint) HasFund() bool {
	return p.FundKey != ""
}

// ServiceRecord is the canonical representation of one requested cash
// movement, mirroring the ledger's service table. Constructed once by the
// canonical mapper, immutable thereafter, consumed exactly once by the
// insertion gateway.
type ServiceRecord struct {
	OrderID      string       `json:"order_id"` // business order id, globally unique
	ClientCode   int          `json:"client_code"`
	BranchCode   int          `json:"branch_code"`
	Concept      Concept      `json:"concept"`
	TransferKind string       `json:"transfer_kind"`
	RequestedAt  time.Time    `json:"requested_at"` // request date and time
	State        ServiceState `json:"state"`

	OriginPoint          string    `json:"origin_point"`
	OriginIndicator      Indicator `json:"origin_indicator"`
	DestinationPoint     string    `json:"destination_point"`
	DestinationIndicator Indicator `json:"destination_indicator"`

	Failed bool `json:"failed"` // always false at creation

	BanknoteValue decimal.Decimal `json:"banknote_value"`
	CoinValue     decimal.Decimal `json:"coin_value"`
	TotalValue    decimal.Decimal `json:"total_value"`

	ExternalID   string     `json:"external_id,omitempty"` // client-supplied order reference
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Modality     string     `json:"modality"`
	Observation  string     `json:"observation,omitempty"`
	KitCount     int        `json:"kit_count,omitempty"`
	CoinBagCount int        `json:"coin_bag_count,omitempty"`
	SourceFile   string     `json:"source_file,omitempty"`
	RegisteredBy string     `json:"registered_by"`
}

// Validate performs basic validation on the ServiceRecord
func (s *ServiceRecord) Validate() error {
	if strings.TrimSpace(s.OrderID) == "" {
		return fmt.Errorf("order id cannot be empty")
	}

	if s.ClientCode <= 0 {
		return fmt.Errorf("client code must be greater than 0, got %d", s.ClientCode)
	}

	if s.BranchCode <= 0 {
		return fmt.Errorf("branch code must be greater than 0, got %d", s.BranchCode)
	}

	if s.Concept <= 0 {
		return fmt.Errorf("concept code must be greater than 0, got %d", s.Concept)
	}

	if s.RequestedAt.IsZero() {
		return fmt.Errorf("request date cannot be zero")
	}

	if !s.State.IsValid() {
		return fmt.Errorf("service state out of range: %d", s.State)
	}

	if strings.TrimSpace(s.OriginPoint) == "" {
		return fmt.Errorf("origin point cannot be empty")
	}

	if strings.TrimSpace(s.DestinationPoint) == "" {
		return fmt.Errorf("destination point cannot be empty")
	}

	if !s.OriginIndicator.IsValid() {
		return fmt.Errorf("invalid origin indicator: %s", s.OriginIndicator)
	}

	if !s.DestinationIndicator.IsValid() {
		return fmt.Errorf("invalid destination indicator: %s", s.DestinationIndicator)
	}

	if s.BanknoteValue.IsNegative() || s.CoinValue.IsNegative() || s.TotalValue.IsNegative() {
		return fmt.Errorf("monetary values cannot be negative")
	}

	if !s.TotalValue.Equal(s.BanknoteValue.Add(s.CoinValue)) {
		return fmt.Errorf("total value %s does not equal banknotes %s plus coins %s",
			s.TotalValue, s.BanknoteValue, s.CoinValue)
	}

	if s.Concept.IsCollection() && !s.TotalValue.IsZero() {
		return fmt.Errorf("collection orders must carry zero monetary values at creation")
	}

	if len(s.Observation) > MaxObservationLength {
		return fmt.Errorf("observation exceeds %d characters", MaxObservationLength)
	}

	return nil
}

// IsProvision reports whether the service delivers cash to a point
func (s *ServiceRecord) IsProvision() bool {
	return s.Concept.IsProvision()
}

// String returns a string representation of the ServiceRecord
func (s *ServiceRecord) String() string {
	return fmt.Sprintf("ServiceRecord{Order: %s, Client: %d, Branch: %d, Concept: %d, Total: %s}",
		s.OrderID, s.ClientCode, s.BranchCode, s.Concept, s.TotalValue.String())
}

// TransactionRecord is the declared-value detail that accompanies a
// ServiceRecord. The two are always created and inserted as a pair; the
// branch code must equal the service's branch code.
type TransactionRecord struct {
	BranchCode   int             `json:"branch_code"`
	RegisteredAt time.Time       `json:"registered_at"`
	RegisteredBy string          `json:"registered_by"`
	Currency     string          `json:"currency"` // ISO code, 3 letters
	Kind         TransactionKind `json:"kind"`

	DeclaredBags      int `json:"declared_bags"`
	DeclaredEnvelopes int `json:"declared_envelopes"`
	DeclaredChecks    int `json:"declared_checks"`
	DeclaredDocuments int `json:"declared_documents"`

	DeclaredBanknotes      decimal.Decimal `json:"declared_banknotes"`
	DeclaredCoins          decimal.Decimal `json:"declared_coins"`
	DeclaredDocumentValues decimal.Decimal `json:"declared_document_values"`
	DeclaredTotal          decimal.Decimal `json:"declared_total"`

	State TransactionState `json:"state"`

	RouteCode      string `json:"route_code,omitempty"`
	ManifestNumber int    `json:"manifest_number,omitempty"`
	Note           string `json:"note,omitempty"`
}

// Validate performs basic validation on the TransactionRecord
func (t *TransactionRecord) Validate() error {
	if t.BranchCode <= 0 {
		return fmt.Errorf("branch code must be greater than 0, got %d", t.BranchCode)
	}

	if t.RegisteredAt.IsZero() {
		return fmt.Errorf("registration timestamp cannot be zero")
	}

	if strings.TrimSpace(t.RegisteredBy) == "" {
		return fmt.Errorf("registering user cannot be empty")
	}

	if len(t.Currency) != 3 || !isAlpha(t.Currency) {
		return fmt.Errorf("currency must be 3 letters, got %q", t.Currency)
	}

	if !t.Kind.IsValid() {
		return fmt.Errorf("invalid transaction kind: %s", t.Kind)
	}

	if !t.State.IsValid() {
		return fmt.Errorf("invalid transaction state: %s", t.State)
	}

	if t.DeclaredBags < 0 || t.DeclaredEnvelopes < 0 || t.DeclaredChecks < 0 || t.DeclaredDocuments < 0 {
		return fmt.Errorf("declared quantities cannot be negative")
	}

	if t.DeclaredBanknotes.IsNegative() || t.DeclaredCoins.IsNegative() ||
		t.DeclaredDocumentValues.IsNegative() || t.DeclaredTotal.IsNegative() {
		return fmt.Errorf("declared values cannot be negative")
	}

	return nil
}

// String returns a string representation of the TransactionRecord
func (t *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{Branch: %d, Kind: %s, State: %s, Total: %s}",
		t.BranchCode, t.Kind, t.State, t.DeclaredTotal.String())
}

// AckStatus is the per-record outcome sent back to the partner
type AckStatus string

const (
	// AckSuccess marks a record inserted or already present in the ledger
	AckSuccess AckStatus = "1"
	// AckError marks a record that failed parsing, mapping, or insertion
	AckError AckStatus = "2"
)

// AckLine is one acknowledgement line: business id plus outcome
type AckLine struct {
	ID     string    `json:"id"`
	Status AckStatus `json:"status"`
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

package mapping

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/denom"
	"cash-interchange-service/internal/models"
	"cash-interchange-service/internal/normalize"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// LayoutKind selects the spreadsheet layout for a client
type LayoutKind string

const (
	// LayoutStandard covers per-denomination columns, GAVETA cassette
	// columns, and KIT quantity columns, auto-detected per sheet.
	LayoutStandard LayoutKind = "standard"
	// LayoutKitBased covers emergency kit files keyed by ID BCT and
	// COD. UNICO, with kit composition parsed from the rows above the header.
	LayoutKitBased LayoutKind = "kit_based"
	// LayoutCassetteBased covers the partner export with dynamic numeric
	// denomination columns and a quality column.
	LayoutCassetteBased LayoutKind = "cassette_based"
)

// ParseLayoutKind validates a configured layout name
func ParseLayoutKind(s string) (LayoutKind, error) {
	kind := LayoutKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case LayoutStandard, LayoutKitBased, LayoutCassetteBased:
		return kind, nil
	}
	return "", fmt.Errorf("unknown spreadsheet layout %q", s)
}

// NewLayout builds the layout implementation for a client. Kit specs are
// only read by the standard layout; the kit-based layout carries its kit
// composition inside each file.
func NewLayout(kind LayoutKind, clientCode int, kits map[string]denom.KitSpec, log logger.Logger) (normalize.SheetLayout, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	switch kind {
	case LayoutStandard:
		return &standardLayout{clientCode: clientCode, kits: kits, logger: log.WithComponent("layout_standard")}, nil
	case LayoutKitBased:
		return &kitBasedLayout{clientCode: clientCode, logger: log.WithComponent("layout_kit_based")}, nil
	case LayoutCassetteBased:
		return &cassetteBasedLayout{clientCode: clientCode, logger: log.WithComponent("layout_cassette_based")}, nil
	}
	return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "layout", string(kind), nil)
}

func normHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(h))
}

// findColumn returns the first header column containing every given
// fragment, or -1
func findColumn(sheet *normalize.ParsedSheet, fragments ...string) int {
	for i, h := range sheet.Header {
		upper := normHeader(h)
		if upper == "" {
			continue
		}
		match := true
		for _, f := range fragments {
			if !strings.Contains(upper, f) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// cleanCode strips the artifacts spreadsheet exports leave on codes
func cleanCode(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

// ---------------------------------------------------------------------------
// Standard layout

// officeDenominationPattern matches per-denomination column headers such as
// "50000", "2000NF" or "10000NUEVA". Group 1 is the unit value.
var officeDenominationPattern = regexp.MustCompile(`^(\d+)(NF|AF|NUEVA|ANTIGUA)?$`)

// standardBaseColumns are the known non-denomination headers of the
// standard layout
var standardBaseColumns = map[string]bool{
	"FECHA_SOLICITUD": true,
	"FECHA_SERVICIO":  true,
	"FECHA":           true,
	"CODIGO":          true,
	"COD. UNICO":      true,
	"MODALIDAD":       true,
	"VALOR_TOTAL":     true,
	"NUMERO_PEDIDO":   true,
	"OBSERVACION":     true,
}

type standardLayout struct {
	clientCode int
	kits       map[string]denom.KitSpec
	logger     logger.Logger
}

func (l *standardLayout) Name() string { return string(LayoutStandard) }

// Extract dispatches on the sheet's shape: kit quantity columns win, then
// GAVETA cassette columns, then plain per-denomination value columns
func (l *standardLayout) Extract(sheet *normalize.ParsedSheet, row []string, line int) (*models.RawRecord, error) {
	code := sheet.CellByName(row, "CODIGO")
	if code == "" {
		code = sheet.CellByName(row, "COD. UNICO")
	}
	code = cleanCode(code)
	if code == "" {
		return nil, nil
	}

	record := &models.RawRecord{
		Channel:     models.ChannelSheet,
		SourceFile:  sheet.SourceFile,
		Line:        line,
		ClientHint:  fmt.Sprintf("%d", l.clientCode),
		PointCode:   code,
		ServiceDate: firstCell(sheet, row, "FECHA_SERVICIO", "FECHA"),
		Observation: sheet.CellByName(row, "OBSERVACION"),
		ExternalID:  externalOrderRef(sheet.CellByName(row, "NUMERO_PEDIDO")),
		Extra: map[string]string{
			"request_date": sheet.CellByName(row, "FECHA_SOLICITUD"),
			"modality":     sheet.CellByName(row, "MODALIDAD"),
		},
	}

	var detail []string
	switch {
	case findColumn(sheet, "KIT_", "CANT") >= 0:
		detail = l.extractKits(sheet, row, record)
		// Kit files are change provisions regardless of the modality text.
		record.Concept = models.ConceptOfficeProvision
	case sheet.Column("GAVETA_1") >= 0:
		detail = l.extractCassettes(sheet, row, record)
		record.Extra["quality"] = "ATM"
	default:
		l.extractOfficeValues(sheet, row, record)
	}

	if len(detail) > 0 {
		record.Observation = strings.TrimSpace(record.Observation + " || Detalle: " + strings.Join(detail, " | "))
	}

	return record, nil
}

// extractOfficeValues reads per-denomination value columns. Cells carry
// values, not counts, so the slot quantity is value divided by unit.
func (l *standardLayout) extractOfficeValues(sheet *normalize.ParsedSheet, row []string, record *models.RawRecord) {
	for i, h := range sheet.Header {
		header := normHeader(h)
		if header == "" || standardBaseColumns[header] {
			continue
		}

		match := officeDenominationPattern.FindStringSubmatch(header)
		if match == nil {
			continue
		}

		unit, err := decimal.NewFromString(match[1])
		if err != nil || unit.IsZero() {
			continue
		}
		value, err := models.ParseAmount(sheet.Cell(row, i))
		if err != nil || !value.IsPositive() {
			continue
		}

		record.Denominations = append(record.Denominations, models.DenominationCount{
			Code:     header,
			Unit:     unit,
			Quantity: value.Div(unit),
		})
	}

	// No denomination breakdown: fall back to the declared total.
	if len(record.Denominations) == 0 {
		if declared, err := models.ParseAmount(sheet.CellByName(row, "VALOR_TOTAL")); err == nil && declared.IsPositive() {
			record.Denominations = append(record.Denominations, models.DenominationCount{
				Code:     "VALOR_TOTAL",
				Unit:     declared,
				Quantity: decimal.NewFromInt(1),
			})
		}
	}
}

// extractCassettes reads GAVETA_i quantity columns paired with DENO_i unit
// columns, up to ten cassettes
func (l *standardLayout) extractCassettes(sheet *normalize.ParsedSheet, row []string, record *models.RawRecord) []string {
	var detail []string

	for i := 1; i <= 10; i++ {
		qtyCol := sheet.Column(fmt.Sprintf("GAVETA_%d", i))
		unitCol := sheet.Column(fmt.Sprintf("DENO_%d", i))
		if qtyCol < 0 || unitCol < 0 {
			continue
		}

		quantity, err := models.ParseQuantity(sheet.Cell(row, qtyCol))
		if err != nil || quantity <= 0 {
			continue
		}
		unit, err := models.ParseAmount(sheet.Cell(row, unitCol))
		if err != nil || !unit.IsPositive() {
			continue
		}

		record.Denominations = append(record.Denominations, models.DenominationCount{
			Code:     fmt.Sprintf("GAVETA_%d", i),
			Unit:     unit,
			Quantity: decimal.NewFromInt(int64(quantity)),
		})

		kind := sheet.CellByName(row, fmt.Sprintf("TIPO_%d", i))
		if kind != "" {
			detail = append(detail, fmt.Sprintf("G%d(%s): %dx%s", i, normHeader(kind), quantity, unit))
		} else {
			detail = append(detail, fmt.Sprintf("G%d: %dx%s", i, quantity, unit))
		}
	}

	return detail
}

// extractKits reads KIT_i quantity columns against the configured kit
// specs and pre-aggregates values into buckets
func (l *standardLayout) extractKits(sheet *normalize.ParsedSheet, row []string, record *models.RawRecord) []string {
	var detail []string
	totals := denom.NewTotals()

	for i := 1; i <= 20; i++ {
		col := findColumn(sheet, fmt.Sprintf("KIT_%d", i), "CANT")
		if col < 0 {
			continue
		}

		quantity, err := models.ParseQuantity(sheet.Cell(row, col))
		if err != nil || quantity <= 0 {
			continue
		}

		spec, ok := l.kitSpec(i)
		if !ok {
			l.logger.WithFields(logger.Fields{
				"file": sheet.SourceFile,
				"kit":  i,
				"qty":  quantity,
			}).Warn("Kit has a quantity but no configured unit value")
			continue
		}

		totals = denom.AggregateKits(totals, quantity, spec)
		record.KitQuantity += quantity
		detail = append(detail, fmt.Sprintf("K%d(%s):%d", i, strings.ToUpper(string(spec.Type)), quantity))
	}

	record.KitBanknoteValue = totals.Banknotes
	record.KitCoinValue = totals.Coins
	return detail
}

// kitSpec finds the configured spec for kit number i by name match
func (l *standardLayout) kitSpec(i int) (denom.KitSpec, bool) {
	needle := fmt.Sprintf("KIT_%d", i)
	alt := fmt.Sprintf("KIT %d", i)
	for name, spec := range l.kits {
		if strings.Contains(name, needle) || strings.Contains(name, alt) {
			return spec, true
		}
	}
	return denom.KitSpec{}, false
}

// externalOrderRef normalizes the client's own order reference, dropping
// the float artifacts exports add
func externalOrderRef(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "none") {
		return ""
	}
	if dot := strings.Index(s, "."); dot >= 0 {
		s = s[:dot]
	}
	return strings.ToUpper(s)
}

func firstCell(sheet *normalize.ParsedSheet, row []string, names ...string) string {
	for _, name := range names {
		if v := sheet.CellByName(row, name); v != "" {
			return v
		}
	}
	return ""
}

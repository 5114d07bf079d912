package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/internal/normalize"
	"cash-interchange-service/pkg/logger"
)

// cassetteBasedLayout handles the partner export whose denomination columns
// are the unit values themselves. A quality column drives the ATM and coin
// flags; a collection-value column marks the whole sheet as collections.
type cassetteBasedLayout struct {
	clientCode int
	logger     logger.Logger
}

// noiseCellKeywords mark footer and signature rows mixed into the data area
var noiseCellKeywords = []string{
	"TOTAL", "RESUMEN", "NAN", "NONE", "OBSERVACIONES",
	"FIRMA", "AUTORIZADA", "BANCO", "CLIENTE", "NOMBRE", "DENOMINACION",
}

// minDenominationUnit filters numeric headers that are not denominations
const minDenominationUnit = 50

func (l *cassetteBasedLayout) Name() string { return string(LayoutCassetteBased) }

func (l *cassetteBasedLayout) Extract(sheet *normalize.ParsedSheet, row []string, line int) (*models.RawRecord, error) {
	orderCol := findColumn(sheet, "NRO", "SERVICIO")
	codeCol := l.pointColumn(sheet)
	if orderCol < 0 || codeCol < 0 {
		return nil, fmt.Errorf("sheet is missing the service number or point code column")
	}

	orderRef := sheet.Cell(row, orderCol)
	code := cleanCode(sheet.Cell(row, codeCol))
	if cleanCode(orderRef) == "" || code == "" || code == "0" {
		return nil, nil
	}
	if isNoiseCell(orderRef) || isNoiseCell(sheet.Cell(row, codeCol)) {
		return nil, nil
	}

	quality := normHeader(cellAt(sheet, row, findColumn(sheet, "CALIDAD")))
	collectionCol := findColumn(sheet, "VALOR", "RECOLECCI")

	isCollection := collectionCol >= 0 || strings.Contains(quality, "RECOLECCION")
	isATM := strings.Contains(quality, "CAJERO") || strings.Contains(quality, "ATM")
	isCoin := strings.Contains(quality, "MONEDA")

	record := &models.RawRecord{
		Channel:     models.ChannelSheet,
		SourceFile:  sheet.SourceFile,
		Line:        line,
		ClientHint:  fmt.Sprintf("%d", l.clientCode),
		PointCode:   code,
		ExternalID:  externalOrderRef(orderRef),
		ServiceDate: metadataDate(sheet, "FECHA SERVICIO", "FECHA DE SERVICIO"),
		Extra: map[string]string{
			"request_date": metadataDate(sheet, "FECHA SOLICITUD", "FECHA DE SOLICITUD"),
		},
	}

	var detail []string
	switch {
	case isCollection:
		record.Concept = models.ConceptCollection
		if value, err := models.ParseAmount(sheet.Cell(row, collectionCol)); err == nil && value.IsPositive() {
			record.CollectionValue = value
			record.HasCollectionValue = true
		}
	default:
		if isATM {
			record.Concept = models.ConceptATMProvision
		} else {
			record.Concept = models.ConceptOfficeProvision
		}

		for _, dc := range denominationColumns(sheet) {
			quantity, err := models.ParseQuantity(sheet.Cell(row, dc.col))
			if err != nil || quantity <= 0 {
				continue
			}
			record.Denominations = append(record.Denominations, models.DenominationCount{
				Code:     dc.unit.String(),
				Unit:     dc.unit,
				Quantity: decimal.NewFromInt(int64(quantity)),
				Coin:     isCoin,
			})
			detail = append(detail, fmt.Sprintf("%s:%d", dc.unit, quantity))
		}
	}

	obs := quality
	if len(detail) > 0 {
		obs = obs + " | " + strings.Join(detail, "; ")
	}
	record.Observation = strings.TrimSpace(obs)

	return record, nil
}

// pointColumn prefers a column naming the point explicitly over any
// generic code column
func (l *cassetteBasedLayout) pointColumn(sheet *normalize.ParsedSheet) int {
	if col := findColumn(sheet, "PUNTO", "COD"); col >= 0 {
		return col
	}
	return findColumn(sheet, "COD")
}

type denominationColumn struct {
	col  int
	unit decimal.Decimal
}

// denominationColumns detects denomination columns from numeric headers,
// largest unit first
func denominationColumns(sheet *normalize.ParsedSheet) []denominationColumn {
	var cols []denominationColumn

	for i, h := range sheet.Header {
		raw := strings.TrimSpace(strings.ReplaceAll(h, "$", ""))
		raw = strings.TrimSuffix(raw, ".00")
		raw = strings.TrimSuffix(raw, ".0")
		clean := strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", "")
		if clean == "" {
			continue
		}

		value, err := strconv.Atoi(clean)
		if err != nil || value < minDenominationUnit {
			continue
		}
		cols = append(cols, denominationColumn{col: i, unit: decimal.NewFromInt(int64(value))})
	}

	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			if cols[j].unit.GreaterThan(cols[i].unit) {
				cols[i], cols[j] = cols[j], cols[i]
			}
		}
	}
	return cols
}

func isNoiseCell(s string) bool {
	upper := strings.ToUpper(s)
	for _, k := range noiseCellKeywords {
		if strings.Contains(upper, k) {
			return true
		}
	}
	return false
}

// metadataDate reads a date from the sheet's pre-header metadata, accepting
// both plain formats and spelled-out Spanish dates
func metadataDate(sheet *normalize.ParsedSheet, keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(sheet.Metadata[key])
		if value == "" {
			continue
		}
		if t, ok := parseSpelledDate(value); ok {
			return t.Format("2006-01-02")
		}
		return value
	}
	return ""
}

var spanishMonths = map[string]time.Month{
	"ENERO":      time.January,
	"FEBRERO":    time.February,
	"MARZO":      time.March,
	"ABRIL":      time.April,
	"MAYO":       time.May,
	"JUNIO":      time.June,
	"JULIO":      time.July,
	"AGOSTO":     time.August,
	"SEPTIEMBRE": time.September,
	"OCTUBRE":    time.October,
	"NOVIEMBRE":  time.November,
	"DICIEMBRE":  time.December,
}

// parseSpelledDate handles headers such as "Enero 28 de 2026" and
// "28 de Enero de 2026"
func parseSpelledDate(s string) (time.Time, bool) {
	text := strings.ToUpper(strings.TrimSpace(s))
	text = strings.ReplaceAll(text, ",", " ")

	var day, year int
	var month time.Month

	for _, part := range strings.Fields(text) {
		if part == "DE" || part == "DEL" {
			continue
		}
		if m, ok := spanishMonths[part]; ok {
			month = m
			continue
		}
		if v, err := strconv.Atoi(part); err == nil {
			if v > 31 {
				year = v
			} else {
				day = v
			}
		}
	}

	if day == 0 || month == 0 || year == 0 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

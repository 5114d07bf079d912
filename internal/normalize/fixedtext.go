package normalize

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/logger"
)

// Record-type discriminators of the fixed-layout text feed
const (
	textRecordHeader  = "1"
	textRecordDetail  = "2"
	textRecordTrailer = "3"
)

// detailFieldCount is the arity of a type-2 line including the discriminator
const detailFieldCount = 16

// maxDenominationSlots bounds the pivoted denomination slots per business id
const maxDenominationSlots = 8

// Type-2 field positions after the discriminator
const (
	fService = iota + 1
	fCity
	fServiceDate
	fPointCode
	fPointName
	fCategory
	fDrawer
	fDenomination
	fQuantity
	fValue
	fPriority
	fRouteType
	fOrderType
	fValueKind
	fBusinessID
)

// TextNormalizer parses the fixed-layout comma-separated feed. Each type-2
// line carries one denomination/quantity pair; lines are pivoted by business
// id into one RawRecord with up to eight denomination slots before mapping.
type TextNormalizer struct {
	logger logger.Logger
}

// NewTextNormalizer creates a fixed-text normalizer
func NewTextNormalizer(log logger.Logger) *TextNormalizer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &TextNormalizer{logger: log.WithComponent("text_normalizer")}
}

// Channel returns the channel this normalizer serves
func (n *TextNormalizer) Channel() models.Channel {
	return models.ChannelText
}

// Parse reads the file line by line, pivots the detail lines, and returns
// one RawRecord per business id in first-seen order
func (n *TextNormalizer) Parse(ctx context.Context, path string) ([]models.RawRecord, *ParseStats, error) {
	stats := NewParseStats()

	file, err := openValidated(path, n.logger)
	if err != nil {
		return nil, stats, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ','
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var clientTaxID string
	var generatedOn string
	var trailerCount = -1
	detailLines := 0

	pivot := make(map[string]*models.RawRecord)
	order := make([]string, 0)

	for {
		if cancelled(ctx) {
			return nil, stats, ctx.Err()
		}

		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.TotalLines++
			stats.AddError(stats.TotalLines, "line", "", "line does not split", err)
			continue
		}

		stats.TotalLines++
		if isBlank(fields) {
			continue
		}

		switch strings.TrimSpace(fields[0]) {
		case textRecordHeader:
			if len(fields) >= 3 {
				clientTaxID = strings.TrimSpace(fields[1])
				generatedOn = strings.TrimSpace(fields[2])
			} else {
				stats.AddError(stats.TotalLines, "header", strings.Join(fields, ","), "header line too short", nil)
			}

		case textRecordDetail:
			detailLines++
			if err := n.pivotDetail(fields, stats, pivot, &order, path, clientTaxID); err != nil {
				stats.Errors = append(stats.Errors, err)
				stats.ErrorCount++
			}

		case textRecordTrailer:
			if len(fields) >= 2 {
				if count, err := strconv.Atoi(strings.TrimSpace(fields[1])); err == nil {
					trailerCount = count
				}
			}

		default:
			stats.AddError(stats.TotalLines, "record_type", fields[0], "unknown record type", nil)
		}
	}

	if trailerCount >= 0 && trailerCount != detailLines {
		n.logger.WithFields(logger.Fields{
			"file":     path,
			"declared": trailerCount,
			"counted":  detailLines,
		}).Warn("Trailer count does not match detail lines")
	}

	records := make([]models.RawRecord, 0, len(order))
	for _, id := range order {
		record := pivot[id]
		if generatedOn != "" && record.Extra["generatedOn"] == "" {
			record.Extra["generatedOn"] = generatedOn
		}
		stats.RecordsParsed++
		stats.RecordsValid++
		records = append(records, *record)
	}

	if len(records) == 0 {
		return nil, stats, emptyBatchError(path)
	}

	n.logger.WithFields(logger.Fields{
		"file":         path,
		"detail_lines": detailLines,
		"records":      len(records),
		"errors":       stats.ErrorCount,
	}).Info("Text file normalized")

	return records, stats, nil
}

// pivotDetail folds one type-2 line into the record accumulating under its
// business id
func (n *TextNormalizer) pivotDetail(fields []string, stats *ParseStats, pivot map[string]*models.RawRecord, order *[]string, path, clientTaxID string) *RowError {
	if len(fields) != detailFieldCount {
		return &RowError{Line: stats.TotalLines, Field: "detail",
			Value:   strconv.Itoa(len(fields)),
			Message: "detail line has wrong field count"}
	}

	businessID := strings.TrimSpace(fields[fBusinessID])
	if businessID == "" {
		return &RowError{Line: stats.TotalLines, Field: "business_id", Message: "detail line carries no business id"}
	}

	unit, err := decimal.NewFromString(strings.TrimSpace(fields[fDenomination]))
	if err != nil || unit.IsNegative() {
		return &RowError{Line: stats.TotalLines, Field: "denomination",
			Value: fields[fDenomination], Message: "invalid denomination unit value", Err: err}
	}

	quantity, err := decimal.NewFromString(strings.TrimSpace(fields[fQuantity]))
	if err != nil || quantity.IsNegative() {
		return &RowError{Line: stats.TotalLines, Field: "quantity",
			Value: fields[fQuantity], Message: "invalid denomination quantity", Err: err}
	}

	record, seen := pivot[businessID]
	if !seen {
		record = &models.RawRecord{
			Channel:     models.ChannelText,
			SourceFile:  path,
			Line:        stats.TotalLines,
			OrderID:     businessID,
			ClientHint:  clientTaxID,
			City:        strings.TrimSpace(fields[fCity]),
			ServiceDate: strings.TrimSpace(fields[fServiceDate]),
			PointCode:   strings.TrimSpace(fields[fPointCode]),
			PointName:   strings.TrimSpace(fields[fPointName]),
			Priority:    strings.TrimSpace(fields[fPriority]),
			RouteType:   strings.TrimSpace(fields[fRouteType]),
			OrderType:   strings.TrimSpace(fields[fOrderType]),
			Extra: map[string]string{
				"service":  strings.TrimSpace(fields[fService]),
				"category": strings.TrimSpace(fields[fCategory]),
				"drawer":   strings.TrimSpace(fields[fDrawer]),
			},
		}
		pivot[businessID] = record
		*order = append(*order, businessID)
	}

	if len(record.Denominations) >= maxDenominationSlots {
		n.logger.WithFields(logger.Fields{
			"file":        path,
			"business_id": businessID,
			"line":        stats.TotalLines,
		}).Warn("Denomination slots exhausted, dropping extra line")
		return nil
	}

	coin := strings.EqualFold(strings.TrimSpace(fields[fValueKind]), "M")
	record.Denominations = append(record.Denominations, models.DenominationCount{
		Code:     strings.TrimSpace(fields[fDenomination]),
		Unit:     unit,
		Quantity: quantity,
		Coin:     coin,
	})

	return nil
}

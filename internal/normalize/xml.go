package normalize

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/logger"
)

// DenominationVocabulary maps the fixed denomination codes used by the XML
// feed to their unit values. Suffixes mark quality: AD fit for ATM dispense,
// NF not fit.
var DenominationVocabulary = map[string]decimal.Decimal{
	"100000":  decimal.NewFromInt(100000),
	"50000AD": decimal.NewFromInt(50000),
	"50000NF": decimal.NewFromInt(50000),
	"20000AD": decimal.NewFromInt(20000),
	"20000NF": decimal.NewFromInt(20000),
	"10000AD": decimal.NewFromInt(10000),
	"10000NF": decimal.NewFromInt(10000),
	"5000AD":  decimal.NewFromInt(5000),
	"5000NF":  decimal.NewFromInt(5000),
	"2000AD":  decimal.NewFromInt(2000),
	"2000NF":  decimal.NewFromInt(2000),
	"1000":    decimal.NewFromInt(1000),
	"500":     decimal.NewFromInt(500),
	"200":     decimal.NewFromInt(200),
	"100":     decimal.NewFromInt(100),
	"50AD":    decimal.NewFromInt(50),
	"50NF":    decimal.NewFromInt(50),
}

// XMLNormalizer parses batch XML documents carrying provision orders and
// collection remits
type XMLNormalizer struct {
	logger logger.Logger
}

// NewXMLNormalizer creates an XML normalizer
func NewXMLNormalizer(log logger.Logger) *XMLNormalizer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &XMLNormalizer{logger: log.WithComponent("xml_normalizer")}
}

// Channel returns the channel this normalizer serves
func (n *XMLNormalizer) Channel() models.Channel {
	return models.ChannelXML
}

// xmlMovement is one order or remit element
type xmlMovement struct {
	ID               string     `xml:"id,attr"`
	OrderDate        string     `xml:"orderDate,attr"`
	DeliveryDate     string     `xml:"deliveryDate,attr"`
	PickupDate       string     `xml:"pickupDate,attr"`
	OrderType        string     `xml:"orderType,attr"`
	PrimaryTransport string     `xml:"primaryTransport,attr"`
	Entity           xmlEntity  `xml:"entity"`
	Denoms           []xmlDenom `xml:"denom"`
}

type xmlEntity struct {
	EntityReferenceID string `xml:"entityReferenceID,attr"`
	RoutingNumber     string `xml:"routingNumber,attr"`
	CostCenter        string `xml:"costCenter,attr"`
}

type xmlDenom struct {
	Code     string `xml:"code,attr"`
	Quantity string `xml:"quantity,attr"`
}

// Parse decodes every order and remit element of the document. Malformed
// elements are recorded and skipped; a document with zero usable elements is
// a batch-level failure.
func (n *XMLNormalizer) Parse(ctx context.Context, path string) ([]models.RawRecord, *ParseStats, error) {
	stats := NewParseStats()

	file, err := openValidated(path, n.logger)
	if err != nil {
		return nil, stats, err
	}
	defer file.Close()

	decoder := xml.NewDecoder(file)
	records := make([]models.RawRecord, 0)

	for {
		if cancelled(ctx) {
			return records, stats, ctx.Err()
		}

		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Document-level breakage: nothing past this point is readable.
			if len(records) == 0 {
				return nil, stats, emptyBatchError(path)
			}
			stats.AddError(int(decoder.InputOffset()), "document", "", "truncated XML document", err)
			break
		}

		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		var provision bool
		switch start.Name.Local {
		case "order":
			provision = true
		case "remit":
			provision = false
		default:
			continue
		}

		stats.TotalLines++

		var movement xmlMovement
		if err := decoder.DecodeElement(&movement, &start); err != nil {
			stats.AddError(stats.TotalLines, start.Name.Local, "", "element does not decode", err)
			continue
		}

		record, rowErr := n.toRawRecord(path, stats.TotalLines, &movement, provision)
		if rowErr != nil {
			stats.Errors = append(stats.Errors, rowErr)
			stats.ErrorCount++
			continue
		}

		stats.RecordsParsed++
		stats.RecordsValid++
		records = append(records, *record)
	}

	if len(records) == 0 && !stats.HasErrors() {
		return nil, stats, emptyBatchError(path)
	}

	n.logger.WithFields(logger.Fields{
		"file":    path,
		"records": len(records),
		"errors":  stats.ErrorCount,
	}).Info("XML document normalized")

	return records, stats, nil
}

func (n *XMLNormalizer) toRawRecord(path string, index int, m *xmlMovement, provision bool) (*models.RawRecord, *RowError) {
	if strings.TrimSpace(m.ID) == "" {
		return nil, &RowError{Line: index, Field: "id", Message: "element carries no business id"}
	}
	if strings.TrimSpace(m.Entity.RoutingNumber) == "" {
		return nil, &RowError{Line: index, Field: "routingNumber", Value: m.ID, Message: "element carries no point code"}
	}

	record := models.RawRecord{
		Channel:    models.ChannelXML,
		SourceFile: path,
		Line:       index,
		OrderID:    strings.TrimSpace(m.ID),
		ClientHint: strings.TrimSpace(m.Entity.EntityReferenceID),
		PointCode:  strings.TrimSpace(m.Entity.RoutingNumber),
		OrderType:  strings.TrimSpace(m.OrderType),
	}

	// Provisions are requested on the order date and scheduled for the
	// delivery date; collections are scheduled for the pickup date. Dates
	// stay verbatim ISO-8601; the mapper parses them.
	if provision {
		record.Extra = map[string]string{"request_date": strings.TrimSpace(m.OrderDate)}
		record.ServiceDate = strings.TrimSpace(m.DeliveryDate)
		record.Concept = models.ConceptOfficeProvision
		if strings.Contains(strings.ToUpper(m.OrderType), "ATM") {
			record.Concept = models.ConceptATMProvision
		}
	} else {
		record.ServiceDate = strings.TrimSpace(m.PickupDate)
		record.Concept = models.ConceptCollection
	}

	if transport := strings.TrimSpace(m.PrimaryTransport); transport != "" {
		record.Observation = "Transportadora: " + transport
	}

	for _, d := range m.Denoms {
		code := strings.TrimSpace(d.Code)
		unit, known := DenominationVocabulary[code]
		if !known {
			n.logger.WithFields(logger.Fields{
				"file":  path,
				"order": m.ID,
				"code":  code,
			}).Warn("Dropping unknown denomination code")
			continue
		}

		quantity, err := decimal.NewFromString(strings.TrimSpace(d.Quantity))
		if err != nil || quantity.IsNegative() {
			return nil, &RowError{Line: index, Field: "quantity", Value: d.Quantity,
				Message: "invalid denomination quantity for code " + code, Err: err}
		}

		record.Denominations = append(record.Denominations, models.DenominationCount{
			Code:     code,
			Unit:     unit,
			Quantity: quantity,
		})
	}

	return &record, nil
}

package normalize

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"cash-interchange-service/internal/denom"
	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
	"cash-interchange-service/pkg/logger"
)

// headerScanLimit bounds the search for the true header row
const headerScanLimit = 25

// headerKeywords is the fixed vocabulary that identifies a header row. Any
// single match, case-insensitive, marks the row.
// "FECHA SOLICITUD" with a space is deliberately absent: that form appears
// as a metadata label above the real header.
var headerKeywords = []string{
	"FECHA_SOLICITUD",
	"NRO SERVICIO",
	"CODIGO PUNTO",
	"CODIGO",
	"GAVETA_1",
	"VALOR RECOLECCION",
	"ID BCT",
	"COD. UNICO",
	"NUMERO KITS",
	"DENOMINACION",
}

// parameterSheetMarker identifies the sheet that configures kit unit values
const parameterSheetMarker = "PARAMETRO"

// ParsedSheet is the explicit result of reading one worksheet: the located
// header, the data rows below it, and everything harvested from above the
// header. Nothing travels on side channels.
type ParsedSheet struct {
	Name                string
	SourceFile          string
	Header              []string
	Rows                [][]string
	FirstDataLine       int // 1-based sheet row of the first data row
	Metadata            map[string]string
	DiscardedHeaderRows [][]string

	headerIndex map[string]int
}

// Column returns the index of a header column by name, case-insensitive,
// or -1 when absent
func (s *ParsedSheet) Column(name string) int {
	if idx, ok := s.headerIndex[normalizeHeader(name)]; ok {
		return idx
	}
	return -1
}

// Cell returns the trimmed cell at the given column of a row, or "" when the
// row is shorter than the column index
func (s *ParsedSheet) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// CellByName returns the trimmed cell under the named header column
func (s *ParsedSheet) CellByName(row []string, name string) string {
	return s.Cell(row, s.Column(name))
}

func normalizeHeader(h string) string {
	return strings.ToUpper(strings.TrimSpace(h))
}

// SheetLayout converts one data row of a parsed sheet into a RawRecord.
// Implementations cover the client-specific column shapes.
type SheetLayout interface {
	Name() string
	Extract(sheet *ParsedSheet, row []string, line int) (*models.RawRecord, error)
}

// SheetNormalizer parses client spreadsheet exports with a layout chosen per
// client before the run starts
type SheetNormalizer struct {
	layout SheetLayout
	logger logger.Logger
}

// NewSheetNormalizer creates a spreadsheet normalizer bound to one layout
func NewSheetNormalizer(layout SheetLayout, log logger.Logger) *SheetNormalizer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &SheetNormalizer{
		layout: layout,
		logger: log.WithComponent("sheet_normalizer"),
	}
}

// Channel returns the channel this normalizer serves
func (n *SheetNormalizer) Channel() models.Channel {
	return models.ChannelSheet
}

// Parse reads every non-parameter worksheet of the file, locates each
// sheet's header row, and extracts one RawRecord per data row
func (n *SheetNormalizer) Parse(ctx context.Context, path string) ([]models.RawRecord, *ParseStats, error) {
	stats := NewParseStats()

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, stats, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	records := make([]models.RawRecord, 0)

	for _, sheetName := range f.GetSheetList() {
		if cancelled(ctx) {
			return nil, stats, ctx.Err()
		}
		if strings.Contains(strings.ToUpper(sheetName), parameterSheetMarker) {
			continue
		}

		sheet, err := readSheet(f, sheetName, path)
		if err != nil {
			stats.AddError(0, "sheet", sheetName, "sheet has no recognizable header", err)
			continue
		}

		for i, row := range sheet.Rows {
			line := sheet.FirstDataLine + i
			stats.TotalLines++

			if isBlank(row) {
				continue
			}

			record, err := n.layout.Extract(sheet, row, line)
			if err != nil {
				stats.AddError(line, "row", "", "row does not extract", err)
				continue
			}
			if record == nil {
				continue
			}

			stats.RecordsParsed++
			stats.RecordsValid++
			records = append(records, *record)
		}
	}

	if len(records) == 0 && !stats.HasErrors() {
		return nil, stats, emptyBatchError(path)
	}

	n.logger.WithFields(logger.Fields{
		"file":    path,
		"layout":  n.layout.Name(),
		"records": len(records),
		"errors":  stats.ErrorCount,
	}).Info("Spreadsheet normalized")

	return records, stats, nil
}

// readSheet loads one worksheet, finds its header by keyword scan, and
// harvests everything above the header as metadata
func readSheet(f *excelize.File, sheetName, path string) (*ParsedSheet, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, err
	}

	headerRow := locateHeader(rows)
	if headerRow < 0 {
		return nil, errors.ParseError(errors.CodeMissingColumn, path, 0, "header",
			sheetName, nil)
	}

	return buildSheet(rows, headerRow, sheetName, path), nil
}

// buildSheet assembles a ParsedSheet around the given header row, harvesting
// everything above it as metadata
func buildSheet(rows [][]string, headerRow int, sheetName, path string) *ParsedSheet {
	sheet := &ParsedSheet{
		Name:          sheetName,
		SourceFile:    path,
		Header:        rows[headerRow],
		Rows:          rows[headerRow+1:],
		FirstDataLine: headerRow + 2, // 1-based, first row after the header
		Metadata:      make(map[string]string),
		headerIndex:   make(map[string]int),
	}

	for i, h := range sheet.Header {
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := sheet.headerIndex[key]; !dup {
			sheet.headerIndex[key] = i
		}
	}

	for _, row := range rows[:headerRow] {
		sheet.DiscardedHeaderRows = append(sheet.DiscardedHeaderRows, row)
		harvestMetadata(sheet.Metadata, row)
	}

	return sheet
}

// locateHeader scans the first rows for any header keyword and returns the
// matching row index, or -1
func locateHeader(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		for _, cell := range rows[i] {
			upper := normalizeHeader(cell)
			for _, keyword := range headerKeywords {
				if upper == keyword {
					return i
				}
			}
		}
	}
	return -1
}

// harvestMetadata extracts "key: value" pairs from a pre-header row, either
// inside one cell or as adjacent cells
func harvestMetadata(meta map[string]string, row []string) {
	for i := 0; i < len(row); i++ {
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}

		if k, v, found := strings.Cut(cell, ":"); found && strings.TrimSpace(v) != "" {
			meta[strings.TrimSpace(k)] = strings.TrimSpace(v)
			continue
		}

		// A labelled cell followed by a value cell.
		key := strings.TrimSuffix(cell, ":")
		for j := i + 1; j < len(row); j++ {
			if value := strings.TrimSpace(row[j]); value != "" {
				if _, dup := meta[key]; !dup {
					meta[key] = value
				}
				i = j
				break
			}
		}
	}
}

// ReadKitParameters reads the kit configuration sheet of a spreadsheet file,
// when present: one row per kit with its name, unit value, and type
func ReadKitParameters(path string) (map[string]denom.KitSpec, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	for _, sheetName := range f.GetSheetList() {
		if !strings.Contains(strings.ToUpper(sheetName), parameterSheetMarker) {
			continue
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
		}

		// The parameter sheet carries none of the order-header keywords;
		// its first non-blank row is the header.
		headerRow := -1
		for i, row := range rows {
			if !isBlank(row) {
				headerRow = i
				break
			}
		}
		if headerRow < 0 {
			return nil, nil
		}
		sheet := buildSheet(rows, headerRow, sheetName, path)

		nameCol := sheet.Column("KIT")
		valueCol := sheet.Column("VALOR")
		typeCol := sheet.Column("TIPO")
		if nameCol < 0 || valueCol < 0 {
			return nil, errors.ParseError(errors.CodeMissingColumn, path, sheet.FirstDataLine-1,
				"KIT/VALOR", sheetName, nil)
		}

		specs := make(map[string]denom.KitSpec)
		for _, row := range sheet.Rows {
			name := sheet.Cell(row, nameCol)
			if name == "" {
				continue
			}

			unit, err := models.ParseAmount(sheet.Cell(row, valueCol))
			if err != nil {
				continue
			}

			kitType := denom.KitMixed
			switch strings.ToUpper(sheet.Cell(row, typeCol)) {
			case "BILLETE", "BANKNOTE":
				kitType = denom.KitBanknote
			case "MONEDA", "COIN":
				kitType = denom.KitCoin
			}

			specs[strings.ToUpper(name)] = denom.KitSpec{Name: name, Unit: unit, Type: kitType}
		}

		return specs, nil
	}

	return nil, nil
}

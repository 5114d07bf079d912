package mapping

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/internal/normalize"
	"cash-interchange-service/pkg/logger"
)

// kitBasedLayout handles emergency kit files. Rows carry kit quantities
// keyed by ID BCT and COD. UNICO; the kit composition and unit values live
// in two small tables above the header row, one for coin kits and one for
// banknote kits.
type kitBasedLayout struct {
	clientCode int
	logger     logger.Logger
}

// kitTable is one composition table parsed from the pre-header rows
type kitTable struct {
	Unit   decimal.Decimal
	Detail string
}

func (l *kitBasedLayout) Name() string { return string(LayoutKitBased) }

func (l *kitBasedLayout) Extract(sheet *normalize.ParsedSheet, row []string, line int) (*models.RawRecord, error) {
	orderCol := findColumn(sheet, "ID", "BCT")
	codeCol := findColumn(sheet, "COD", "UNICO")
	if orderCol < 0 || codeCol < 0 {
		return nil, fmt.Errorf("sheet is missing the ID BCT / COD. UNICO columns")
	}

	orderRef := cleanCode(sheet.Cell(row, orderCol))
	code := cleanCode(sheet.Cell(row, codeCol))
	if orderRef == "" || code == "" {
		return nil, nil
	}

	coinTable, banknoteTable := l.kitTables(sheet)

	coinQty := quantityAt(sheet, row, findColumn(sheet, "KITS", "MONEDA"))
	banknoteQty := quantityAt(sheet, row, findColumn(sheet, "KITS", "BILLETE"))

	var obsParts []string
	if coinQty > 0 {
		obsParts = append(obsParts, fmt.Sprintf("Kits Moneda: %d [%s]", coinQty, coinTable.Detail))
	}
	if banknoteQty > 0 {
		obsParts = append(obsParts, fmt.Sprintf("Kits Billete: %d [%s]", banknoteQty, banknoteTable.Detail))
	}
	obs := strings.Join(obsParts, ", ")
	if obs == "" {
		obs = "No se especificaron kits"
	}

	record := &models.RawRecord{
		Channel:     models.ChannelSheet,
		SourceFile:  sheet.SourceFile,
		Line:        line,
		OrderID:     fmt.Sprintf("%d%s", l.clientCode, orderRef),
		ClientHint:  fmt.Sprintf("%d", l.clientCode),
		PointCode:   code,
		ServiceDate: cellAt(sheet, row, findColumn(sheet, "FECHA")),
		Concept:     models.ConceptOfficeProvision,
		Observation: obs,
		ExternalID:  orderRef,

		KitQuantity:      coinQty + banknoteQty,
		KitBanknoteValue: banknoteTable.Unit.Mul(decimal.NewFromInt(int64(banknoteQty))),
		KitCoinValue:     coinTable.Unit.Mul(decimal.NewFromInt(int64(coinQty))),

		// Emergency provisions enter the workflow already in progress.
		Extra: map[string]string{
			"transaction_state": string(models.TxProvisionOngoing),
		},
	}

	return record, nil
}

// kitTables parses the composition tables above the header. Each table is
// announced by a DENOMINACION cell; tables in the first columns describe
// coin kits, tables further right describe banknote kits. The TOTAL row
// carries the kit's unit value two cells to the right.
func (l *kitBasedLayout) kitTables(sheet *normalize.ParsedSheet) (coin, banknote kitTable) {
	rows := sheet.DiscardedHeaderRows

	startRow := -1
	var tableCols []int
	for i := 0; i < len(rows) && i < 5; i++ {
		for col, cell := range rows[i] {
			upper := normHeader(cell)
			if strings.Contains(upper, "DENOMINACION") || strings.Contains(upper, "DENOMINACIÓN") {
				tableCols = append(tableCols, col)
				startRow = i
			}
		}
		if len(tableCols) > 0 {
			break
		}
	}
	if startRow < 0 {
		return coin, banknote
	}

	for _, tableCol := range tableCols {
		var items []string
		unit := decimal.Zero

		for r := startRow + 1; r < len(rows); r++ {
			row := rows[r]
			if tableCol >= len(row) {
				break
			}

			label := strings.TrimSpace(row[tableCol])
			if label == "" {
				continue
			}

			if strings.Contains(strings.ToUpper(label), "TOTAL") {
				if tableCol+2 < len(row) {
					if v, err := models.ParseAmount(row[tableCol+2]); err == nil {
						unit = v
					}
				}
				break
			}

			if tableCol+1 < len(row) {
				if qty, err := models.ParseQuantity(row[tableCol+1]); err == nil && qty > 0 {
					items = append(items, fmt.Sprintf("%s:%d", label, qty))
				}
			}
		}

		table := kitTable{Unit: unit, Detail: strings.Join(items, "; ")}
		if tableCol < 5 {
			coin = table
		} else {
			banknote = table
		}
	}

	return coin, banknote
}

func quantityAt(sheet *normalize.ParsedSheet, row []string, col int) int {
	if col < 0 {
		return 0
	}
	qty, err := models.ParseQuantity(sheet.Cell(row, col))
	if err != nil || qty < 0 {
		return 0
	}
	return qty
}

func cellAt(sheet *normalize.ParsedSheet, row []string, col int) string {
	if col < 0 {
		return ""
	}
	return sheet.Cell(row, col)
}

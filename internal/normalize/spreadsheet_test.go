package normalize

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"cash-interchange-service/internal/denom"
	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

// stubLayout extracts the point code and service number verbatim
type stubLayout struct{}

func (stubLayout) Name() string { return "stub" }

func (stubLayout) Extract(sheet *ParsedSheet, row []string, line int) (*models.RawRecord, error) {
	point := sheet.CellByName(row, "CODIGO PUNTO")
	if point == "" {
		return nil, fmt.Errorf("row carries no point code")
	}
	return &models.RawRecord{
		Channel:    models.ChannelSheet,
		SourceFile: sheet.SourceFile,
		Line:       line,
		PointCode:  point,
		ExternalID: sheet.CellByName(row, "NRO SERVICIO"),
	}, nil
}

func writeWorkbook(t *testing.T, build func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	build(f)
	path := filepath.Join(t.TempDir(), "orders.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

func TestSheetNormalizerParse(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		sheet := f.GetSheetName(0)
		// Two metadata rows above the header.
		f.SetSheetRow(sheet, "A1", &[]interface{}{"CLIENTE: 45"})
		f.SetSheetRow(sheet, "A2", &[]interface{}{"FECHA SERVICIO", "2026-08-15"})
		f.SetSheetRow(sheet, "A3", &[]interface{}{"NRO SERVICIO", "CODIGO PUNTO", "VALOR"})
		f.SetSheetRow(sheet, "A4", &[]interface{}{"100", "0075", "1250000"})
		f.SetSheetRow(sheet, "A5", &[]interface{}{"101", "", "500"})
		f.SetSheetRow(sheet, "A6", &[]interface{}{"102", "0076", "800000"})
	})

	n := NewSheetNormalizer(stubLayout{}, nil)
	records, stats, err := n.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if stats.ErrorCount != 1 {
		t.Errorf("expected 1 row error for the point-less row, got %d", stats.ErrorCount)
	}
	if records[0].PointCode != "0075" || records[1].PointCode != "0076" {
		t.Errorf("point codes = %s, %s", records[0].PointCode, records[1].PointCode)
	}
}

func TestReadSheetHeaderAndMetadata(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		sheet := f.GetSheetName(0)
		f.SetSheetRow(sheet, "A1", &[]interface{}{"CLIENTE: BANCO EJEMPLO"})
		f.SetSheetRow(sheet, "A2", &[]interface{}{"FECHA", "2026-08-15"})
		f.SetSheetRow(sheet, "A3", &[]interface{}{"codigo punto", "VALOR RECOLECCION"})
		f.SetSheetRow(sheet, "A4", &[]interface{}{"0075", "1000"})
	})

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	sheet, err := readSheet(f, f.GetSheetName(0), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sheet.Column("CODIGO PUNTO") != 0 {
		t.Errorf("header lookup should be case-insensitive, got %d", sheet.Column("CODIGO PUNTO"))
	}
	if sheet.Column("missing") != -1 {
		t.Error("missing column should return -1")
	}
	if len(sheet.DiscardedHeaderRows) != 2 {
		t.Errorf("expected 2 discarded header rows, got %d", len(sheet.DiscardedHeaderRows))
	}
	if sheet.Metadata["CLIENTE"] != "BANCO EJEMPLO" {
		t.Errorf("inline metadata = %q", sheet.Metadata["CLIENTE"])
	}
	if sheet.Metadata["FECHA"] != "2026-08-15" {
		t.Errorf("adjacent-cell metadata = %q", sheet.Metadata["FECHA"])
	}
	if sheet.FirstDataLine != 4 {
		t.Errorf("first data line = %d, want 4", sheet.FirstDataLine)
	}
}

func TestLocateHeaderNotFound(t *testing.T) {
	rows := [][]string{{"nothing"}, {"relevant", "here"}}
	if got := locateHeader(rows); got != -1 {
		t.Errorf("locateHeader = %d, want -1", got)
	}
}

func TestSheetNormalizerNoHeader(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		sheet := f.GetSheetName(0)
		f.SetSheetRow(sheet, "A1", &[]interface{}{"just", "noise"})
	})

	n := NewSheetNormalizer(stubLayout{}, nil)
	records, stats, err := n.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	if !stats.HasErrors() {
		t.Error("expected a sheet-level error to be recorded")
	}
}

func TestSheetNormalizerEmptyWorkbook(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		sheet := f.GetSheetName(0)
		f.SetSheetRow(sheet, "A1", &[]interface{}{"CODIGO PUNTO"})
	})

	n := NewSheetNormalizer(stubLayout{}, nil)
	_, _, err := n.Parse(context.Background(), path)
	if !errors.IsEmptyBatch(err) {
		t.Errorf("expected empty batch error, got %v", err)
	}
}

func TestReadKitParameters(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		f.NewSheet("PARAMETROS")
		f.SetSheetRow("PARAMETROS", "A1", &[]interface{}{"KIT", "VALOR", "TIPO"})
		f.SetSheetRow("PARAMETROS", "A2", &[]interface{}{"KIT A", "200000", "BILLETE"})
		f.SetSheetRow("PARAMETROS", "A3", &[]interface{}{"KIT B", "50000", "MONEDA"})
		f.SetSheetRow("PARAMETROS", "A4", &[]interface{}{"KIT C", "100000", "MIXTO"})
	})

	specs, err := ReadKitParameters(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 kit specs, got %d", len(specs))
	}
	if specs["KIT A"].Type != denom.KitBanknote {
		t.Errorf("KIT A type = %s", specs["KIT A"].Type)
	}
	if specs["KIT B"].Type != denom.KitCoin {
		t.Errorf("KIT B type = %s", specs["KIT B"].Type)
	}
	if specs["KIT C"].Type != denom.KitMixed {
		t.Errorf("KIT C type = %s", specs["KIT C"].Type)
	}
	if !specs["KIT A"].Unit.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("KIT A unit = %s", specs["KIT A"].Unit)
	}
}

func TestReadKitParametersSkipsLeadingBlankRows(t *testing.T) {
	path := writeWorkbook(t, func(f *excelize.File) {
		f.NewSheet("PARAMETROS")
		// Row 1 left blank; the header carries none of the order keywords.
		f.SetSheetRow("PARAMETROS", "A2", &[]interface{}{"KIT", "VALOR", "TIPO"})
		f.SetSheetRow("PARAMETROS", "A3", &[]interface{}{"KIT A", "200000", "BILLETE"})
	})

	specs, err := ReadKitParameters(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 kit spec, got %d", len(specs))
	}
	if !specs["KIT A"].Unit.Equal(decimal.NewFromInt(200000)) {
		t.Errorf("KIT A unit = %s", specs["KIT A"].Unit)
	}
}

func TestSheetNormalizerChannel(t *testing.T) {
	if NewSheetNormalizer(stubLayout{}, nil).Channel() != models.ChannelSheet {
		t.Error("wrong channel")
	}
}

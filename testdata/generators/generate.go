// Command generate writes sample interchange files for manual testing: one
// XML order batch, one fixed-layout text file, and one client spreadsheet
// folder, laid out the way the service expects its input folders.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	outputDir = flag.String("output", "testdata/sample", "Output directory for the generated folders")
	orders    = flag.Int("orders", 5, "Number of orders per file")
	seedDate  = flag.String("date", "", "Service date (YYYY-MM-DD, default tomorrow)")
)

func main() {
	flag.Parse()

	serviceDate := time.Now().AddDate(0, 0, 1)
	if *seedDate != "" {
		parsed, err := time.Parse("2006-01-02", *seedDate)
		if err != nil {
			log.Fatalf("invalid --date: %v", err)
		}
		serviceDate = parsed
	}

	if err := generateXML(*outputDir, *orders, serviceDate); err != nil {
		log.Fatalf("generating XML batch: %v", err)
	}
	if err := generateText(*outputDir, *orders, serviceDate); err != nil {
		log.Fatalf("generating text file: %v", err)
	}
	if err := generateSheet(*outputDir, *orders, serviceDate); err != nil {
		log.Fatalf("generating spreadsheet: %v", err)
	}

	fmt.Printf("Sample interchange files written under %s\n", *outputDir)
}

// generateXML writes an order/remit batch under entrada_xml, named the way
// the partner names its drops so the acknowledgement can echo the timestamp
func generateXML(dir string, count int, serviceDate time.Time) error {
	now := time.Now()
	name := fmt.Sprintf("ICOREX_C4U-01-Vatco_2656_%s_%s.xml",
		now.Format("20060102"), now.Format("150405"))

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<batch>\n")
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&b, `  <order id="ORD-%04d" orderDate=%q orderType="PROVISION" primaryTransport="TVS">
    <entity entityReferenceID="45" routingNumber="52-SUC-%04d"/>
    <denom code="50000AD" quantity="%d"/>
    <denom code="2000NF" quantity="50"/>
    <denom code="500" quantity="%d"/>
  </order>
`, i, serviceDate.Format("2006-01-02"), 70+i, 10+i, 40+i)
	}
	fmt.Fprintf(&b, `  <remit id="REM-0001" pickupDate=%q>
    <entity entityReferenceID="45" routingNumber="52-SUC-0071"/>
  </remit>
`, serviceDate.Format("2006-01-02"))
	b.WriteString("</batch>\n")

	return writeFile(filepath.Join(dir, "entrada_xml", name), b.String())
}

// generateText writes a fixed-layout file under entrada_txt: one header line
// with the client tax id, two detail lines per order, and a trailer with the
// detail count
func generateText(dir string, count int, serviceDate time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "1,900123456,%s\n", time.Now().Format("02/01/2006"))

	details := 0
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("TX-%04d", i)
		point := fmt.Sprintf("%04d", 70+i)
		date := serviceDate.Format("02/01/2006")

		fmt.Fprintf(&b, "2,PROVISION,BOGOTA,%s,%s,PUNTO %s,OFICINA,0,50000,%d,%d,NORMAL,URBANA,PV,B,%s\n",
			date, point, point, 20+i, (20+i)*50000, id)
		fmt.Fprintf(&b, "2,PROVISION,BOGOTA,%s,%s,PUNTO %s,OFICINA,0,500,%d,%d,NORMAL,URBANA,PV,M,%s\n",
			date, point, point, 40+i, (40+i)*500, id)
		details += 2
	}
	fmt.Fprintf(&b, "3,%d\n", details)

	name := fmt.Sprintf("PEDIDOS_%s.txt", time.Now().Format("20060102"))
	return writeFile(filepath.Join(dir, "entrada_txt", name), b.String())
}

// generateSheet writes a standard-layout workbook into a client folder under
// entrada_excel
func generateSheet(dir string, count int, serviceDate time.Time) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	f.SetSheetRow(sheet, "A1", &[]interface{}{
		"FECHA_SOLICITUD", "FECHA_SERVICIO", "CODIGO", "MODALIDAD", "VALOR_TOTAL", "50000", "2000NF", "500"})
	for i := 1; i <= count; i++ {
		banknotes := (20 + i) * 50000
		small := 50 * 2000
		coins := (40 + i) * 500
		f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &[]interface{}{
			time.Now().Format("02/01/2006"),
			serviceDate.Format("02/01/2006"),
			fmt.Sprintf("%04d", 70+i),
			"PROVISION",
			banknotes + small + coins,
			banknotes,
			small,
			coins,
		})
	}

	clientDir := filepath.Join(dir, "entrada_excel", "45_BANCO_EJEMPLO")
	if err := os.MkdirAll(clientDir, 0o755); err != nil {
		return err
	}
	return f.SaveAs(filepath.Join(clientDir, fmt.Sprintf("pedidos_%s.xlsx", time.Now().Format("20060102"))))
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

package normalize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

const sampleBatchXML = `<?xml version="1.0" encoding="UTF-8"?>
<batch>
  <order id="PV-1001" orderDate="2026-08-15T00:00:00" deliveryDate="2026-08-16T00:00:00" orderType="OFICINA" primaryTransport="TRANSPORTES DEL SUR">
    <entity entityReferenceID="45" routingNumber="52-SUC-0075" costCenter="10"/>
    <denom code="50000AD" quantity="20"/>
    <denom code="500" quantity="100"/>
    <denom code="999XX" quantity="5"/>
  </order>
  <order id="PR-1002" orderDate="2026-08-15T00:00:00" orderType="ATM" primaryTransport="">
    <entity entityReferenceID="45" routingNumber="0076" costCenter="10"/>
    <denom code="20000AD" quantity="50"/>
  </order>
  <remit id="RC-2001" pickupDate="2026-08-17T00:00:00">
    <entity entityReferenceID="46" routingNumber="0099" costCenter="20"/>
  </remit>
  <order id="" orderDate="2026-08-15T00:00:00">
    <entity entityReferenceID="45" routingNumber="0077"/>
  </order>
</batch>
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestXMLNormalizerParse(t *testing.T) {
	path := writeTempFile(t, "C4U-45-ORD-20260815-0930.xml", sampleBatchXML)

	n := NewXMLNormalizer(nil)
	records, stats, err := n.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if stats.ErrorCount != 1 {
		t.Errorf("expected 1 row error for the id-less order, got %d", stats.ErrorCount)
	}

	office := records[0]
	if office.OrderID != "PV-1001" {
		t.Errorf("order id = %s, want PV-1001", office.OrderID)
	}
	if office.Concept != models.ConceptOfficeProvision {
		t.Errorf("concept = %d, want office provision", office.Concept)
	}
	if office.Field("request_date") != "2026-08-15T00:00:00" {
		t.Errorf("request date = %s, want verbatim order date", office.Field("request_date"))
	}
	if office.ServiceDate != "2026-08-16T00:00:00" {
		t.Errorf("service date = %s, want verbatim delivery date", office.ServiceDate)
	}
	if office.Observation != "Transportadora: TRANSPORTES DEL SUR" {
		t.Errorf("observation = %q", office.Observation)
	}
	if office.PointCode != "52-SUC-0075" {
		t.Errorf("point code = %s", office.PointCode)
	}
	// The unknown code 999XX is dropped, not an error.
	if len(office.Denominations) != 2 {
		t.Fatalf("expected 2 denominations, got %d", len(office.Denominations))
	}
	if !office.Denominations[0].Unit.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("first denomination unit = %s, want 50000", office.Denominations[0].Unit)
	}

	atm := records[1]
	if atm.Concept != models.ConceptATMProvision {
		t.Errorf("ATM order concept = %d, want ATM provision", atm.Concept)
	}

	remit := records[2]
	if remit.Concept != models.ConceptCollection {
		t.Errorf("remit concept = %d, want collection", remit.Concept)
	}
	if remit.ServiceDate != "2026-08-17T00:00:00" {
		t.Errorf("remit service date = %s, want verbatim pickup date", remit.ServiceDate)
	}
	if len(remit.Denominations) != 0 {
		t.Errorf("remit should carry no denominations, got %d", len(remit.Denominations))
	}
}

func TestXMLNormalizerEmptyBatch(t *testing.T) {
	path := writeTempFile(t, "empty.xml", `<?xml version="1.0"?><batch></batch>`)

	n := NewXMLNormalizer(nil)
	_, _, err := n.Parse(context.Background(), path)
	if !errors.IsEmptyBatch(err) {
		t.Errorf("expected empty batch error, got %v", err)
	}
}

func TestXMLNormalizerMissingFile(t *testing.T) {
	n := NewXMLNormalizer(nil)
	_, _, err := n.Parse(context.Background(), filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if pe, ok := errors.AsPipelineError(err); !ok || pe.Code != errors.CodeFileNotFound {
		t.Errorf("expected file not found, got %v", err)
	}
}

func TestXMLNormalizerChannel(t *testing.T) {
	if NewXMLNormalizer(nil).Channel() != models.ChannelXML {
		t.Error("wrong channel")
	}
}

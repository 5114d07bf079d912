package normalize

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

func detailLine(service, businessID, denomination, quantity, valueKind string) string {
	// 2,service,city,date,point,name,category,drawer,denom,qty,value,priority,route,ordertype,kind,id
	return fmt.Sprintf("2,%s,BOGOTA,15082026,0075,SUCURSAL CENTRO,A,1,%s,%s,0,1,N,R,%s,%s",
		service, denomination, quantity, valueKind, businessID)
}

func TestTextNormalizerPivot(t *testing.T) {
	lines := []string{
		"1,900123456,15082026",
		detailLine("100", "ORD-1", "50000", "20", "B"),
		detailLine("100", "ORD-1", "500", "40", "M"),
		detailLine("101", "ORD-2", "20000", "10", "B"),
		"3,3",
	}
	path := writeTempFile(t, "detail.txt", strings.Join(lines, "\n")+"\n")

	n := NewTextNormalizer(nil)
	records, stats, err := n.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 pivoted records, got %d", len(records))
	}
	if stats.ErrorCount != 0 {
		t.Errorf("expected no row errors, got %d", stats.ErrorCount)
	}

	first := records[0]
	if first.OrderID != "ORD-1" {
		t.Errorf("first record id = %s, want ORD-1", first.OrderID)
	}
	if first.ClientHint != "900123456" {
		t.Errorf("client hint = %s, want header tax id", first.ClientHint)
	}
	if first.ServiceDate != "15082026" {
		t.Errorf("service date = %s", first.ServiceDate)
	}
	if len(first.Denominations) != 2 {
		t.Fatalf("expected 2 pivoted slots, got %d", len(first.Denominations))
	}
	if !first.Denominations[0].Unit.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("slot 0 unit = %s, want 50000", first.Denominations[0].Unit)
	}
	if first.Denominations[0].Coin {
		t.Error("banknote slot flagged as coin")
	}
	if !first.Denominations[1].Coin {
		t.Error("coin slot not flagged")
	}

	second := records[1]
	if second.OrderID != "ORD-2" || len(second.Denominations) != 1 {
		t.Errorf("second record = %s with %d slots", second.OrderID, len(second.Denominations))
	}
}

func TestTextNormalizerSlotLimit(t *testing.T) {
	lines := []string{"1,900123456,15082026"}
	for i := 0; i < 10; i++ {
		lines = append(lines, detailLine("100", "ORD-1", "50000", "1", "B"))
	}
	path := writeTempFile(t, "slots.txt", strings.Join(lines, "\n")+"\n")

	n := NewTextNormalizer(nil)
	records, _, err := n.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := len(records[0].Denominations); got != maxDenominationSlots {
		t.Errorf("expected %d slots, got %d", maxDenominationSlots, got)
	}
}

func TestTextNormalizerRowErrors(t *testing.T) {
	lines := []string{
		"1,900123456,15082026",
		"2,100,BOGOTA,15082026,0075",                       // too short
		detailLine("100", "", "50000", "20", "B"),          // no business id
		detailLine("100", "ORD-9", "abc", "20", "B"),       // bad denomination
		detailLine("100", "ORD-8", "50000", "veinte", "B"), // bad quantity
		detailLine("100", "ORD-OK", "50000", "20", "B"),
		"9,huh", // unknown record type
	}
	path := writeTempFile(t, "errors.txt", strings.Join(lines, "\n")+"\n")

	n := NewTextNormalizer(nil)
	records, stats, err := n.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 || records[0].OrderID != "ORD-OK" {
		t.Fatalf("expected only ORD-OK to survive, got %v", records)
	}
	if stats.ErrorCount != 5 {
		t.Errorf("expected 5 row errors, got %d", stats.ErrorCount)
	}
}

func TestTextNormalizerEmptyBatch(t *testing.T) {
	path := writeTempFile(t, "header_only.txt", "1,900123456,15082026\n3,0\n")

	n := NewTextNormalizer(nil)
	_, _, err := n.Parse(context.Background(), path)
	if !errors.IsEmptyBatch(err) {
		t.Errorf("expected empty batch error, got %v", err)
	}
}

func TestTextNormalizerChannel(t *testing.T) {
	if NewTextNormalizer(nil).Channel() != models.ChannelText {
		t.Error("wrong channel")
	}
}

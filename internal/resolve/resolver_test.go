package resolve

import (
	"context"
	"testing"

	"cash-interchange-service/internal/models"
	"cash-interchange-service/pkg/errors"
)

// fakeStore serves lookups from maps and records which lookups ran
type fakeStore struct {
	clients map[string]int                   // tax id -> client code
	byCode  map[string]*models.ResolvedPoint // "client|code" -> point
	byPair  map[string]*models.ResolvedPoint // "client|code" -> point
	calls   []string
}

func key(clientCode int, code string) string {
	return string(rune('0'+clientCode/10)) + string(rune('0'+clientCode%10)) + "|" + code
}

func (f *fakeStore) ClientByTaxID(_ context.Context, taxID string) (int, error) {
	f.calls = append(f.calls, "tax:"+taxID)
	return f.clients[taxID], nil
}

func (f *fakeStore) PointByCode(_ context.Context, clientCode int, code string) (*models.ResolvedPoint, error) {
	f.calls = append(f.calls, "code:"+key(clientCode, code))
	return f.byCode[key(clientCode, code)], nil
}

func (f *fakeStore) PointByPair(_ context.Context, clientCode int, code string) (*models.ResolvedPoint, error) {
	f.calls = append(f.calls, "pair:"+key(clientCode, code))
	return f.byPair[key(clientCode, code)], nil
}

func TestExternalCodeTable(t *testing.T) {
	tests := []struct {
		client int
		want   string
	}{
		{45, "52"},
		{46, "01"},
		{47, "02"},
		{48, "23"},
		{99, "00"},
	}
	for _, tt := range tests {
		if got := ExternalCode(tt.client); got != tt.want {
			t.Errorf("ExternalCode(%d) = %s, want %s", tt.client, got, tt.want)
		}
	}

	if client, ok := ClientForExternalCode("52"); !ok || client != 45 {
		t.Errorf("ClientForExternalCode(52) = %d, %v", client, ok)
	}
	if _, ok := ClientForExternalCode("00"); ok {
		t.Error("default code should not invert to a client")
	}
}

func TestResolveDirect(t *testing.T) {
	store := &fakeStore{byCode: map[string]*models.ResolvedPoint{
		key(45, "0075"): {ClientCode: 45, BranchCode: 10, PointKey: "PK75"},
	}}
	r := NewCodeResolver(store, nil)

	point, err := r.Resolve(context.Background(), "0075", 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.PointKey != "PK75" {
		t.Errorf("point key = %s", point.PointKey)
	}
	if len(store.calls) != 1 {
		t.Errorf("direct hit should need exactly one lookup, got %v", store.calls)
	}
}

func TestResolveCompositeSuffix(t *testing.T) {
	// "52-SUC-0075" fails directly, succeeds once the middle segment is
	// stripped and the numeric suffix retried under the same client.
	store := &fakeStore{byCode: map[string]*models.ResolvedPoint{
		key(45, "0075"): {ClientCode: 45, BranchCode: 10, PointKey: "PK75"},
	}}
	r := NewCodeResolver(store, nil)

	point, err := r.Resolve(context.Background(), "52-SUC-0075", 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.PointKey != "PK75" {
		t.Errorf("point key = %s", point.PointKey)
	}

	want := []string{"code:" + key(45, "52-SUC-0075"), "code:" + key(45, "0075")}
	if len(store.calls) != 2 || store.calls[0] != want[0] || store.calls[1] != want[1] {
		t.Errorf("lookup order = %v, want %v", store.calls, want)
	}
}

func TestResolveExternalCodeTranslation(t *testing.T) {
	// "52-0075" resolves via the external code table: 52 belongs to
	// client 45, so the third step retries as "45-0075" under client 45.
	store := &fakeStore{byCode: map[string]*models.ResolvedPoint{
		key(45, "45-0075"): {ClientCode: 45, BranchCode: 10, PointKey: "PK75"},
	}}
	r := NewCodeResolver(store, nil)

	point, err := r.Resolve(context.Background(), "52-0075", 46)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.PointKey != "PK75" {
		t.Errorf("point key = %s", point.PointKey)
	}
}

func TestResolvePairFallback(t *testing.T) {
	store := &fakeStore{byPair: map[string]*models.ResolvedPoint{
		key(45, "0075"): {ClientCode: 45, BranchCode: 10, PointKey: "PK75"},
	}}
	r := NewCodeResolver(store, nil)

	point, err := r.Resolve(context.Background(), "99-XX-0075", 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.PointKey != "PK75" {
		t.Errorf("point key = %s", point.PointKey)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := NewCodeResolver(&fakeStore{}, nil)

	_, err := r.Resolve(context.Background(), "52-SUC-0075", 45)
	if !errors.IsPointNotFound(err) {
		t.Errorf("expected PointNotFound, got %v", err)
	}

	_, err = r.Resolve(context.Background(), "  ", 45)
	if !errors.IsPointNotFound(err) {
		t.Errorf("expected PointNotFound for blank code, got %v", err)
	}
}

func TestClientByTaxID(t *testing.T) {
	store := &fakeStore{clients: map[string]int{"900123456": 45}}
	r := NewCodeResolver(store, nil)

	client, err := r.ClientByTaxID(context.Background(), "900123456")
	if err != nil || client != 45 {
		t.Errorf("ClientByTaxID = %d, %v", client, err)
	}

	_, err = r.ClientByTaxID(context.Background(), "000000000")
	if pe, ok := errors.AsPipelineError(err); !ok || pe.Code != errors.CodeClientNotFound {
		t.Errorf("expected client not found, got %v", err)
	}
}

func TestEndpoints(t *testing.T) {
	withFund := &models.ResolvedPoint{ClientCode: 45, BranchCode: 10, PointKey: "PK", FundKey: "FK"}
	noFund := &models.ResolvedPoint{ClientCode: 45, BranchCode: 10, PointKey: "PK"}

	origin, oi, dest, di := Endpoints(withFund, models.ConceptOfficeProvision)
	if origin != "FK" || oi != models.IndicatorFund || dest != "PK" || di != models.IndicatorPoint {
		t.Errorf("provision endpoints = %s/%s -> %s/%s", origin, oi, dest, di)
	}

	origin, oi, dest, di = Endpoints(withFund, models.ConceptCollection)
	if origin != "PK" || oi != models.IndicatorPoint || dest != "FK" || di != models.IndicatorFund {
		t.Errorf("collection endpoints = %s/%s -> %s/%s", origin, oi, dest, di)
	}

	// A point without a fund falls back to itself as the fund side.
	origin, _, dest, _ = Endpoints(noFund, models.ConceptCollection)
	if origin != "PK" || dest != "PK" {
		t.Errorf("fundless collection endpoints = %s -> %s", origin, dest)
	}
}

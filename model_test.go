package modello_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatturatools/modello"
)

func lineSchema() *modello.Schema {
	return modello.NewSchema("Riga",
		modello.Integer("numero", modello.MaxLen(4)),
		modello.String("descrizione", modello.MaxLen(100)),
		modello.Decimal("prezzo", modello.MaxLen(15)),
		modello.Decimal("quantita", modello.MaxLen(15), modello.Optional()),
	)
}

func orderSchema(riga *modello.Schema) *modello.Schema {
	return modello.NewSchema("Ordine",
		modello.String("numero", modello.MaxLen(20)),
		modello.Date("data"),
		modello.NestedList("righe", riga, modello.MinItems(1)),
		modello.List("note", modello.String("note", modello.MaxLen(200)), modello.Optional()),
	)
}

func TestSchemaNewPositional(t *testing.T) {
	riga := lineSchema()
	m, err := riga.New(1, "penna", "1.50")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := m.Get("numero"); got != int64(1) {
		t.Fatalf("numero = %v, want 1", got)
	}
	if got := m.Get("descrizione"); got != "penna" {
		t.Fatalf("descrizione = %v, want penna", got)
	}
	prezzo, ok := m.Get("prezzo").(decimal.Decimal)
	if !ok || prezzo.StringFixed(2) != "1.50" {
		t.Fatalf("prezzo = %v, want 1.50", m.Get("prezzo"))
	}
	if m.Get("quantita") != nil {
		t.Fatalf("quantita should be empty, got %v", m.Get("quantita"))
	}
}

func TestSchemaNewRejectsSurplusValues(t *testing.T) {
	riga := lineSchema()
	if _, err := riga.New(1, "a", "1.00", "2.00", "extra"); err == nil {
		t.Fatalf("expected an error for too many positional values")
	}
}

func TestSchemaFromMapUnknownField(t *testing.T) {
	riga := lineSchema()
	_, err := riga.FromMap(map[string]any{"numero": 1, "colore": "rosso"})
	if err == nil {
		t.Fatalf("expected an error for an unknown field name")
	}
	var sme *modello.SchemaMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("expected SchemaMismatchError, got %T: %v", err, err)
	}
}

func TestParseErrorCarriesPath(t *testing.T) {
	riga := lineSchema()
	_, err := riga.FromMap(map[string]any{"prezzo": "dodici"})
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	var pe *modello.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
	if pe.Path != "prezzo" {
		t.Fatalf("path = %q, want prezzo", pe.Path)
	}
}

func TestSetChecksValueKind(t *testing.T) {
	riga := lineSchema()
	m := riga.MustNew()
	if err := m.Set("numero", int64(7)); err != nil {
		t.Fatalf("Set int64: %v", err)
	}
	if err := m.Set("numero", "sette"); err == nil {
		t.Fatalf("Set should reject a string for an integer field")
	}
	// Set never runs constraint validation: an out-of-range value sticks.
	if err := m.Set("numero", int64(123456)); err != nil {
		t.Fatalf("Set out-of-range value: %v", err)
	}
}

func TestUpdatePatchesAndClears(t *testing.T) {
	riga := lineSchema()
	m := riga.MustNew(1, "penna", "1.50")
	if err := m.Update(map[string]any{"descrizione": "matita", "quantita": "3.00"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := m.Get("descrizione"); got != "matita" {
		t.Fatalf("descrizione = %v, want matita", got)
	}
	if m.Get("quantita") == nil {
		t.Fatalf("quantita should be set after the patch")
	}
	if err := m.Update(map[string]any{"quantita": nil}); err != nil {
		t.Fatalf("Update clear: %v", err)
	}
	if m.Get("quantita") != nil {
		t.Fatalf("quantita should be cleared")
	}
}

func TestModelEqual(t *testing.T) {
	riga := lineSchema()
	a := riga.MustNew(1, "penna", "1.50")
	b := riga.MustNew(1, "penna", "1.5")
	if !a.Equal(b) {
		t.Fatalf("1.50 and 1.5 should compare equal numerically")
	}
	if err := b.Set("descrizione", "matita"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if a.Equal(b) {
		t.Fatalf("models with different descrizione should not be equal")
	}
	empty := riga.MustNew()
	if !empty.Equal(nil) {
		t.Fatalf("an all-empty model should equal nil")
	}
	if a.Equal(nil) {
		t.Fatalf("a populated model should not equal nil")
	}
}

func TestCloneIsolatesComposites(t *testing.T) {
	riga := lineSchema()
	ordine := orderSchema(riga)
	m, err := ordine.FromMap(map[string]any{
		"numero": "2026/42",
		"data":   "2026-08-26",
		"righe": []any{
			map[string]any{"numero": 1, "descrizione": "penna", "prezzo": "1.50"},
		},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	clone := m.Clone()
	righe := clone.Get("righe").([]any)
	if err := righe[0].(*modello.Model).Set("descrizione", "matita"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	orig := m.Get("righe").([]any)[0].(*modello.Model)
	if got := orig.Get("descrizione"); got != "penna" {
		t.Fatalf("mutating the clone leaked into the original: descrizione = %v", got)
	}
}

func TestToTransportKeepsDeclarationOrder(t *testing.T) {
	riga := lineSchema()
	ordine := orderSchema(riga)
	m, err := ordine.FromMap(map[string]any{
		"data":   "2026-08-26",
		"numero": "2026/42",
		"righe": []any{
			map[string]any{"numero": 1, "descrizione": "penna", "prezzo": "1.50"},
		},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	tr := m.ToTransport()
	keys := tr.Keys()
	want := []string{"numero", "data", "righe"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
	if v, _ := tr.Get("data"); v != "2026-08-26" {
		t.Fatalf("data travels as %v, want the string form", v)
	}
	back, err := ordine.FromTransport(tr)
	if err != nil {
		t.Fatalf("FromTransport: %v", err)
	}
	if !m.Equal(back) {
		t.Fatalf("transport round trip changed the model:\n%s\n%s", m, back)
	}
}

func TestListParseTrimsTrailingEmpties(t *testing.T) {
	riga := lineSchema()
	ordine := orderSchema(riga)
	m, err := ordine.FromMap(map[string]any{
		"numero": "1",
		"data":   "2026-08-26",
		"righe": []any{
			map[string]any{"numero": 1, "descrizione": "penna", "prezzo": "1.50"},
			map[string]any{},
			map[string]any{},
		},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if got := len(m.Get("righe").([]any)); got != 1 {
		t.Fatalf("righe has %d elements, want 1 after trimming", got)
	}
}

func TestDateTimeParsing(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	s := modello.NewSchema("Evento",
		modello.DateTime("quando", modello.Location(rome)),
	)

	m := s.MustNew("2026-01-15T10:30:00+02:00")
	got := m.Get("quando").(time.Time)
	if !got.Equal(time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("", 2*3600))) {
		t.Fatalf("offset text parsed to %v", got)
	}

	m = s.MustNew("2026-01-15T10:30:00")
	got = m.Get("quando").(time.Time)
	if !got.Equal(time.Date(2026, 1, 15, 10, 30, 0, 0, rome)) {
		t.Fatalf("offset-less text should use the declared location, got %v", got)
	}
	if tm, ok := m.ToTransport().Get("quando"); !ok || tm != "2026-01-15T10:30:00+01:00" {
		t.Fatalf("transport form = %v", tm)
	}

	m = s.MustNew("2026-07-01")
	got = m.Get("quando").(time.Time)
	if !got.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, rome)) {
		t.Fatalf("a bare date should parse to midnight in the declared location, got %v", got)
	}

	m = s.MustNew(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC))
	if got := m.Get("quando").(time.Time); !got.Equal(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("time.Time values pass through, got %v", got)
	}

	if _, err := s.New("15/01/2026 10:30"); err == nil {
		t.Fatalf("non-ISO text must not parse")
	}
	var pe *modello.ParseError
	_, err = s.New(3.14)
	if !errors.As(err, &pe) {
		t.Fatalf("expected a parse error for a float, got %v", err)
	}
}

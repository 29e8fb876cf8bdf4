package fattura_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatturatools/modello"
	"github.com/fatturatools/modello/codec"
	"github.com/fatturatools/modello/fattura"
)

func sampleLine() map[string]any {
	return map[string]any{
		"numero_linea":    1,
		"descrizione":     "Consulenza",
		"quantita":        "10.00",
		"unita_misura":    "ore",
		"prezzo_unitario": "100.00",
		"prezzo_totale":   "1000.00",
		"aliquota_iva":    "22.00",
	}
}

func sampleInvoice(t *testing.T, lines ...map[string]any) *modello.Model {
	t.Helper()
	items := make([]any, len(lines))
	for i, l := range lines {
		items[i] = l
	}
	m, err := fattura.FatturaElettronica.FromMap(map[string]any{
		"header": map[string]any{
			"dati_trasmissione": map[string]any{
				"id_trasmittente":      map[string]any{"id_paese": "IT", "id_codice": "01234567890"},
				"progressivo_invio":    "00001",
				"formato_trasmissione": "FPR12",
				"codice_destinatario":  "ABCDEF1",
			},
			"cedente_prestatore": map[string]any{
				"dati_anagrafici": map[string]any{
					"id_fiscale_iva": map[string]any{"id_paese": "IT", "id_codice": "01234567890"},
					"anagrafica":     map[string]any{"denominazione": "Ditta Esempio srl"},
					"regime_fiscale": "RF01",
				},
				"sede": map[string]any{
					"indirizzo": "via Garibaldi 25",
					"cap":       "20142",
					"comune":    "Milano",
					"nazione":   "IT",
				},
			},
			"cessionario_committente": map[string]any{
				"dati_anagrafici": map[string]any{
					"id_fiscale_iva": map[string]any{"id_paese": "IT", "id_codice": "10993510018"},
					"anagrafica":     map[string]any{"denominazione": "Acme spa"},
				},
				"sede": map[string]any{
					"indirizzo": "corso Como 9",
					"cap":       "20154",
					"comune":    "Milano",
					"nazione":   "IT",
				},
			},
		},
		"body": []any{
			map[string]any{
				"dati_generali": map[string]any{
					"dati_generali_documento": map[string]any{
						"tipo_documento": "TD01",
						"divisa":         "EUR",
						"data":           "2026-01-15",
						"numero":         "42",
					},
				},
				"dettaglio_linee": items,
				"dati_riepilogo": []any{
					map[string]any{
						"aliquota_iva":       "22.00",
						"imponibile_importo": "1000.00",
						"imposta":            "220.00",
						"esigibilita_iva":    "I",
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	return m
}

func TestSampleInvoiceValidates(t *testing.T) {
	doc := sampleInvoice(t, sampleLine())
	r := modello.Validate(doc)
	if !r.Valid() {
		t.Fatalf("sample invoice should validate, got:\n%v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

func TestUnitaMisuraRequiredWhenQuantitaSet(t *testing.T) {
	line := sampleLine()
	delete(line, "unita_misura")
	doc := sampleInvoice(t, line)

	r := modello.Validate(doc)
	if len(r.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", r.Errors)
	}
	e := r.Errors[0]
	if e.Path != "body.0.dettaglio_linee.0.unita_misura" {
		t.Fatalf("path = %q, want body.0.dettaglio_linee.0.unita_misura", e.Path)
	}
	if e.Message != "field must be present when quantita is set" {
		t.Fatalf("message = %q", e.Message)
	}
}

func TestQuantitaRequiredWhenUnitaMisuraSet(t *testing.T) {
	line := sampleLine()
	delete(line, "quantita")
	doc := sampleInvoice(t, line)

	r := modello.Validate(doc)
	if len(r.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", r.Errors)
	}
	e := r.Errors[0]
	if e.Path != "body.0.dettaglio_linee.0.quantita" {
		t.Fatalf("path = %q, want body.0.dettaglio_linee.0.quantita", e.Path)
	}
	if e.Message != "field must be present when unita_misura is set" {
		t.Fatalf("message = %q", e.Message)
	}
}

func TestDestinatarioControls(t *testing.T) {
	find := func(r *modello.Report, code string) int {
		n := 0
		for _, i := range r.Errors {
			if i.Code == code {
				n++
			}
		}
		return n
	}

	// Seven zeros without a PEC address trips 00426.
	doc := sampleInvoice(t, sampleLine())
	header := doc.Get("header").(*modello.Model)
	trasmissione := header.Get("dati_trasmissione").(*modello.Model)
	if err := trasmissione.Update(map[string]any{"codice_destinatario": "0000000"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := find(modello.Validate(doc), "00426"); got != 1 {
		t.Fatalf("expected one 00426 error, got %v", modello.Validate(doc).Errors)
	}

	// A 7-character recipient code on a PA invoice trips 00427.
	doc = sampleInvoice(t, sampleLine())
	trasmissione = doc.Get("header").(*modello.Model).Get("dati_trasmissione").(*modello.Model)
	if err := trasmissione.Update(map[string]any{"formato_trasmissione": "FPA12"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := find(modello.Validate(doc), "00427"); got != 1 {
		t.Fatalf("expected one 00427 error, got %v", modello.Validate(doc).Errors)
	}
}

func TestAnagraficaNamingExclusivity(t *testing.T) {
	m, err := fattura.Anagrafica.FromMap(map[string]any{
		"denominazione": "Ditta Esempio srl",
		"nome":          "Mario",
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	r := modello.Validate(m)
	if r.Valid() {
		t.Fatalf("denominazione plus nome should not validate")
	}
	if r.Errors[0].Path != "nome" {
		t.Fatalf("error at %q, want nome", r.Errors[0].Path)
	}

	empty := fattura.Anagrafica.MustNew()
	r = modello.Validate(empty)
	found := false
	for _, e := range r.Errors {
		if strings.Contains(e.Message, "denominazione, must be set") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the naming-form error, got %v", r.Errors)
	}
}

func TestFullName(t *testing.T) {
	den, err := fattura.Anagrafica.FromMap(map[string]any{"denominazione": "Acme spa"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if got := fattura.FullName(den); got != "Acme spa" {
		t.Fatalf("FullName = %q", got)
	}
	persona, err := fattura.Anagrafica.FromMap(map[string]any{"nome": "Mario", "cognome": "Rossi"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if got := fattura.FullName(persona); got != "Mario Rossi" {
		t.Fatalf("FullName = %q", got)
	}
	if got := fattura.FullName(fattura.Anagrafica.MustNew()); got != "" {
		t.Fatalf("FullName of an unnamed anagrafica = %q", got)
	}
}

func TestNaturaAccompaniesZeroRate(t *testing.T) {
	line := sampleLine()
	line["aliquota_iva"] = "0.00"
	doc := sampleInvoice(t, line)
	r := modello.Validate(doc)
	found := 0
	for _, e := range r.Errors {
		if e.Code == "00400" {
			found++
			if e.Path != "body.0.dettaglio_linee.0.natura" {
				t.Fatalf("00400 at %q", e.Path)
			}
		}
	}
	if found != 1 {
		t.Fatalf("expected one 00400 error, got %v", r.Errors)
	}
}

func TestVersioneAttribute(t *testing.T) {
	doc := sampleInvoice(t, sampleLine())
	if got := fattura.Versione(doc); got != "FPR12" {
		t.Fatalf("Versione = %q, want FPR12", got)
	}
	var buf bytes.Buffer
	if err := codec.NewXML(fattura.Registry()).Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), `<FatturaElettronica versione="FPR12">`) {
		t.Fatalf("missing versione attribute:\n%s", buf.String())
	}
}

func TestInvoiceXMLRoundTrip(t *testing.T) {
	doc := sampleInvoice(t, sampleLine())
	c := codec.NewXML(fattura.Registry())
	var buf bytes.Buffer
	if err := c.Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	back, warns, err := c.Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v\noutput:\n%s", err, buf.String())
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if !doc.Equal(back) {
		t.Fatalf("round trip changed the invoice:\ndiffs: %v", modello.Compare(doc, back))
	}
}

func TestXMLLoadRejectsMissingHeader(t *testing.T) {
	doc := sampleInvoice(t, sampleLine())
	c := codec.NewXML(fattura.Registry())
	var buf bytes.Buffer
	if err := c.Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	start := strings.Index(out, "<FatturaElettronicaHeader>")
	end := strings.Index(out, "</FatturaElettronicaHeader>")
	if start < 0 || end < 0 {
		t.Fatalf("header element not found:\n%s", out)
	}
	headless := out[:start] + out[end+len("</FatturaElettronicaHeader>"):]

	_, _, err := c.Load(strings.NewReader(headless))
	var sm *modello.SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("an invoice without its header element must not load, got %v", err)
	}
	if sm.Path != "header" {
		t.Fatalf("error at %q, want header", sm.Path)
	}
}

func TestDatiTrasportoTimestamps(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	doc := sampleInvoice(t, sampleLine())
	generali := doc.Get("body").([]any)[0].(*modello.Model).Get("dati_generali").(*modello.Model)
	err = generali.Update(map[string]any{
		"dati_trasporto": map[string]any{
			"mezzo_trasporto":   "furgone",
			"data_ora_ritiro":   "2026-01-15T09:30:00",
			"data_ora_consegna": "2026-01-15T18:00:00+01:00",
		},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	trasporto := generali.Get("dati_trasporto").(*modello.Model)
	ritiro := trasporto.Get("data_ora_ritiro").(time.Time)
	want := time.Date(2026, 1, 15, 9, 30, 0, 0, rome)
	if !ritiro.Equal(want) {
		t.Fatalf("offset-less text should land in the Italian zone, got %v", ritiro)
	}
	consegna := trasporto.Get("data_ora_consegna").(time.Time)
	if !consegna.Equal(time.Date(2026, 1, 15, 18, 0, 0, 0, rome)) {
		t.Fatalf("offset text parsed to %v", consegna)
	}

	c := codec.NewXML(fattura.Registry())
	var buf bytes.Buffer
	if err := c.Write(doc, &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	rendered := "<DataOraRitiro>" + want.Format(time.RFC3339) + "</DataOraRitiro>"
	if !strings.Contains(out, rendered) {
		t.Fatalf("timestamp must render in RFC 3339 with its offset, want %s:\n%s", rendered, out)
	}
	back, _, err := c.Load(strings.NewReader(out))
	if err != nil {
		t.Fatalf("Load: %v\noutput:\n%s", err, out)
	}
	if !doc.Equal(back) {
		t.Fatalf("round trip changed the invoice: %v", modello.Compare(doc, back))
	}
}

func TestAddLineComputesDefaults(t *testing.T) {
	doc := sampleInvoice(t, sampleLine())
	body := doc.Get("body").([]any)[0].(*modello.Model)

	line, err := fattura.DettaglioLinee.FromMap(map[string]any{
		"descrizione":     "Trasferta",
		"quantita":        "2.00",
		"unita_misura":    "giorni",
		"prezzo_unitario": "150.00",
		"aliquota_iva":    "22.00",
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if err := fattura.AddLine(body, line); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	lines := body.Get("dettaglio_linee").([]any)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	added := lines[1].(*modello.Model)
	if got := added.Get("numero_linea"); got != int64(2) {
		t.Fatalf("numero_linea = %v, want 2", got)
	}
	totale := added.Get("prezzo_totale").(decimal.Decimal)
	if totale.StringFixed(2) != "300.00" {
		t.Fatalf("prezzo_totale = %s, want 300.00", totale.StringFixed(2))
	}
}

func TestBuildRiepilogoGroupsByRate(t *testing.T) {
	lineB := map[string]any{
		"numero_linea":    2,
		"descrizione":     "Manuali",
		"prezzo_unitario": "50.00",
		"prezzo_totale":   "50.00",
		"aliquota_iva":    "4.00",
	}
	doc := sampleInvoice(t, sampleLine(), lineB)
	body := doc.Get("body").([]any)[0].(*modello.Model)
	if err := fattura.BuildRiepilogo(body); err != nil {
		t.Fatalf("BuildRiepilogo: %v", err)
	}

	riepiloghi := body.Get("dati_riepilogo").([]any)
	if len(riepiloghi) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(riepiloghi))
	}
	first := riepiloghi[0].(*modello.Model)
	if got := first.Get("aliquota_iva").(decimal.Decimal).StringFixed(2); got != "4.00" {
		t.Fatalf("summaries should be sorted by rate, first = %s", got)
	}
	second := riepiloghi[1].(*modello.Model)
	if got := second.Get("imposta").(decimal.Decimal).StringFixed(2); got != "220.00" {
		t.Fatalf("imposta = %s, want 220.00", got)
	}

	if err := fattura.BuildImportoTotale(body); err != nil {
		t.Fatalf("BuildImportoTotale: %v", err)
	}
	documento := body.Get("dati_generali").(*modello.Model).Get("dati_generali_documento").(*modello.Model)
	totale := documento.Get("importo_totale_documento").(decimal.Decimal)
	// 1000 + 220 + 50 + 2 of VAT at 4%.
	if totale.StringFixed(2) != "1272.00" {
		t.Fatalf("importo_totale_documento = %s, want 1272.00", totale.StringFixed(2))
	}
}

func TestNewProgressivoInvio(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := fattura.NewProgressivoInvio()
		if err != nil {
			t.Fatalf("NewProgressivoInvio: %v", err)
		}
		if len(id) == 0 || len(id) > 10 {
			t.Fatalf("identifier %q must be 1 to 10 characters", id)
		}
		if seen[id] {
			t.Fatalf("identifier %q generated twice", id)
		}
		seen[id] = true
	}
}

// Package fattura declares the document catalog for the Italian electronic
// invoice (FatturaPA 1.2): the schemas, their cross-field rules keyed by the
// official control codes, and helpers for filling in the computed parts of a
// document.
package fattura

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatturatools/modello"
)

// Timestamps without an offset are interpreted in the invoicing country's
// zone; fall back to the host zone when the tz database lacks it.
var romeLocation = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.Local
	}
	return loc
}()

// IdTrasmittente identifies the transmitting party by country and fiscal code.
var IdTrasmittente = modello.NewSchema("IdTrasmittente",
	modello.String("id_paese", modello.Length(2)),
	modello.String("id_codice", modello.MaxLen(28)),
)

// IdFiscaleIVA is the VAT identifier of a party.
var IdFiscaleIVA = modello.NewSchema("IdFiscaleIVA",
	modello.String("id_paese", modello.Length(2)),
	modello.String("id_codice", modello.MaxLen(28)),
)

var ContattiTrasmittente = modello.NewSchema("ContattiTrasmittente",
	modello.String("telefono", modello.MinLen(5), modello.MaxLen(12), modello.Optional()),
	modello.String("email", modello.MinLen(7), modello.MaxLen(256), modello.Optional()),
)

// DatiTrasmissione carries the transmission envelope. Its rules encode the
// SDI controls 00426 and 00427 on the recipient fields.
var DatiTrasmissione = modello.NewSchema("DatiTrasmissione",
	modello.Nested("id_trasmittente", IdTrasmittente),
	modello.String("progressivo_invio", modello.MaxLen(10)),
	modello.String("formato_trasmissione", modello.Length(5), modello.Choices("FPR12", "FPA12")),
	modello.String("codice_destinatario", modello.MinLen(6), modello.MaxLen(7),
		modello.Optional(), modello.Default("0000000")),
	modello.Nested("contatti_trasmittente", ContattiTrasmittente, modello.Optional()),
	modello.String("pec_destinatario", modello.MinLen(8), modello.MaxLen(256),
		modello.Optional(), modello.Tag("PECDestinatario")),
).Rule(ruleDestinatario)

func ruleDestinatario(m *modello.Model, p modello.Path, r *modello.Report) {
	cod, hasCod := m.Get("codice_destinatario").(string)
	_, hasPec := m.Get("pec_destinatario").(string)
	formato, _ := m.Get("formato_trasmissione").(string)

	if !hasCod && !hasPec {
		r.AddError(p.Field("codice_destinatario"), modello.CodeBusinessRule,
			"one of codice_destinatario or pec_destinatario must be set")
		return
	}

	// A recipient reached over PEC is addressed with seven zeros plus the
	// PECDestinatario element; the two fields must agree.
	if !hasPec && cod == "0000000" {
		r.AddError(p.Field("pec_destinatario"), "00426",
			"pec_destinatario has no value while codice_destinatario has value 0000000")
	}
	if hasPec && hasCod && cod != "0000000" {
		r.AddError(p.Field("pec_destinatario"), "00426",
			"pec_destinatario has value while codice_destinatario has value 0000000")
	}

	if formato == "FPA12" && len(cod) == 7 {
		r.AddError(p.Field("codice_destinatario"), "00427",
			"codice_destinatario has 7 characters on a Fattura PA")
	}
	if formato == "FPR12" && len(cod) == 6 {
		r.AddError(p.Field("codice_destinatario"), "00427",
			"codice_destinatario has 6 characters on a Fattura Privati")
	}
}

// Anagrafica names a party either by denominazione or by nome plus cognome;
// the two forms are mutually exclusive.
var Anagrafica = modello.NewSchema("Anagrafica",
	modello.String("denominazione", modello.MaxLen(80), modello.Optional()),
	modello.String("nome", modello.MaxLen(60), modello.Optional()),
	modello.String("cognome", modello.MaxLen(60), modello.Optional()),
	modello.String("titolo", modello.MinLen(2), modello.MaxLen(10), modello.Optional()),
	modello.String("cod_eori", modello.MinLen(13), modello.MaxLen(17),
		modello.Optional(), modello.Tag("CodEORI")),
).Rule(ruleFullName)

func ruleFullName(m *modello.Model, p modello.Path, r *modello.Report) {
	_, hasDen := m.Get("denominazione").(string)
	_, hasNome := m.Get("nome").(string)
	_, hasCognome := m.Get("cognome").(string)

	if !hasDen {
		switch {
		case !hasNome && !hasCognome:
			r.AddError(p.Field("denominazione"), modello.CodeBusinessRule,
				"nome and cognome, or denominazione, must be set")
		case !hasNome:
			r.AddError(p.Field("nome"), modello.CodeBusinessRule,
				"nome and cognome must both be set if denominazione is empty")
		case !hasCognome:
			r.AddError(p.Field("cognome"), modello.CodeBusinessRule,
				"nome and cognome must both be set if denominazione is empty")
		}
		return
	}
	if hasNome {
		r.AddError(p.Field("nome"), modello.CodeBusinessRule,
			"nome must not be set if denominazione is not empty")
	}
	if hasCognome {
		r.AddError(p.Field("cognome"), modello.CodeBusinessRule,
			"cognome must not be set if denominazione is not empty")
	}
}

// FullName returns denominazione or "nome cognome", whichever the anagrafica
// carries, and the empty string when neither naming form is set.
func FullName(anagrafica *modello.Model) string {
	if anagrafica == nil {
		return ""
	}
	if den, ok := anagrafica.Get("denominazione").(string); ok {
		return den
	}
	nome, okN := anagrafica.Get("nome").(string)
	cognome, okC := anagrafica.Get("cognome").(string)
	if okN && okC {
		return nome + " " + cognome
	}
	return ""
}

var DatiAnagraficiCedente = modello.NewSchema("DatiAnagraficiCedente",
	modello.Nested("id_fiscale_iva", IdFiscaleIVA),
	modello.String("codice_fiscale", modello.MinLen(11), modello.MaxLen(16), modello.Optional()),
	modello.Nested("anagrafica", Anagrafica),
	modello.String("regime_fiscale", modello.Length(4), modello.Choices(
		"RF01", "RF02", "RF04", "RF05", "RF06", "RF07", "RF08", "RF09", "RF10",
		"RF11", "RF12", "RF13", "RF14", "RF15", "RF16", "RF17", "RF18", "RF19")),
)

// DatiAnagraficiCessionario requires at least one fiscal identifier (00417).
var DatiAnagraficiCessionario = modello.NewSchema("DatiAnagraficiCessionario",
	modello.Nested("id_fiscale_iva", IdFiscaleIVA, modello.Optional()),
	modello.String("codice_fiscale", modello.MinLen(11), modello.MaxLen(16), modello.Optional()),
	modello.Nested("anagrafica", Anagrafica),
).Rule(func(m *modello.Model, p modello.Path, r *modello.Report) {
	iva, _ := m.Get("id_fiscale_iva").(*modello.Model)
	_, hasCF := m.Get("codice_fiscale").(string)
	if (iva == nil || !iva.HasValue()) && !hasCF {
		r.AddError(p.Field("id_fiscale_iva"), "00417",
			"at least one of id_fiscale_iva and codice_fiscale needs to have a value")
	}
})

var Sede = modello.NewSchema("Sede",
	modello.String("indirizzo", modello.MaxLen(60)),
	modello.String("numero_civico", modello.MaxLen(8), modello.Optional()),
	modello.String("cap", modello.Length(5), modello.Tag("CAP")),
	modello.String("comune", modello.MaxLen(60)),
	modello.String("provincia", modello.Length(2), modello.Optional()),
	modello.String("nazione", modello.Length(2)),
)

var CedentePrestatore = modello.NewSchema("CedentePrestatore",
	modello.Nested("dati_anagrafici", DatiAnagraficiCedente),
	modello.Nested("sede", Sede),
	modello.String("riferimento_amministrazione", modello.MaxLen(20), modello.Optional()),
)

var CessionarioCommittente = modello.NewSchema("CessionarioCommittente",
	modello.Nested("dati_anagrafici", DatiAnagraficiCessionario),
	modello.Nested("sede", Sede),
)

var reHasDigit = regexp.MustCompile(`\d`)

// DatiGeneraliDocumento is the document header: kind, currency, date, number
// and free-form causali. Control 00425 wants a digit in the number.
var DatiGeneraliDocumento = modello.NewSchema("DatiGeneraliDocumento",
	modello.String("tipo_documento", modello.Length(4),
		modello.Choices("TD01", "TD02", "TD03", "TD04", "TD05", "TD06")),
	modello.String("divisa"),
	modello.Date("data"),
	modello.String("numero", modello.MaxLen(20)),
	modello.Decimal("importo_totale_documento", modello.MaxLen(15), modello.Optional()),
	modello.List("causale", modello.String("causale", modello.MaxLen(200)), modello.Optional()),
	modello.String("art73", modello.Length(2), modello.Choices("SI"),
		modello.Optional(), modello.Tag("Art73")),
).Rule(func(m *modello.Model, p modello.Path, r *modello.Report) {
	numero, ok := m.Get("numero").(string)
	if !ok || !reHasDigit.MatchString(numero) {
		r.AddError(p.Field("numero"), "00425", "numero must contain at least one number")
	}
})

var DatiTrasporto = modello.NewSchema("DatiTrasporto",
	modello.String("mezzo_trasporto", modello.MaxLen(80), modello.Optional()),
	modello.String("causale_trasporto", modello.MaxLen(100), modello.Optional()),
	modello.Integer("numero_colli", modello.MaxLen(4), modello.Optional()),
	modello.DateTime("data_ora_ritiro", modello.Optional(), modello.Location(romeLocation)),
	modello.DateTime("data_ora_consegna", modello.Optional(), modello.Location(romeLocation)),
)

var DatiGenerali = modello.NewSchema("DatiGenerali",
	modello.Nested("dati_generali_documento", DatiGeneraliDocumento),
	modello.Nested("dati_trasporto", DatiTrasporto, modello.Optional()),
)

var nature = []any{"N1", "N2", "N3", "N4", "N5", "N6", "N7"}

// DettaglioLinee is one invoice line. quantita and unita_misura come in
// pairs, and natura must accompany a zero VAT rate (00400/00401).
var DettaglioLinee = modello.NewSchema("DettaglioLinee",
	modello.Integer("numero_linea", modello.MaxLen(4)),
	modello.String("descrizione", modello.MaxLen(1000)),
	modello.Decimal("quantita", modello.MaxLen(21), modello.Optional()),
	modello.String("unita_misura", modello.MaxLen(10), modello.Optional()),
	modello.Decimal("prezzo_unitario", modello.MaxLen(21)),
	modello.Decimal("prezzo_totale", modello.MaxLen(21)),
	modello.Decimal("aliquota_iva", modello.MaxLen(6), modello.Tag("AliquotaIVA")),
	modello.String("ritenuta", modello.Length(2), modello.Choices("SI"), modello.Optional()),
	modello.String("natura", modello.Length(2), modello.Choices(nature...), modello.Optional()),
).Rule(ruleLinea)

func ruleLinea(m *modello.Model, p modello.Path, r *modello.Report) {
	_, hasQuantita := m.Get("quantita").(decimal.Decimal)
	_, hasUnita := m.Get("unita_misura").(string)
	if !hasQuantita && hasUnita {
		r.AddError(p.Field("quantita"), modello.CodeBusinessRule,
			"field must be present when unita_misura is set")
	}
	if hasQuantita && !hasUnita {
		r.AddError(p.Field("unita_misura"), modello.CodeBusinessRule,
			"field must be present when quantita is set")
	}

	aliquota, hasAliquota := m.Get("aliquota_iva").(decimal.Decimal)
	_, hasNatura := m.Get("natura").(string)
	if hasAliquota && aliquota.IsZero() && !hasNatura {
		r.AddError(p.Field("natura"), "00400",
			"natura non presente a fronte di aliquota_iva pari a zero")
	}
	if hasAliquota && !aliquota.IsZero() && hasNatura {
		r.AddError(p.Field("natura"), "00401",
			"natura presente a fronte di aliquota_iva diversa da zero")
	}
}

// DatiRiepilogo groups the taxable amounts per VAT rate (00429/00430 mirror
// the per-line natura controls).
var DatiRiepilogo = modello.NewSchema("DatiRiepilogo",
	modello.Decimal("aliquota_iva", modello.MaxLen(6), modello.Tag("AliquotaIVA")),
	modello.String("natura", modello.Length(2), modello.Choices(nature...), modello.Optional()),
	modello.Decimal("imponibile_importo", modello.MaxLen(15)),
	modello.Decimal("imposta", modello.MaxLen(15)),
	modello.String("esigibilita_iva", modello.Length(1), modello.Choices("I", "D", "S"),
		modello.Optional(), modello.Tag("EsigibilitaIVA")),
).Rule(func(m *modello.Model, p modello.Path, r *modello.Report) {
	aliquota, ok := m.Get("aliquota_iva").(decimal.Decimal)
	_, hasNatura := m.Get("natura").(string)
	if ok && aliquota.IsZero() && !hasNatura {
		r.AddError(p.Field("natura"), "00429", "field is empty while aliquota_iva is zero")
	}
	if ok && !aliquota.IsZero() && hasNatura {
		r.AddError(p.Field("natura"), "00430", "field has value while aliquota_iva is not zero")
	}
})

var Allegati = modello.NewSchema("Allegati",
	modello.String("nome_attachment", modello.MaxLen(60)),
	modello.String("algoritmo_compressione", modello.MaxLen(10), modello.Optional()),
	modello.String("formato_attachment", modello.MaxLen(10), modello.Optional()),
	modello.String("descrizione_attachment", modello.MaxLen(100), modello.Optional()),
	modello.Bytes("attachment"),
)

// Body is one FatturaElettronicaBody element. Control 00419 wants a summary
// whenever lines carry a VAT rate.
var Body = modello.NewSchema("FatturaElettronicaBody",
	modello.Nested("dati_generali", DatiGenerali),
	modello.NestedList("dettaglio_linee", DettaglioLinee, modello.MinItems(1)),
	modello.NestedList("dati_riepilogo", DatiRiepilogo, modello.Optional()),
	modello.NestedList("allegati", Allegati, modello.Optional()),
).Rule(func(m *modello.Model, p modello.Path, r *modello.Report) {
	riepiloghi, _ := m.Get("dati_riepilogo").([]any)
	if len(riepiloghi) > 0 {
		return
	}
	linee, _ := m.Get("dettaglio_linee").([]any)
	for _, item := range linee {
		linea, ok := item.(*modello.Model)
		if !ok {
			continue
		}
		if _, ok := linea.Get("aliquota_iva").(decimal.Decimal); ok {
			r.AddError(p.Field("dati_riepilogo"), "00419",
				"dati_riepilogo is empty while there is at least an aliquota_iva in dettaglio_linee")
			return
		}
	}
})

var Header = modello.NewSchema("FatturaElettronicaHeader",
	modello.Nested("dati_trasmissione", DatiTrasmissione),
	modello.Nested("cedente_prestatore", CedentePrestatore),
	modello.Nested("cessionario_committente", CessionarioCommittente),
	modello.String("soggetto_emittente", modello.Length(2), modello.Choices("CC", "TZ"),
		modello.Optional()),
)

// FatturaElettronica is the document root. The versione markup attribute
// mirrors dati_trasmissione.formato_trasmissione; 00428 rejects values
// outside the known format set, which the formato_trasmissione choice
// constraint already covers.
var FatturaElettronica = modello.NewSchema("FatturaElettronica",
	modello.Nested("header", Header, modello.Tag("FatturaElettronicaHeader")),
	modello.NestedList("body", Body, modello.MinItems(1), modello.Tag("FatturaElettronicaBody")),
).Attr("versione", Versione)

// Versione returns the declared transmission format of a document, or "".
func Versione(doc *modello.Model) string {
	header, _ := doc.Get("header").(*modello.Model)
	if header == nil {
		return ""
	}
	trasmissione, _ := header.Get("dati_trasmissione").(*modello.Model)
	if trasmissione == nil {
		return ""
	}
	formato, _ := trasmissione.Get("formato_trasmissione").(string)
	return formato
}

// Registry returns a root-name registry over the document catalog, for the
// codecs that detect the document type from the input.
func Registry() *modello.Registry {
	return modello.NewRegistry(FatturaElettronica)
}

// Strings builds the raw sequence a scalar list field ingests.
func Strings(values ...string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

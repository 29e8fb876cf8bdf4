package fattura

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatturatools/modello"
)

// progressivoChars is the alphabet accepted by the ProgressivoInvio element.
const progressivoChars = "+-./0123456789=@ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

var progressivoMu sync.Mutex
var progressivoLastTS int64
var progressivoSeq int64

// NewProgressivoInvio generates a transmission identifier unique within this
// process: the current unix second and a per-second counter, packed and
// encoded over the element's 43-character alphabet. The result is at most 10
// characters long until well past year 9999.
func NewProgressivoInvio() (string, error) {
	progressivoMu.Lock()
	defer progressivoMu.Unlock()
	ts := time.Now().Unix()
	if ts != progressivoLastTS {
		progressivoLastTS = ts
		progressivoSeq = 0
	} else {
		progressivoSeq++
		if progressivoSeq >= 1<<16 {
			return "", fmt.Errorf("fattura: progressivo_invio counter overflow at %d per second", int64(1)<<16)
		}
	}
	value := ts<<16 | progressivoSeq
	var buf [16]byte
	i := len(buf)
	for value > 0 {
		i--
		buf[i] = progressivoChars[value%43]
		value /= 43
	}
	return string(buf[i:]), nil
}

// AddLine appends an invoice line to the body's dettaglio_linee, filling in
// numero_linea with the next position and prezzo_totale with
// prezzo_unitario times quantita (or prezzo_unitario alone for unmeasured
// lines) when the caller left them empty.
func AddLine(body *modello.Model, line *modello.Model) error {
	lines, _ := body.Get("dettaglio_linee").([]any)

	patch := map[string]any{}
	if line.Get("numero_linea") == nil {
		patch["numero_linea"] = int64(len(lines) + 1)
	}
	if line.Get("prezzo_totale") == nil {
		if unitario, ok := line.Get("prezzo_unitario").(decimal.Decimal); ok {
			totale := unitario
			if quantita, ok := line.Get("quantita").(decimal.Decimal); ok {
				totale = unitario.Mul(quantita)
			}
			patch["prezzo_totale"] = totale
		}
	}
	if len(patch) > 0 {
		if err := line.Update(patch); err != nil {
			return err
		}
	}

	return body.Set("dettaglio_linee", append(lines, line))
}

// BuildRiepilogo recomputes the body's dati_riepilogo from its lines: one
// summary per VAT rate in ascending rate order, imponibile as the sum of the
// line totals and imposta as imponibile times the rate. Existing summaries
// are replaced.
func BuildRiepilogo(body *modello.Model) error {
	type group struct {
		aliquota   decimal.Decimal
		imponibile decimal.Decimal
	}
	var groups []*group

	lines, _ := body.Get("dettaglio_linee").([]any)
	for _, item := range lines {
		line, ok := item.(*modello.Model)
		if !ok {
			continue
		}
		aliquota, ok := line.Get("aliquota_iva").(decimal.Decimal)
		if !ok {
			continue
		}
		totale, _ := line.Get("prezzo_totale").(decimal.Decimal)
		var g *group
		for _, cand := range groups {
			if cand.aliquota.Equal(aliquota) {
				g = cand
				break
			}
		}
		if g == nil {
			g = &group{aliquota: aliquota}
			groups = append(groups, g)
		}
		g.imponibile = g.imponibile.Add(totale)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].aliquota.Cmp(groups[j].aliquota) < 0
	})

	riepiloghi := make([]any, 0, len(groups))
	hundred := decimal.NewFromInt(100)
	for _, g := range groups {
		imposta := g.imponibile.Mul(g.aliquota).Div(hundred)
		r, err := DatiRiepilogo.New(g.aliquota, nil, g.imponibile, imposta, "I")
		if err != nil {
			return err
		}
		riepiloghi = append(riepiloghi, r)
	}
	return body.Set("dati_riepilogo", riepiloghi)
}

// BuildImportoTotale recomputes
// dati_generali.dati_generali_documento.importo_totale_documento as the sum
// of imponibile plus imposta over the body's dati_riepilogo.
func BuildImportoTotale(body *modello.Model) error {
	var totale decimal.Decimal
	riepiloghi, _ := body.Get("dati_riepilogo").([]any)
	for _, item := range riepiloghi {
		r, ok := item.(*modello.Model)
		if !ok {
			continue
		}
		if imponibile, ok := r.Get("imponibile_importo").(decimal.Decimal); ok {
			totale = totale.Add(imponibile)
		}
		if imposta, ok := r.Get("imposta").(decimal.Decimal); ok {
			totale = totale.Add(imposta)
		}
	}

	generali, ok := body.Get("dati_generali").(*modello.Model)
	if !ok {
		return fmt.Errorf("fattura: body has no dati_generali to update")
	}
	documento, ok := generali.Get("dati_generali_documento").(*modello.Model)
	if !ok {
		return fmt.Errorf("fattura: dati_generali has no dati_generali_documento to update")
	}
	return documento.Set("importo_totale_documento", totale)
}

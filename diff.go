package modello

import "fmt"

// DiffKind classifies one difference between two models of the same schema.
type DiffKind int

const (
	// DiffChanged marks a field set on both sides with unequal normalized
	// values.
	DiffChanged DiffKind = iota
	// DiffMissingFirst marks a field set only on the second side.
	DiffMissingFirst
	// DiffMissingSecond marks a field set only on the first side.
	DiffMissingSecond
	// DiffExtraElements marks a repeated field whose sides differ in length;
	// exactly one such record describes the whole surplus.
	DiffExtraElements
)

// Difference is one discrepancy at a path. First and Second hold printable
// forms of the sides where applicable.
type Difference struct {
	Path   Path
	Kind   DiffKind
	First  string
	Second string

	firstLen  int
	secondLen int
}

func (d Difference) String() string {
	switch d.Kind {
	case DiffMissingFirst:
		return fmt.Sprintf("%s: first is not set", d.Path)
	case DiffMissingSecond:
		return fmt.Sprintf("%s: second is not set", d.Path)
	case DiffExtraElements:
		longer, n := "first", d.firstLen-d.secondLen
		if d.secondLen > d.firstLen {
			longer, n = "second", d.secondLen-d.firstLen
		}
		if n == 1 {
			return fmt.Sprintf("%s: %s has 1 extra element", d.Path, longer)
		}
		return fmt.Sprintf("%s: %s has %d extra elements", d.Path, longer, n)
	default:
		return fmt.Sprintf("%s: first: %s, second: %s", d.Path, d.First, d.Second)
	}
}

type diffRecorder struct {
	out []Difference
}

func (r *diffRecorder) changed(p Path, first, second string) {
	r.out = append(r.out, Difference{Path: p, Kind: DiffChanged, First: first, Second: second})
}

func (r *diffRecorder) onlyFirst(p Path, first string) {
	r.out = append(r.out, Difference{Path: p, Kind: DiffMissingSecond, First: first})
}

func (r *diffRecorder) onlySecond(p Path, second string) {
	r.out = append(r.out, Difference{Path: p, Kind: DiffMissingFirst, Second: second})
}

func (r *diffRecorder) extra(p Path, firstLen, secondLen int) {
	r.out = append(r.out, Difference{
		Path: p, Kind: DiffExtraElements,
		First:    fmt.Sprintf("%d elements", firstLen),
		Second:   fmt.Sprintf("%d elements", secondLen),
		firstLen: firstLen, secondLen: secondLen,
	})
}

// Compare walks two models of the same schema field by field in declaration
// order and returns the path-qualified differences. Scalar values compare
// normalized: decimals numerically, so trailing zeros beyond a field's
// declared places never count as a change. Repeated fields compare
// element-wise by position up to the shorter length, with one extra-elements
// record for any surplus; there is no reordering or best-match alignment.
//
// An empty result means the two models are diff-equivalent, which is
// independent of strict Equal. Comparing models of different schemas is a
// programmer error and panics.
func Compare(first, second *Model) []Difference {
	if first.schema != second.schema {
		panic(fmt.Sprintf("modello: cannot compare %s against %s", first.schema.name, second.schema.name))
	}
	rec := &diffRecorder{}
	first.diffInto(rec, "", second)
	return rec.out
}

// Package tagger defines the BIO label alphabet, entity categories and the
// span type shared by every stage of the pipeline.
package tagger

import (
	"fmt"
	"strings"
)

// Category is an entity class.
type Category string

const (
	PER  Category = "PER"
	ORG  Category = "ORG"
	LOC  Category = "LOC"
	MISC Category = "MISC"
)

// Categories lists the entity classes in precedence order.
var Categories = []Category{PER, ORG, LOC, MISC}

// ParseCategory accepts the upper or lower case category name.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(s))) {
	case PER:
		return PER, nil
	case ORG:
		return ORG, nil
	case LOC:
		return LOC, nil
	case MISC:
		return MISC, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Label is a BIO tag. Labels are numbered in lexicographic order of their
// string form, so a lower index always means a lexicographically earlier label.
type Label uint8

const (
	BLoc Label = iota
	BMisc
	BOrg
	BPer
	ILoc
	IMisc
	IOrg
	IPer
	O
)

// NumLabels is the size of the label alphabet.
const NumLabels = 9

// Impossible is the log-space score of a forbidden choice. It is finite so
// score tables stay JSON-encodable, and far enough below any real score that
// a path using it can never win.
const Impossible = -1e9

var labelNames = [NumLabels]string{
	"B-LOC", "B-MISC", "B-ORG", "B-PER", "I-LOC", "I-MISC", "I-ORG", "I-PER", "O",
}

// Labels returns the alphabet in index order.
func Labels() []Label {
	out := make([]Label, NumLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

func (l Label) String() string {
	if int(l) < NumLabels {
		return labelNames[l]
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

// ParseLabel parses "B-PER", "I-LOC", "O" and so on.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return O, fmt.Errorf("unknown label %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(b []byte) error {
	v, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (l Label) IsBegin() bool { return l <= BPer }
func (l Label) IsInside() bool { return l >= ILoc && l <= IPer }
func (l Label) IsOutside() bool { return l == O }

// Category returns the entity class of a B or I label, or "" for O.
func (l Label) Category() Category {
	switch l {
	case BLoc, ILoc:
		return LOC
	case BMisc, IMisc:
		return MISC
	case BOrg, IOrg:
		return ORG
	case BPer, IPer:
		return PER
	}
	return ""
}

// Begin returns the B label of c.
func Begin(c Category) Label {
	switch c {
	case LOC:
		return BLoc
	case MISC:
		return BMisc
	case ORG:
		return BOrg
	case PER:
		return BPer
	}
	return O
}

// Inside returns the I label of c.
func Inside(c Category) Label {
	switch c {
	case LOC:
		return ILoc
	case MISC:
		return IMisc
	case ORG:
		return IOrg
	case PER:
		return IPer
	}
	return O
}

// ValidTransition reports whether next may directly follow prev.
// I-X is only allowed after B-X or I-X.
func ValidTransition(prev, next Label) bool {
	if !next.IsInside() {
		return true
	}
	return prev != O && prev.Category() == next.Category()
}

// ValidStart reports whether l may label the first token.
func ValidStart(l Label) bool { return !l.IsInside() }

// Transitions is a label-pair score matrix indexed [prev][next].
type Transitions [NumLabels][NumLabels]float64

// Scores holds one score per label.
type Scores [NumLabels]float64

// Constrain overwrites every structurally invalid entry with Impossible.
// Either argument may be nil.
func Constrain(trans *Transitions, initial *Scores) {
	for p := 0; p < NumLabels; p++ {
		for n := 0; n < NumLabels; n++ {
			if trans != nil && !ValidTransition(Label(p), Label(n)) {
				trans[p][n] = Impossible
			}
		}
		if initial != nil && !ValidStart(Label(p)) {
			initial[p] = Impossible
		}
	}
}

// ValidSequence reports whether labels is a well-formed BIO sequence.
func ValidSequence(labels []Label) bool {
	for i, l := range labels {
		if i == 0 {
			if !ValidStart(l) {
				return false
			}
			continue
		}
		if !ValidTransition(labels[i-1], l) {
			return false
		}
	}
	return true
}

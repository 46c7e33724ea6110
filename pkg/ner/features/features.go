// Package features turns tokens into per-token feature sets.
package features

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/stoplist"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// None is the context value used past either end of the sequence.
const None = "<none>"

// Kind is the type of a feature value.
type Kind uint8

const (
	Bool Kind = iota
	Categorical
	Numeric
)

// Value is one feature value.
type Value struct {
	Kind Kind
	B    bool
	S    string
	N    float64
}

func BoolValue(b bool) Value { return Value{Kind: Bool, B: b} }
func StringValue(s string) Value { return Value{Kind: Categorical, S: s} }
func NumberValue(n float64) Value { return Value{Kind: Numeric, N: n} }

// MarshalJSON encodes the value as a plain JSON bool, string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Bool:
		return json.Marshal(v.B)
	case Numeric:
		return json.Marshal(v.N)
	}
	return json.Marshal(v.S)
}

// UnmarshalJSON decodes a plain JSON bool, string or number.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = BoolValue(x)
	case float64:
		*v = NumberValue(x)
	case string:
		*v = StringValue(x)
	default:
		*v = StringValue(string(b))
	}
	return nil
}

// FeatureSet maps feature names to values for one token.
type FeatureSet map[string]Value

// Bool returns a boolean feature, false when absent.
func (f FeatureSet) Bool(name string) bool {
	v, ok := f[name]
	return ok && v.Kind == Bool && v.B
}

// Categorical returns a categorical feature, "" when absent.
func (f FeatureSet) Categorical(name string) string {
	if v, ok := f[name]; ok && v.Kind == Categorical {
		return v.S
	}
	return ""
}

// Activation is a named input to a linear model.
type Activation struct {
	Name  string
	Value float64
}

// Active lists the activations of f sorted by name: true booleans as
// "name", categoricals as "name=value", numerics as "name" carrying the value.
func (f FeatureSet) Active() []Activation {
	out := make([]Activation, 0, len(f))
	for name, v := range f {
		switch v.Kind {
		case Bool:
			if v.B {
				out = append(out, Activation{Name: name, Value: 1})
			}
		case Categorical:
			out = append(out, Activation{Name: name + "=" + v.S, Value: 1})
		case Numeric:
			out = append(out, Activation{Name: name, Value: v.N})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists the names of every activation of f.
func (f FeatureSet) Names() []string {
	act := f.Active()
	out := make([]string, len(act))
	for i, a := range act {
		out[i] = a.Name
	}
	return out
}

// Extractor computes feature sets against read-only lookup tables.
type Extractor struct {
	gaz   *gazetteer.Set
	stops *stoplist.List
}

// NewExtractor creates an extractor. Either table may be nil.
func NewExtractor(gaz *gazetteer.Set, stops *stoplist.List) *Extractor {
	return &Extractor{gaz: gaz, stops: stops}
}

// Extract computes features with the default stoplist.
func Extract(tokens []tokenizer.Token, gaz *gazetteer.Set) []FeatureSet {
	return NewExtractor(gaz, stoplist.Default()).Extract(tokens)
}

// Extract returns one feature set per token.
func (e *Extractor) Extract(tokens []tokenizer.Token) []FeatureSet {
	out := make([]FeatureSet, len(tokens))
	for i := range tokens {
		out[i] = e.token(tokens, i)
	}
	return out
}

func (e *Extractor) token(tokens []tokenizer.Token, i int) FeatureSet {
	text := tokens[i].Text
	word := WordKey(text)
	n := utf8.RuneCountInString(text)
	f := FeatureSet{
		"bias":   BoolValue(true),
		"word":   StringValue(word),
		"shape":  StringValue(Shape(text)),
		"length": NumberValue(float64(n)),

		"is_capitalized": BoolValue(isCapitalized(text)),
		"is_all_caps":    BoolValue(isAllCaps(text)),
		"is_mixed_case":  BoolValue(isMixedCase(text)),
		"is_digit":       BoolValue(isDigits(text)),
		"has_hyphen":     BoolValue(strings.ContainsAny(text, "-‐‑")),
		"has_period":     BoolValue(strings.Contains(text, ".")),
		"is_punctuation": BoolValue(isPunct(text)),
		"is_stopword":    BoolValue(e.stops.IsStop(word)),

		"is_first": BoolValue(i == 0),
		"is_last":  BoolValue(i == len(tokens)-1),
		"BOS":      BoolValue(i == 0),
		"EOS":      BoolValue(i == len(tokens)-1),
	}

	lower := []rune(strings.ToLower(text))
	for k := 2; k <= 4; k++ {
		if len(lower) >= k {
			f["prefix"+strconv.Itoa(k)] = StringValue(string(lower[:k]))
			f["suffix"+strconv.Itoa(k)] = StringValue(string(lower[len(lower)-k:]))
		}
	}

	prev, prevShape := neighbor(tokens, i-1)
	next, nextShape := neighbor(tokens, i+1)
	prev2, _ := neighbor(tokens, i-2)
	next2, _ := neighbor(tokens, i+2)
	f["prev_word"] = StringValue(prev)
	f["next_word"] = StringValue(next)
	f["prev_shape"] = StringValue(prevShape)
	f["next_shape"] = StringValue(nextShape)
	f["prev2_word"] = StringValue(prev2)
	f["next2_word"] = StringValue(next2)
	f["bigram"] = StringValue(prev + "|" + word)
	f["prev_is_capitalized"] = BoolValue(i > 0 && isCapitalized(tokens[i-1].Text))
	f["next_is_capitalized"] = BoolValue(i+1 < len(tokens) && isCapitalized(tokens[i+1].Text))

	for _, c := range tagger.Categories {
		f[GazetteerFeature(c)] = BoolValue(e.gaz.ContainsWord(c, text))
	}
	return f
}

// GazetteerFeature names the membership flag of category c.
func GazetteerFeature(c tagger.Category) string {
	return "in_" + strings.ToLower(string(c)) + "_gazetteer"
}

func neighbor(tokens []tokenizer.Token, j int) (word, shape string) {
	if j < 0 || j >= len(tokens) {
		return None, None
	}
	return WordKey(tokens[j].Text), Shape(tokens[j].Text)
}

// WordKey lower-cases text and drops an abbreviation period ("Dr." -> "dr").
func WordKey(text string) string {
	w := strings.ToLower(text)
	if len(w) > 1 && strings.HasSuffix(w, ".") {
		w = strings.TrimSuffix(w, ".")
	}
	return w
}

// Shape maps runes to classes (X upper, x lower, d digit, p other) and
// collapses repeats: "Santos" -> "Xx", "COVID-19" -> "Xpd".
func Shape(text string) string {
	var b strings.Builder
	var last rune
	for _, r := range text {
		var c rune
		switch {
		case unicode.IsUpper(r):
			c = 'X'
		case unicode.IsLower(r):
			c = 'x'
		case unicode.IsDigit(r):
			c = 'd'
		case unicode.IsMark(r):
			continue
		default:
			c = 'p'
		}
		if c != last {
			b.WriteRune(c)
			last = c
		}
	}
	return b.String()
}

func isCapitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}

func isMixedCase(s string) bool {
	hasLower, innerUpper := false, false
	for i, r := range []rune(s) {
		if unicode.IsLower(r) {
			hasLower = true
		}
		if i > 0 && unicode.IsUpper(r) {
			innerUpper = true
		}
	}
	return hasLower && innerUpper
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isPunct(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// Package tokenizer splits Portuguese text into tokens carrying rune offsets
// into the original string.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/cognicore/nerpt/pkg/ner/internalerr"
)

// Token is one unit of text. Start and End are rune offsets, End exclusive.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Index int    `json:"index"`
}

// Mode selects a segmentation strategy.
type Mode string

const (
	Standard     Mode = "standard"
	CharLevel    Mode = "char_level"
	Aggressive   Mode = "aggressive"
	Conservative Mode = "conservative"
	BpeLite      Mode = "bpe_lite"
)

// Modes lists every strategy in wire order.
var Modes = []Mode{Standard, CharLevel, Aggressive, Conservative, BpeLite}

// ParseMode validates a wire value. The empty string selects Standard.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Standard, nil
	}
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", internalerr.New(internalerr.KindConfiguration, "unknown tokenizer mode %q", s)
}

// Tokenizer holds the static tables some strategies need.
type Tokenizer struct {
	abbreviations map[string]struct{}
	merges        map[[2]string]int
}

// NewTokenizer creates a tokenizer. Abbreviations keep their trailing period
// in standard mode. Merges are "left right" symbol pairs in priority order
// and drive bpe_lite.
func NewTokenizer(abbreviations []string, merges []string) *Tokenizer {
	t := &Tokenizer{
		abbreviations: make(map[string]struct{}, len(abbreviations)),
		merges:        make(map[[2]string]int, len(merges)),
	}
	for _, a := range abbreviations {
		t.abbreviations[strings.ToLower(strings.TrimSuffix(a, "."))] = struct{}{}
	}
	for rank, m := range merges {
		parts := strings.Fields(strings.ToLower(m))
		if len(parts) != 2 {
			continue
		}
		key := [2]string{parts[0], parts[1]}
		if _, dup := t.merges[key]; !dup {
			t.merges[key] = rank
		}
	}
	return t
}

// Default returns a tokenizer with the built-in Portuguese tables.
func Default() *Tokenizer {
	return NewTokenizer(DefaultAbbreviations, DefaultMerges)
}

// Tokenize splits text with the default tables.
func Tokenize(text string, mode Mode) ([]Token, error) {
	return Default().Tokenize(text, mode)
}

// Tokenize splits text according to mode. Empty input yields no tokens and
// no error; text that is not valid UTF-8 is a tokenization error.
func (t *Tokenizer) Tokenize(text string, mode Mode) ([]Token, error) {
	if !utf8.ValidString(text) {
		return nil, internalerr.New(internalerr.KindTokenization, "input is not valid UTF-8")
	}

	var tokens []Token
	switch mode {
	case Standard:
		tokens = t.standard(text)
	case CharLevel:
		tokens = charLevel(text)
	case Aggressive:
		tokens = aggressive(t.standard(text))
	case Conservative:
		tokens = conservative(words(text))
	case BpeLite:
		tokens = t.bpeLite(words(text))
	default:
		return nil, internalerr.New(internalerr.KindConfiguration, "unknown tokenizer mode %q", mode)
	}

	for i := range tokens {
		tokens[i].Index = i
	}
	return tokens, nil
}

// words segments on Unicode word boundaries, dropping whitespace runs.
func words(text string) []Token {
	var tokens []Token
	pos := 0
	state := -1
	rest := text
	for len(rest) > 0 {
		var seg string
		seg, rest, state = uniseg.FirstWordInString(rest, state)
		n := utf8.RuneCountInString(seg)
		if !isSpace(seg) {
			tokens = append(tokens, Token{Text: seg, Start: pos, End: pos + n})
		}
		pos += n
	}
	return tokens
}

// standard is word segmentation plus abbreviation attachment ("Dr." stays whole).
func (t *Tokenizer) standard(text string) []Token {
	toks := words(text)
	if len(t.abbreviations) == 0 {
		return toks
	}
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		cur := toks[i]
		if i+1 < len(toks) && toks[i+1].Text == "." && toks[i+1].Start == cur.End {
			if _, ok := t.abbreviations[strings.ToLower(cur.Text)]; ok {
				cur.Text += "."
				cur.End = toks[i+1].End
				i++
			}
		}
		out = append(out, cur)
	}
	return out
}

func charLevel(text string) []Token {
	var tokens []Token
	pos := 0
	state := -1
	rest := text
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		n := utf8.RuneCountInString(cluster)
		if !isSpace(cluster) {
			tokens = append(tokens, Token{Text: cluster, Start: pos, End: pos + n})
		}
		pos += n
	}
	return tokens
}

// aggressive joins word-joiner-word chains with no gaps: "curou - se" -> "curou-se".
func aggressive(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); {
		cur := toks[i]
		i++
		for i+1 < len(toks) &&
			isJoiner(toks[i].Text) && isWordLike(cur.Text) && isWordLike(toks[i+1].Text) &&
			cur.End == toks[i].Start && toks[i].End == toks[i+1].Start {
			cur = Token{
				Text:  cur.Text + toks[i].Text + toks[i+1].Text,
				Start: cur.Start,
				End:   toks[i+1].End,
			}
			i += 2
		}
		out = append(out, cur)
	}
	return out
}

// conservative splits every token at internal punctuation and symbols.
func conservative(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, tok := range toks {
		var current strings.Builder
		start := tok.Start
		pos := tok.Start
		flush := func() {
			if current.Len() > 0 {
				out = append(out, Token{Text: current.String(), Start: start, End: pos})
				current.Reset()
			}
		}
		for _, r := range tok.Text {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				flush()
				out = append(out, Token{Text: string(r), Start: pos, End: pos + 1})
				pos++
				start = pos
				continue
			}
			if current.Len() == 0 {
				start = pos
			}
			current.WriteRune(r)
			pos++
		}
		flush()
	}
	return out
}

// bpeLite splits each word into grapheme symbols and applies the ranked
// merge table, lowest rank first, until no rule applies.
func (t *Tokenizer) bpeLite(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, tok := range toks {
		if !isWordLike(tok.Text) || utf8.RuneCountInString(tok.Text) < 2 {
			out = append(out, tok)
			continue
		}
		syms := charLevel(tok.Text)
		for i := range syms {
			syms[i].Start += tok.Start
			syms[i].End += tok.Start
		}
		for {
			best, at := -1, -1
			for i := 0; i+1 < len(syms); i++ {
				key := [2]string{strings.ToLower(syms[i].Text), strings.ToLower(syms[i+1].Text)}
				if rank, ok := t.merges[key]; ok && (best < 0 || rank < best) {
					best, at = rank, i
				}
			}
			if at < 0 {
				break
			}
			syms[at] = Token{Text: syms[at].Text + syms[at+1].Text, Start: syms[at].Start, End: syms[at+1].End}
			syms = append(syms[:at+1], syms[at+2:]...)
		}
		out = append(out, syms...)
	}
	return out
}

func isSpace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isJoiner(s string) bool {
	switch s {
	case "-", "'", "’", "‐", "‑":
		return true
	}
	return false
}

// isWordLike reports whether s contains a letter or digit.
func isWordLike(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

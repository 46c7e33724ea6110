package features

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

func tokens(t *testing.T, text string) []tokenizer.Token {
	t.Helper()
	toks, err := tokenizer.Tokenize(text, tokenizer.Standard)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	return toks
}

func TestFiocruzGazetteerFlag(t *testing.T) {
	gaz := gazetteer.New([]gazetteer.Entry{{Surface: "Fiocruz", Category: tagger.ORG}})
	feats := Extract(tokens(t, "Fiocruz"), gaz)

	if len(feats) != 1 {
		t.Fatalf("Expected 1 feature set, got %d", len(feats))
	}
	if !feats[0].Bool("in_org_gazetteer") {
		t.Error("Expected in_org_gazetteer to be true")
	}
	if feats[0].Bool("in_per_gazetteer") {
		t.Error("Expected in_per_gazetteer to be false")
	}
}

func TestContextWindowSentinels(t *testing.T) {
	feats := Extract(tokens(t, "Santos Dumont chegou"), nil)

	if feats[0].Categorical("prev_word") != None || feats[0].Categorical("prev_shape") != None {
		t.Errorf("Expected sentinel before first token, got %q", feats[0].Categorical("prev_word"))
	}
	if feats[2].Categorical("next_word") != None {
		t.Errorf("Expected sentinel after last token, got %q", feats[2].Categorical("next_word"))
	}
	if feats[1].Categorical("prev_word") != "santos" || feats[1].Categorical("next_word") != "chegou" {
		t.Errorf("Unexpected window for middle token: %v", feats[1])
	}
	if feats[1].Categorical("prev_shape") != "Xx" {
		t.Errorf("Expected prev_shape Xx, got %q", feats[1].Categorical("prev_shape"))
	}
	if !feats[0].Bool("is_first") || !feats[2].Bool("is_last") {
		t.Error("Expected position flags")
	}
}

func TestShapeAndCase(t *testing.T) {
	cases := map[string]string{
		"Santos":   "Xx",
		"COVID-19": "Xpd",
		"12.345":   "dpd",
		"McLaren":  "XxXx",
		".":        "p",
	}
	for in, want := range cases {
		if got := Shape(in); got != want {
			t.Errorf("Shape(%q): expected %q, got %q", in, want, got)
		}
	}

	feats := Extract(tokens(t, "A ONU e a McLaren ."), nil)
	if !feats[1].Bool("is_all_caps") {
		t.Error("Expected ONU to be all caps")
	}
	if feats[0].Bool("is_all_caps") {
		t.Error("Single letter should not count as all caps")
	}
	if !feats[4].Bool("is_mixed_case") {
		t.Error("Expected McLaren to be mixed case")
	}
	if !feats[5].Bool("is_punctuation") {
		t.Error("Expected '.' to be punctuation")
	}
	if !feats[2].Bool("is_stopword") {
		t.Error("Expected 'e' to be a stopword")
	}
}

func TestAbbreviationWordKey(t *testing.T) {
	feats := Extract(tokens(t, "Dr. Silva"), nil)
	if feats[1].Categorical("prev_word") != "dr" {
		t.Errorf("Expected prev_word dr, got %q", feats[1].Categorical("prev_word"))
	}
}

func TestActiveIsSortedAndDeterministic(t *testing.T) {
	toks := tokens(t, "O presidente Lula visitou Brasília.")
	a := Extract(toks, nil)
	b := Extract(toks, nil)
	for i := range a {
		names := a[i].Names()
		if !sort.StringsAreSorted(names) {
			t.Errorf("Token %d: activations not sorted", i)
		}
		if !reflect.DeepEqual(names, b[i].Names()) {
			t.Errorf("Token %d: activations differ between runs", i)
		}
	}

	names := a[2].Names()
	want := []string{"bias", "is_capitalized", "prev_word=presidente", "prefix2=lu", "suffix3=ula"}
	for _, w := range want {
		if i := sort.SearchStrings(names, w); i >= len(names) || names[i] != w {
			t.Errorf("Expected activation %q in %v", w, names)
		}
	}
}

func TestFeatureSetJSON(t *testing.T) {
	fs := FeatureSet{
		"bias":   BoolValue(true),
		"word":   StringValue("paris"),
		"length": NumberValue(5),
	}
	b, err := json.Marshal(fs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"bias":true,"length":5,"word":"paris"}`
	if string(b) != want {
		t.Errorf("Expected %s, got %s", want, b)
	}

	var back FeatureSet
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Bool("bias") || back.Categorical("word") != "paris" {
		t.Errorf("Unexpected decode: %v", back)
	}
}

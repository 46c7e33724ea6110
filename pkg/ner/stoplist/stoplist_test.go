package stoplist

import (
	"reflect"
	"testing"
)

func TestListBasic(t *testing.T) {
	l := New([]string{"em", "a"}, []string{"dos"})

	if !l.IsStop("Em") {
		t.Error("'Em' should be a stopword")
	}
	if l.IsStop("Paris") {
		t.Error("'Paris' should not be a stopword")
	}
	if !l.IsConnector("dos") {
		t.Error("'dos' should be a connector")
	}
	if l.IsConnector("em") {
		t.Error("'em' should not be a connector")
	}
	if l.IsConnector("Paris") {
		t.Error("unknown words are not connectors")
	}
}

func TestListAll(t *testing.T) {
	l := New([]string{"o", "a"}, []string{"de"})
	expected := []string{"a", "de", "o"}
	if !reflect.DeepEqual(l.All(), expected) {
		t.Errorf("Expected %v, got %v", expected, l.All())
	}
	if !reflect.DeepEqual(l.Connectors(), []string{"de"}) {
		t.Errorf("Expected [de], got %v", l.Connectors())
	}
}

func TestNilList(t *testing.T) {
	var l *List
	if l.IsStop("a") || l.IsConnector("de") {
		t.Error("Nil list should contain nothing")
	}
}

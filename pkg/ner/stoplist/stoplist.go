package stoplist

import (
	"sort"
	"strings"
)

// Role tells how a function word behaves inside entity names.
type Role uint8

const (
	// Plain function words never occur inside a name.
	Plain Role = iota
	// Connector words may join the capitalized parts of a name
	// ("Zumbi dos Palmares", "Banco do Brasil").
	Connector
)

// List is a read-only set of Portuguese function words.
type List struct {
	stops map[string]Role
}

// New creates a list. Connectors are also stopwords.
func New(terms, connectors []string) *List {
	l := &List{stops: make(map[string]Role, len(terms)+len(connectors))}
	for _, t := range terms {
		l.stops[strings.ToLower(t)] = Plain
	}
	for _, c := range connectors {
		l.stops[strings.ToLower(c)] = Connector
	}
	return l
}

// Default returns the built-in Portuguese list.
func Default() *List {
	return New(DefaultTerms, DefaultConnectors)
}

// IsStop checks if a token is a function word.
func (l *List) IsStop(token string) bool {
	if l == nil {
		return false
	}
	_, ok := l.stops[strings.ToLower(token)]
	return ok
}

// IsConnector checks if a token may sit between name parts.
func (l *List) IsConnector(token string) bool {
	if l == nil {
		return false
	}
	return l.stops[strings.ToLower(token)] == Connector
}

// All returns every stopword, sorted.
func (l *List) All() []string {
	result := make([]string, 0, len(l.stops))
	for s := range l.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Connectors returns the connector words, sorted.
func (l *List) Connectors() []string {
	var result []string
	for s, r := range l.stops {
		if r == Connector {
			result = append(result, s)
		}
	}
	sort.Strings(result)
	return result
}

// DefaultConnectors may appear inside Portuguese proper names.
var DefaultConnectors = []string{"da", "das", "de", "do", "dos", "e", "del", "von", "van"}

// DefaultTerms are common Portuguese function words.
var DefaultTerms = []string{
	"a", "o", "as", "os", "um", "uma", "uns", "umas",
	"em", "no", "na", "nos", "nas", "num", "numa",
	"ao", "aos", "à", "às", "pelo", "pela", "pelos", "pelas",
	"por", "para", "com", "sem", "sob", "sobre", "entre", "até", "após",
	"que", "se", "ou", "mas", "como", "quando", "onde", "porque",
	"é", "foi", "são", "ser", "está", "ele", "ela", "eles", "elas",
	"seu", "sua", "seus", "suas", "este", "esta", "esse", "essa", "isso",
	"não", "mais", "muito", "também", "já",
}

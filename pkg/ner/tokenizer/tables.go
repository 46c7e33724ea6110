package tokenizer

// DefaultAbbreviations are Portuguese abbreviations whose period is part of
// the token.
var DefaultAbbreviations = []string{
	"Dr", "Dra", "Sr", "Sra", "Srta", "Prof", "Profa", "Gov", "Dep", "Sen", "Min",
	"Gen", "Cap", "Sgt", "Cel", "Brig", "Adm", "Des", "Pres", "Eng", "Arq",
	"km", "cm", "mm", "kg", "mg", "ml", "etc", "vol", "núm", "art", "pág",
	"tel", "av", "pg", "nº",
}

// DefaultMerges is the bpe_lite merge table in priority order.
var DefaultMerges = []string{
	"q u", "qu e", "ã o", "õ e", "ç ã", "çã o",
	"e s", "a s", "o s", "d e", "d o", "d a",
	"e m", "ç a", "ç o", "r e", "i n", "t e",
	"n t", "nt e", "a r", "e r", "o r", "a n", "e n",
	"m en", "men te", "d es", "ão s", "õe s",
	"i a", "r a", "s t", "c o", "p r",
}

// Package textnorm normalizes Russian school names and addresses before
// they are embedded and compared.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// abbreviations maps long legal-form phrases to the short form used by
// most listings. Longer phrases come first so they win over their suffixes.
var abbreviations = []struct {
	long  string
	short string
}{
	{"муниципальное автономное общеобразовательное учреждение", "маоу"},
	{"муниципальное общеобразовательное учреждение", "моу"},
	{"государственное автономное общеобразовательное учреждение", "гаоу"},
	{"частное общеобразовательное учреждение", "чоу"},
	{"автономная некоммерческая образовательная организация", "аноо"},
	{"государственное бюджетное учреждение", "гбу"},
	{"средняя общеобразовательная школа", "сош"},
	{"основная общеобразовательная школа", "оош"},
	{"начальная общеобразовательная школа", "нош"},
	{"физико-технический лицей", "фтл"},
	{"медико-биологический лицей", "мбл"},
	{"гуманитарно-экономический лицей", "гэл"},
	{"русская православная классическая гимназия", "рмпкг"},
}

var (
	noiseReplacer = strings.NewReplacer(
		"«", "", "»", "", `"`, "", "'", "", `\`, "", ".", "",
		",", "", ";", "", ":", "", "!", "", "?", "", "/", "", "(", "", ")", "",
		"\t", " ", "\n", " ", "\r", " ",
	)
	multiSpaceRe = regexp.MustCompile(`\s+`)
	lower        = cases.Lower(language.Russian)
)

// Normalize prepares text for embedding:
//  1. Unicode NFC composition and lowercasing
//  2. Stripping quotes and punctuation «»"'\.,;:!?/()
//  3. Replacing tabs and newlines with spaces, collapsing whitespace
//  4. Folding long legal-form phrases into their abbreviations
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = lower.String(norm.NFC.String(s))
	s = noiseReplacer.Replace(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return ExpandAbbreviations(s)
}

// ExpandAbbreviations folds whole-word occurrences of known legal-form
// phrases into their abbreviations. Input must already be lowercased and
// single-spaced.
func ExpandAbbreviations(s string) string {
	if s == "" {
		return s
	}
	padded := " " + s + " "
	for _, a := range abbreviations {
		padded = strings.ReplaceAll(padded, " "+a.long+" ", " "+a.short+" ")
	}
	return strings.TrimSpace(padded)
}

// Join normalizes each non-empty part and joins them with single spaces.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, " ")
}

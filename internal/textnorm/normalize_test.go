package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("  \t\n "))
}

func TestNormalizeLowercase(t *testing.T) {
	assert.Equal(t, "лицей №2", Normalize("ЛИЦЕЙ №2"))
}

func TestNormalizeStripsPunctuation(t *testing.T) {
	assert.Equal(t, "гимназия №1 им пушкина", Normalize(`Гимназия «№1» им. Пушкина!`))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "ул московская 12", Normalize("ул.\tМосковская,\n  12"))
}

func TestNormalizeKeepsHyphen(t *testing.T) {
	assert.Equal(t, "ул ново-астраханская", Normalize("ул. Ново-Астраханская"))
}

func TestNormalizeFoldsLegalForm(t *testing.T) {
	got := Normalize(`Муниципальное автономное общеобразовательное учреждение "Средняя общеобразовательная школа № 5"`)
	assert.Equal(t, "маоу сош № 5", got)
}

func TestNormalizeLongFormWins(t *testing.T) {
	// The four-word phrase must not be partially folded by a shorter entry.
	assert.Equal(t, "моу", Normalize("Муниципальное общеобразовательное учреждение"))
}

func TestExpandAbbreviationsWholeWordsOnly(t *testing.T) {
	// "лицейский" must not match "физико-технический лицей".
	assert.Equal(t, "физико-технический лицейский", ExpandAbbreviations("физико-технический лицейский"))
	assert.Equal(t, "фтл №1", ExpandAbbreviations("физико-технический лицей №1"))
}

func TestJoinSkipsEmptyParts(t *testing.T) {
	assert.Equal(t, "сош №3 ул чернышевского 1", Join("СОШ №3", "", "ул. Чернышевского, 1"))
}

package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Instrução de Tiro", "Instrução de Tiro"},
		{"emoji dropped", "Formatura 🎖️ Geral", "Formatura Geral"},
		{"html tags", "<b>TFM</b> <br>Pelotão", "TFM Pelotão"},
		{"newlines and tabs", "Linha 1\nLinha\t2", "Linha 1 Linha 2"},
		{"disallowed punctuation", "Op #1 [GLO] & *", "Op 1 GLO"},
		{"kept punctuation", "09:00 - Sala 2 (Cmdo), S/A; ok. 1º @ nota–x", "09:00 - Sala 2 (Cmdo), S/A; ok. 1º @ nota–x"},
		{"collapse spaces", "  a    b  ", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"<p>Reunião\tde  Cmdo</p>\n🚀 às 10h!",
		"Op Ágata (GLO)",
		"   ",
		"ÇÃÕ ºª —",
	}
	for _, in := range inputs {
		once := Text(in)
		assert.Equal(t, once, Text(once), in)
	}
}

func TestValue(t *testing.T) {
	assert.Equal(t, "", Value(nil))
	var nilStr *string
	assert.Equal(t, "", Value(nilStr))
	s := " x "
	assert.Equal(t, "x", Value(&s))
	assert.Equal(t, "42", Value(42))
}

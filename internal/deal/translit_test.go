package deal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransliterate(t *testing.T) {
	tr := NewTransliterator(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"dictionary words", "عرض خاص فراخ", "offer special chicken"},
		{"definite article", "الفراخ المشوية", "chicken"},
		{"mixed scripts", "ساندويتش Crispy فراخ", "sandwich Crispy chicken"},
		{"glued words are not split", "عرضخاص", DefaultLatinFallback},
		{"punctuation boundary", "وجبة، فراخ!", "meal chicken!"},
		{"digits survive", "خصم 30%", "discount 30%"},
		{"only unknown arabic", "مشويات", DefaultLatinFallback},
		{"empty", "", DefaultLatinFallback},
		{"whitespace collapse", "  Big\t\tDeal  ", "Big Deal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Transliterate(tt.in))
		})
	}
}

func TestTransliterateLongestRuleFirst(t *testing.T) {
	tr := NewTransliterator([]Rule{
		{From: "عرض", To: "offer"},
		{From: "عرض خاص", To: "special-offer"},
	})

	assert.Equal(t, "special-offer offer", tr.Transliterate("عرض خاص عرض"))
}

func TestTransliterateCaseInsensitiveLatinRules(t *testing.T) {
	tr := NewTransliterator([]Rule{{From: "combo", To: "meal deal"}})

	assert.Equal(t, "meal deal meal deal", tr.Transliterate("Combo COMBO"))
}

func TestTransliterateFallback(t *testing.T) {
	tr := NewTransliterator(nil)

	assert.Equal(t, DefaultLatinFallback, tr.Transliterate("مشويات"))
	assert.Equal(t, DefaultLatinFallback, tr.Transliterate("  "))
	assert.Equal(t, "burger", tr.Transliterate("برجر"))
}

package deal

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLatinFallback is returned when nothing survives transliteration
const DefaultLatinFallback = "special offer"

// definiteArticle is the Arabic "al-" prefix
const definiteArticle = "ال"

// Rule substitutes a whole source-script word or phrase with a Latin one
type Rule struct {
	From string
	To   string
}

// DefaultRules is the substitution dictionary for common offer vocabulary
var DefaultRules = []Rule{
	{From: "عرض", To: "offer"},
	{From: "خاص", To: "special"},
	{From: "فراخ", To: "chicken"},
	{From: "ساندويتش", To: "sandwich"},
	{From: "وجبة", To: "meal"},
	{From: "وجبات", To: "meals"},
	{From: "بيتزا", To: "pizza"},
	{From: "برجر", To: "burger"},
	{From: "خصم", To: "discount"},
	{From: "مجانا", To: "free"},
	{From: "عائلية", To: "family"},
}

var (
	arabicBlock = regexp.MustCompile(`[\x{0600}-\x{06FF}]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

type compiledRule struct {
	re *regexp.Regexp
	to string
}

// Transliterator renders Arabic text as an ASCII-ish Latin string.
// Rules are applied longest source first; equal lengths keep declaration order.
type Transliterator struct {
	rules []compiledRule
}

// NewTransliterator compiles the given rules, or DefaultRules when nil
func NewTransliterator(rules []Rule) *Transliterator {
	if rules == nil {
		rules = DefaultRules
	}

	expanded := make([]Rule, 0, len(rules)*2)
	for _, r := range rules {
		from := strings.TrimSpace(r.From)
		if from == "" {
			continue
		}
		expanded = append(expanded, Rule{From: from, To: r.To})
		if !strings.ContainsAny(from, " \t") && !strings.HasPrefix(from, definiteArticle) {
			expanded = append(expanded, Rule{From: definiteArticle + from, To: r.To})
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool {
		return utf8.RuneCountInString(expanded[i].From) > utf8.RuneCountInString(expanded[j].From)
	})

	compiled := make([]compiledRule, len(expanded))
	for i, r := range expanded {
		compiled[i] = compiledRule{
			re: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(r.From)),
			to: r.To,
		}
	}
	return &Transliterator{rules: compiled}
}

// Transliterate applies the dictionary, strips leftover Arabic characters and
// normalizes whitespace. Text with nothing left becomes DefaultLatinFallback.
func (t *Transliterator) Transliterate(text string) string {
	for _, r := range t.rules {
		text = replaceWholeWords(text, r.re, r.to)
	}

	text = arabicBlock.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if text == "" {
		return DefaultLatinFallback
	}
	return text
}

// replaceWholeWords replaces matches of re that are not glued to other letters
func replaceWholeWords(text string, re *regexp.Regexp, to string) string {
	matches := re.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if !isBoundary(text, start, end) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(to)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Mn, r) || unicode.IsDigit(r)
}

package deal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Placeholders used when the text yields no title or description
const (
	DefaultNameAr        = "عرض خاص"
	DefaultDescriptionAr = "عرض مميز"
)

// DefaultCurrencyTokens are the Egyptian pound markers that may follow a price
var DefaultCurrencyTokens = []string{"جنيه", "ج.م", "ج"}

// digitFolder maps Arabic-Indic and Extended Arabic-Indic digits to ASCII
var digitFolder = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

// Parser turns raw post text into deal fields. It never fails.
type Parser struct {
	priceRe        *regexp.Regexp
	transliterator *Transliterator
}

// NewParser creates a parser using the given currency tokens and transliterator.
// Nil or empty arguments fall back to the defaults.
func NewParser(currencyTokens []string, t *Transliterator) *Parser {
	if len(currencyTokens) == 0 {
		currencyTokens = DefaultCurrencyTokens
	}
	if t == nil {
		t = NewTransliterator(nil)
	}
	return &Parser{
		priceRe:        compilePriceRegex(currencyTokens),
		transliterator: t,
	}
}

// compilePriceRegex builds `(\d+)\s*(?:tok1|tok2|...)` with the longest token first
func compilePriceRegex(tokens []string) *regexp.Regexp {
	sorted := make([]string, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utf8.RuneCountInString(sorted[i]) > utf8.RuneCountInString(sorted[j])
	})

	quoted := make([]string, len(sorted))
	for i, tok := range sorted {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	return regexp.MustCompile(`(\d+)\s*(?:` + strings.Join(quoted, "|") + `)`)
}

// Parse extracts title, description and price from text
func (p *Parser) Parse(text string) Fields {
	lines := SplitLines(text)

	nameAr := DefaultNameAr
	if len(lines) > 0 {
		nameAr = lines[0]
	}

	descriptionAr := DefaultDescriptionAr
	if len(lines) > 1 {
		descriptionAr = strings.Join(lines[1:], " ")
	}


	return Fields{
		NameAr:        nameAr,
		NameEn:        p.transliterator.Transliterate(nameAr),
		DescriptionAr: descriptionAr,
		DescriptionEn: p.transliterator.Transliterate(descriptionAr),
		Price:         p.ExtractPrice(text),
		Placeholder:   len(lines) == 0,
	}
}

// ExtractPrice returns the first amount followed by a currency token, or 0
func (p *Parser) ExtractPrice(text string) int {
	match := p.priceRe.FindStringSubmatch(digitFolder.Replace(text))
	if match == nil {
		return 0
	}
	price, err := strconv.Atoi(match[1])
	if err != nil {
		// digit run too long for an int
		return 0
	}
	return price
}

// SplitLines splits text into trimmed, non-empty lines
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

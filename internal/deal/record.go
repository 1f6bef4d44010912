package deal

import (
	"encoding/base64"
	"time"
)

// ValidityDays is the length of every deal's validity window
const ValidityDays = 7

// ComputeWindow returns the validity window starting on now's UTC date
func ComputeWindow(now time.Time) (validFrom, validTo Date) {
	validFrom = DateOf(now)
	return validFrom, validFrom.AddDays(ValidityDays)
}

// Builder turns text into a ParsedDeal using a shared clock for the slug
// fallback and the validity window.
type Builder struct {
	parser *Parser
	slugs  *SlugGenerator
	now    Clock
}

// NewBuilder wires a parser and a slug generator around one clock
func NewBuilder(parser *Parser, now Clock) *Builder {
	if parser == nil {
		parser = NewParser(nil, nil)
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{
		parser: parser,
		slugs:  NewSlugGenerator(now),
		now:    now,
	}
}

// Build parses text and fills in slug, window and provenance. A placeholder
// title gets the timestamp slug so empty posts do not share one identifier.
func (b *Builder) Build(text string, source Source) ParsedDeal {
	fields := b.parser.Parse(text)
	validFrom, validTo := ComputeWindow(b.now())

	slugInput := fields.NameEn
	if fields.Placeholder {
		slugInput = ""
	}

	return ParsedDeal{
		NameAr:        fields.NameAr,
		NameEn:        fields.NameEn,
		DescriptionAr: fields.DescriptionAr,
		DescriptionEn: fields.DescriptionEn,
		Price:         fields.Price,
		Slug:          b.slugs.Generate(slugInput),
		ValidFrom:     validFrom,
		ValidTo:       validTo,
		ExtractedFrom: source,
	}
}

// Assemble attaches the image reference to a parsed deal. Nil image bytes
// leave ImageBase64 null.
func Assemble(parsed ParsedDeal, imageURL string, image []byte) Record {
	record := Record{
		ParsedDeal: parsed,
		ImageURL:   imageURL,
	}
	if image != nil {
		encoded := base64.StdEncoding.EncodeToString(image)
		record.ImageBase64 = &encoded
	}
	return record
}

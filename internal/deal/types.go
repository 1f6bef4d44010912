package deal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source tags where a deal's text came from
type Source string

const (
	// SourceText means the text was read from the rendered post
	SourceText Source = "Text"
	// SourceOCR means the text was recognized from the post image
	SourceOCR Source = "OCR"
)

// DateLayout is the calendar date wire format
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component, always in UTC
type Date struct {
	t time.Time
}

// DateOf truncates t to its UTC calendar date
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t: t}, nil
}

// AddDays returns the date n days later
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	return d.t
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// Fields holds what the parser reads out of raw text
type Fields struct {
	NameAr        string
	NameEn        string
	DescriptionAr string
	DescriptionEn string
	Price         int

	// Placeholder is set when the text had no lines and NameAr is the
	// fixed fallback title.
	Placeholder bool
}

// ParsedDeal is the pipeline's terminal artifact
type ParsedDeal struct {
	NameAr        string `json:"name_ar"`
	NameEn        string `json:"name_en"`
	DescriptionAr string `json:"description_ar"`
	DescriptionEn string `json:"description_en"`
	Price         int    `json:"price" validate:"gte=0"`
	Slug          string `json:"slug" validate:"required,max=128"`
	ValidFrom     Date   `json:"validFrom"`
	ValidTo       Date   `json:"validTo"`
	ExtractedFrom Source `json:"extractedFrom,omitempty"`
}

// Record is a ParsedDeal plus the image it was captured with
type Record struct {
	ParsedDeal
	ImageURL    string  `json:"image_url"`
	ImageBase64 *string `json:"image_base64"`
}

// Package domain contains core business entities and rules.
package domain

import (
	"strings"
	"unicode/utf8"
)

// CategoryAll is the synthetic category meaning "no filter applied".
const CategoryAll = "all"

// Quote is a text/category pair. It has no identity: two quotes with the
// same text and category are equal, and duplicates are allowed.
type Quote struct {
	// Text is the quotation itself.
	Text string `json:"text"`

	// Category is a free-form label used for filtering.
	Category string `json:"category"`
}

// Collection is an ordered sequence of quotes.
// Order decides which category is seen first and the default view order.
type Collection []Quote

// NewQuote trims both fields, replaces invalid UTF-8 and validates that
// neither is empty.
func NewQuote(text, category string) (Quote, error) {
	q := Quote{
		Text:     strings.TrimSpace(strings.ToValidUTF8(text, string(utf8.RuneError))),
		Category: strings.TrimSpace(strings.ToValidUTF8(category, string(utf8.RuneError))),
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Validate checks that text and category are non-empty after trimming.
func (q Quote) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", "must not be empty")
	}

	if strings.TrimSpace(q.Category) == "" {
		return NewValidationError("category", "must not be empty")
	}

	return nil
}

// Display formats the quote the way it is shown to users.
func (q Quote) Display() string {
	return `"` + q.Text + `" — ` + q.Category
}

// Clone returns a copy that shares no backing array with c.
func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}

	dup := make(Collection, len(c))
	copy(dup, c)

	return dup
}

// SeedQuotes returns the built-in collection used when nothing is persisted.
func SeedQuotes() Collection {
	return Collection{
		{Text: "The best way to get started is to quit talking and begin doing.", Category: "Motivation"},
		{Text: "Don't let yesterday take up too much of today.", Category: "Inspiration"},
		{Text: "It's not whether you get knocked down, it's whether you get up.", Category: "Resilience"},
	}
}

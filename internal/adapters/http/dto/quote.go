package dto

// MessageIncompleteQuote is returned when either add-quote field is blank.
const MessageIncompleteQuote = "Please enter both a quote and a category."

// AddQuoteRequest is the body of POST /api/v1/quotes.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"notblank"`
	Category string `json:"category" validate:"notblank"`
}

// FilterRequest is the body of PUT /api/v1/filter.
// Any category is accepted, including ones no quote carries.
type FilterRequest struct {
	Category string `json:"category" validate:"max=200"`
}

// QuoteResponse is one quote on the wire.
type QuoteResponse struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// QuoteListResponse is the filtered view.
type QuoteListResponse struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Quotes   []QuoteResponse `json:"quotes"`
}

// DisplayResponse is the rendered current quote.
type DisplayResponse struct {
	Quote *QuoteResponse `json:"quote,omitempty"`
	Text  string         `json:"text"`
	Empty bool           `json:"empty"`
}

// CategoriesResponse lists categories, "all" first.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// FilterResponse reports the selected category.
type FilterResponse struct {
	Category string `json:"category"`
}

// ImportResponse reports how many quotes an import appended.
type ImportResponse struct {
	Imported int `json:"imported"`
}

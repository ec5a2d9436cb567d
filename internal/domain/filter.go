package domain

// ApplyFilter returns the quotes visible under category.
// CategoryAll (or an empty category) yields the whole collection; anything
// else is an exact, case-sensitive match. Order is preserved and the result
// never aliases c.
func ApplyFilter(c Collection, category string) Collection {
	if category == "" || category == CategoryAll {
		return c.Clone()
	}

	filtered := make(Collection, 0, len(c))
	for _, q := range c {
		if q.Category == category {
			filtered = append(filtered, q)
		}
	}

	return filtered
}

package domain

// DeriveCategories returns the distinct categories of c in order of first
// appearance, prefixed by CategoryAll. The result is never empty.
func DeriveCategories(c Collection) []string {
	categories := make([]string, 0, len(c)+1)
	categories = append(categories, CategoryAll)

	seen := make(map[string]struct{}, len(c))
	for _, q := range c {
		if _, ok := seen[q.Category]; ok {
			continue
		}

		seen[q.Category] = struct{}{}
		categories = append(categories, q.Category)
	}

	return categories
}

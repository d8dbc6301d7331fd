package model

// Opportunity is one catalog record. The catalog file is owned by the
// content team and its schema changes without API releases, so records are
// passed through as decoded maps. Only "categories" is interpreted.
type Opportunity map[string]any

// HasCategory reports whether the record's "categories" list contains tag.
func (o Opportunity) HasCategory(tag string) bool {
	list, ok := o["categories"].([]any)
	if !ok {
		return false
	}
	for _, c := range list {
		if s, ok := c.(string); ok && s == tag {
			return true
		}
	}
	return false
}

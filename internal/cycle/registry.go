// Package cycle implements smart character cycling: mapping resolution,
// per-key cycle state and the insert/replace decision for each activation.
package cycle

import "github.com/verte-zerg/smartchr/internal/model"

// Resolve returns the first enabled mapping for char whose contexts contain
// the wildcard or ctx exactly. Input order is the tie-break.
func Resolve(char rune, ctx string, mappings []model.Mapping) (model.Mapping, bool) {
	for _, m := range mappings {
		if m.Trigger() != char || !m.Enabled() {
			continue
		}
		if m.MatchesContext(ctx) {
			return m, true
		}
	}
	return model.Mapping{}, false
}

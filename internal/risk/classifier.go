package risk

import "sort"

// Classify maps a metrics snapshot to a severity level using the given rules.
//
// Inactive rules are discarded, the rest are ordered most severe first, and
// the level of the first matching rule wins. With no matching rule (or no
// rules at all) the customer is LevelLow. Order among distinct rules at the
// same level is not specified; only the maximum matching severity is
// contractual, so the stable sort keeps whatever order the store returned.
func Classify(m Metrics, rules []*Rule) Level {
	active := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.Active {
			active = append(active, r)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Level.Severity() > active[j].Level.Severity()
	})

	for _, r := range active {
		if r.matches(m) {
			return r.Level
		}
	}
	return LevelLow
}

package achievements

// CrossedThresholds returns the achievements of kind whose threshold lies in
// (previous, current]. Every threshold crossed by a single jump is returned,
// in catalog order, without duplicates. Equal or decreasing values never
// cross anything.
func CrossedThresholds(kind Kind, previous, current int) []Achievement {
	if current <= previous {
		return nil
	}

	var crossed []Achievement
	seen := make(map[string]bool)
	for _, a := range catalog {
		if a.Kind != kind || seen[a.Name] {
			continue
		}
		if current >= a.Threshold && previous < a.Threshold {
			crossed = append(crossed, a)
			seen[a.Name] = true
		}
	}
	return crossed
}

// Transition is a before/after pair for one metric
type Transition struct {
	Kind     Kind
	Previous int
	Current  int
}

// Evaluate runs CrossedThresholds for each transition and concatenates the
// results. Kinds are evaluated independently so unlocks may co-occur.
func Evaluate(transitions ...Transition) []Achievement {
	var out []Achievement
	for _, t := range transitions {
		out = append(out, CrossedThresholds(t.Kind, t.Previous, t.Current)...)
	}
	return out
}

package reservation

import "slices"

// FindSmallestMissingID returns the first positive ID absent from ids, or
// max+1 when the range is dense. ids need not be sorted.
func FindSmallestMissingID(ids []int64) int64 {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	expect := int64(1)
	for _, id := range sorted {
		switch {
		case id < expect:
			// Duplicates and non-positive IDs do not move the cursor.
		case id == expect:
			expect++
		default:
			return expect
		}
	}
	return expect
}

// MissingIDs lists every ID in [1, max(ids)] not present in ids, ascending.
func MissingIDs(ids []int64) []int64 {
	present := make(map[int64]struct{}, len(ids))
	var highest int64
	for _, id := range ids {
		present[id] = struct{}{}
		highest = max(highest, id)
	}

	var missing []int64
	for id := int64(1); id <= highest; id++ {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

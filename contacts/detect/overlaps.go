package detect

import "github.com/iptsd-go/iptsd/contacts"

// overlap calculates the intersection over union of two clusters, in the
// range [0, 1].
func overlap(a, b Box) float64 {
	if a == b {
		return 1.0
	}

	intersection := a.Intersection(b)
	if intersection.Empty() {
		return 0.0
	}

	areaA := a.Area()
	areaB := b.Area()
	areaI := intersection.Area()

	return float64(areaI) / float64(areaA+areaB-areaI)
}

// searchOverlaps finds all pairs of clusters that overlap by at least 50%,
// appending (i, j) index pairs with i < j to out.
func searchOverlaps(clusters []Box, out [][2]int) ([][2]int, bool) {
	out = out[:0]
	found := false

	for i := 0; i < len(clusters); i++ {
		// Only pairs that weren't checked yet.
		for j := i + 1; j < len(clusters); j++ {
			if overlap(clusters[i], clusters[j]) < 0.5 {
				continue
			}

			found = true
			out = append(out, [2]int{i, j})
		}
	}

	return out, found
}

// mergeOverlaps merges clusters that overlap by at least 50%. The merging
// process repeats until a pass finds no more overlaps; if overlaps remain
// after the given number of passes, ErrFailedToMergeClusters is returned
// and the frame's contacts are dropped.
//
// Returns the merged cluster list, which may alias either input slice.
func mergeOverlaps(clusters, temp []Box, iterations int) ([]Box, error) {
	var overlaps [][2]int

	for iter := 0; iter < iterations; iter++ {
		var found bool
		overlaps, found = searchOverlaps(clusters, overlaps)
		if !found {
			return clusters, nil
		}

		temp = temp[:0]

		for i := range clusters {
			cluster := clusters[i]
			drop := false

			for _, pair := range overlaps {
				a, b := pair[0], pair[1]

				// b > a always holds, so by the time the loop reaches
				// b, it has already been merged into a and is dropped.
				if b == i {
					drop = true
					break
				}

				if a != i {
					continue
				}

				cluster = cluster.Merged(clusters[b])
			}

			if drop {
				continue
			}

			temp = append(temp, cluster)
		}

		clusters, temp = temp, clusters
	}

	if _, found := searchOverlaps(clusters, overlaps); found {
		return nil, contacts.ErrFailedToMergeClusters
	}

	return clusters, nil
}

package compute

import "sort"

// DependencyAvailability is one dependency's availability as seen by the
// composite calculation. HardSync dependencies enter the serial product; soft
// or async dependencies are reported as risk only.
type DependencyAvailability struct {
	ServiceID       string
	Availability    float64
	HardSync        bool
	RedundancyGroup string
}

// CompositeResult is the dependency-bounded availability for one service.
type CompositeResult struct {
	Composite       float64  `json:"composite"`
	Self            float64  `json:"self"`
	HardCount       int      `json:"hard_count"`
	SoftCount       int      `json:"soft_count"`
	Bottleneck      string   `json:"bottleneck,omitempty"`
	BottleneckDelta float64  `json:"bottleneck_delta,omitempty"`
	SoftRisks       []string `json:"soft_risks,omitempty"`
}

// factor is one multiplicative term of the serial product: a single hard-sync
// dependency, a collapsed SCC supernode, or a redundant replica group.
type factor struct {
	label string
	value float64
}

// CompositeAvailability computes the serial composite bound
// R = R_self * Π R_dep with three refinements:
//
//   - members of a strongly connected component collapse into a supernode
//     whose availability is the minimum among its members (weakest link),
//   - replicas sharing a redundancy group combine as 1 - Π(1 - R_replica),
//   - soft/async dependencies are excluded from the product and surfaced
//     in SoftRisks.
//
// The bottleneck is the factor contributing the greatest downward delta to
// the final bound.
func CompositeAvailability(self float64, deps []DependencyAvailability, sccs [][]string) CompositeResult {
	result := CompositeResult{Self: self}

	memberSCC := make(map[string]int)
	for i, members := range sccs {
		for _, id := range members {
			memberSCC[id] = i
		}
	}

	sccMin := make(map[int]float64)
	groups := make(map[string][]float64)
	var serial []factor

	for _, dep := range deps {
		if !dep.HardSync {
			result.SoftCount++
			result.SoftRisks = append(result.SoftRisks, dep.ServiceID)
			continue
		}
		result.HardCount++

		if idx, ok := memberSCC[dep.ServiceID]; ok {
			if cur, seen := sccMin[idx]; !seen || dep.Availability < cur {
				sccMin[idx] = dep.Availability
			}
			continue
		}
		if dep.RedundancyGroup != "" {
			groups[dep.RedundancyGroup] = append(groups[dep.RedundancyGroup], dep.Availability)
			continue
		}
		serial = append(serial, factor{label: dep.ServiceID, value: dep.Availability})
	}

	// Collapsed supernodes, keyed by sorted member list for determinism.
	sccIdxs := make([]int, 0, len(sccMin))
	for idx := range sccMin {
		sccIdxs = append(sccIdxs, idx)
	}
	sort.Ints(sccIdxs)
	for _, idx := range sccIdxs {
		serial = append(serial, factor{label: "cycle:" + joinSorted(sccs[idx]), value: sccMin[idx]})
	}

	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		unavail := 1.0
		for _, r := range groups[name] {
			unavail *= 1 - r
		}
		serial = append(serial, factor{label: "group:" + name, value: 1 - unavail})
	}

	composite := self
	for _, f := range serial {
		composite *= f.value
	}
	result.Composite = composite
	sort.Strings(result.SoftRisks)

	// Removing factor f would lift the bound to composite/f; the factor with
	// the smallest value contributes the largest downward delta.
	var worst *factor
	for i := range serial {
		if worst == nil || serial[i].value < worst.value {
			worst = &serial[i]
		}
	}
	if worst != nil && worst.value > 0 && worst.value < 1 {
		result.Bottleneck = worst.label
		result.BottleneckDelta = composite/worst.value - composite
	}
	return result
}

func joinSorted(members []string) string {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	out := ""
	for i, m := range sorted {
		if i > 0 {
			out += ","
		}
		out += m
	}
	return out
}

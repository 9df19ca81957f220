package graph

import "sort"

// SCCs runs Tarjan's algorithm over the snapshot and returns every strongly
// connected component with more than one member, each sorted
// lexicographically, and the list itself sorted by its first member. Runs in
// O(V+E); single-node components are not cycles and are omitted.
func (s *Snapshot) SCCs() [][]string {
	t := &tarjan{
		snapshot: s,
		index:    make(map[string]int),
		lowlink:  make(map[string]int),
		onStack:  make(map[string]bool),
	}
	for _, id := range s.NodeIDs() {
		if _, seen := t.index[id]; !seen {
			t.strongConnect(id)
		}
	}

	var cycles [][]string
	for _, component := range t.components {
		if len(component) > 1 {
			sort.Strings(component)
			cycles = append(cycles, component)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

type tarjan struct {
	snapshot   *Snapshot
	counter    int
	index      map[string]int
	lowlink    map[string]int
	onStack    map[string]bool
	stack      []string
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.snapshot.Outgoing(v) {
		w := e.TargetID
		if _, seen := t.index[w]; !seen {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var component []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}
		t.components = append(t.components, component)
	}
}

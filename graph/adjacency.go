// ABOUTME: Adjacency is the symmetric neighbor index derived from the store's edge set.
// ABOUTME: Pairs are reference counted so parallel edges unlink cleanly; incident edges are indexed per node.
package graph

// Adjacency maps every node id to its neighbors. Patched per edge; Rebuild
// is only used for full replacements.
type Adjacency struct {
	// neighbors[a][b] counts edges joining a and b in either direction.
	neighbors map[string]map[string]int
	// incident[a] holds the ids of edges with a as source or target.
	incident map[string]IDSet
}

// NewAdjacency creates an empty index.
func NewAdjacency() *Adjacency {
	return &Adjacency{
		neighbors: make(map[string]map[string]int),
		incident:  make(map[string]IDSet),
	}
}

// AddNode ensures id has an entry, empty if it has no edges yet.
func (a *Adjacency) AddNode(id string) {
	if _, ok := a.neighbors[id]; !ok {
		a.neighbors[id] = make(map[string]int)
		a.incident[id] = NewIDSet()
	}
}

// RemoveNode drops id's entry and removes id from every neighbor's entry.
// Callers unlink incident edges first; this also clears any leftovers.
func (a *Adjacency) RemoveNode(id string) {
	for nb := range a.neighbors[id] {
		if nb != id {
			delete(a.neighbors[nb], id)
		}
	}
	delete(a.neighbors, id)
	delete(a.incident, id)
}

// Link records e between its endpoints. Both endpoints must have entries.
func (a *Adjacency) Link(e Edge) {
	a.AddNode(e.Source)
	a.AddNode(e.Target)
	a.incident[e.Source].Add(e.ID)
	a.incident[e.Target].Add(e.ID)
	a.neighbors[e.Source][e.Target]++
	if e.Source != e.Target {
		a.neighbors[e.Target][e.Source]++
	}
}

// Unlink removes e. The pair stays adjacent while another edge still joins it.
func (a *Adjacency) Unlink(e Edge) {
	if inc, ok := a.incident[e.Source]; ok {
		inc.Remove(e.ID)
	}
	if inc, ok := a.incident[e.Target]; ok {
		inc.Remove(e.ID)
	}
	a.decrement(e.Source, e.Target)
	if e.Source != e.Target {
		a.decrement(e.Target, e.Source)
	}
}

func (a *Adjacency) decrement(from, to string) {
	row, ok := a.neighbors[from]
	if !ok {
		return
	}
	if row[to] <= 1 {
		delete(row, to)
		return
	}
	row[to]--
}

// Rebuild discards the index and recomputes it from scratch.
func (a *Adjacency) Rebuild(nodeIDs []string, edges []Edge) {
	a.neighbors = make(map[string]map[string]int, len(nodeIDs))
	a.incident = make(map[string]IDSet, len(nodeIDs))
	for _, id := range nodeIDs {
		a.AddNode(id)
	}
	for _, e := range edges {
		a.Link(e)
	}
}

// Has reports whether id has an entry.
func (a *Adjacency) Has(id string) bool {
	_, ok := a.neighbors[id]
	return ok
}

// Adjacent reports whether to is a neighbor of from.
func (a *Adjacency) Adjacent(from, to string) bool {
	return a.neighbors[from][to] > 0
}

// Neighbors returns the sorted neighbor ids of id.
func (a *Adjacency) Neighbors(id string) []string {
	row := a.neighbors[id]
	set := make(IDSet, len(row))
	for nb := range row {
		set[nb] = struct{}{}
	}
	return set.Sorted()
}

// Incident returns the sorted ids of edges touching id.
func (a *Adjacency) Incident(id string) []string {
	return a.incident[id].Sorted()
}

// Len returns the number of node entries.
func (a *Adjacency) Len() int {
	return len(a.neighbors)
}

// Map returns a copy of the index as id -> sorted neighbor ids.
func (a *Adjacency) Map() map[string][]string {
	out := make(map[string][]string, len(a.neighbors))
	for id := range a.neighbors {
		out[id] = a.Neighbors(id)
	}
	return out
}

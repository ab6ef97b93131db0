package hnsw

import "github.com/hupe1980/vecsim/model"

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level          int
	Nodes          int
	Edges          int
	AvgConnections float64
}

// Stats is a point-in-time summary of the graph.
type Stats struct {
	Nodes      int
	MaxLevel   int
	EntryPoint model.Row
	Staleness  int
	Levels     []LevelStats
}

// Stats walks the graph and summarizes it per layer.
func (g *Graph) Stats() Stats {
	s := Stats{
		Nodes:      g.count,
		MaxLevel:   g.maxLevel,
		EntryPoint: g.entry,
		Staleness:  g.staleness,
	}
	if g.maxLevel < 0 {
		return s
	}

	s.Levels = make([]LevelStats, g.maxLevel+1)
	for l := range s.Levels {
		s.Levels[l].Level = l
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		if !n.live {
			continue
		}
		for l, links := range n.links {
			if l >= len(s.Levels) {
				break
			}
			s.Levels[l].Nodes++
			s.Levels[l].Edges += len(links)
		}
	}
	for l := range s.Levels {
		if s.Levels[l].Nodes > 0 {
			s.Levels[l].AvgConnections = float64(s.Levels[l].Edges) / float64(s.Levels[l].Nodes)
		}
	}
	return s
}

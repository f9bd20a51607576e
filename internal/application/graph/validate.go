package graph

import "sort"

// analysis is the validated structure of a node and edge set
type analysis struct {
	nodes map[string]*taskNode
	order []*taskNode
}

// analyze validates nodes and edges and derives dependencies and dependents.
func analyze(nodes []Node, edges []Edge) (*analysis, error) {
	if len(nodes) == 0 {
		return nil, &GraphError{Kind: ErrEmptyGraph}
	}

	byID := make(map[string]*taskNode, len(nodes))
	order := make([]*taskNode, 0, len(nodes))
	for _, spec := range nodes {
		if spec.ID == "" {
			return nil, graphErrorf(ErrInvalidNode, "node id is required")
		}
		if (spec.Run == nil) == (spec.RunAsync == nil) {
			return nil, graphErrorf(ErrInvalidNode, "node %s must set exactly one of Run and RunAsync", spec.ID)
		}
		if _, exists := byID[spec.ID]; exists {
			return nil, graphErrorf(ErrDuplicateNode, "%s", spec.ID)
		}
		n := &taskNode{spec: spec, state: StatePending}
		byID[spec.ID] = n
		order = append(order, n)
	}

	seen := make(map[Edge]struct{}, len(edges))
	for _, edge := range edges {
		from, ok := byID[edge.From]
		if !ok {
			return nil, graphErrorf(ErrUnknownNode, "edge source %q", edge.From)
		}
		to, ok := byID[edge.To]
		if !ok {
			return nil, graphErrorf(ErrUnknownNode, "edge target %q", edge.To)
		}
		if edge.From == edge.To {
			return nil, graphErrorf(ErrCycleDetected, "%s depends on itself", edge.From)
		}
		if _, dup := seen[edge]; dup {
			continue
		}
		seen[edge] = struct{}{}
		to.deps = append(to.deps, from.spec.ID)
		from.dependents = append(from.dependents, to.spec.ID)
	}

	for _, n := range order {
		for _, req := range n.spec.Requires {
			if _, ok := byID[req]; !ok {
				return nil, graphErrorf(ErrUnknownNode, "node %s requires %q", n.spec.ID, req)
			}
			if !contains(n.deps, req) {
				return nil, graphErrorf(ErrInvalidNode, "node %s requires %s without depending on it", n.spec.ID, req)
			}
			if !contains(n.requires, req) {
				n.requires = append(n.requires, req)
			}
		}
		n.waiting = len(n.deps)
	}

	if err := checkAcyclic(order, byID); err != nil {
		return nil, err
	}

	return &analysis{nodes: byID, order: order}, nil
}

// checkAcyclic runs Kahn's algorithm over the derived dependency counts.
func checkAcyclic(order []*taskNode, byID map[string]*taskNode) error {
	indegree := make(map[string]int, len(order))
	queue := make([]*taskNode, 0, len(order))
	for _, n := range order {
		indegree[n.spec.ID] = len(n.deps)
		if len(n.deps) == 0 {
			queue = append(queue, n)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, id := range n.dependents {
			indegree[id]--
			if indegree[id] == 0 {
				queue = append(queue, byID[id])
			}
		}
	}

	if visited == len(order) {
		return nil
	}

	stuck := make([]string, 0, len(order)-visited)
	for id, deg := range indegree {
		if deg > 0 {
			stuck = append(stuck, id)
		}
	}
	sort.Strings(stuck)
	return cycleError(stuck)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

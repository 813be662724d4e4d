package engine

import "github.com/cyohn55/agentic-visual-scripting/pkg/models"

// graph is the frozen, indexed view of a workflow the engine traverses.
// Outgoing edges keep their document order; "first edge" always means
// first as authored.
type graph struct {
	order    []*models.WorkflowNode
	nodes    map[string]*models.WorkflowNode
	outgoing map[string][]*models.WorkflowEdge
}

func newGraph(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) *graph {
	g := &graph{
		order:    nodes,
		nodes:    make(map[string]*models.WorkflowNode, len(nodes)),
		outgoing: make(map[string][]*models.WorkflowEdge),
	}

	for _, node := range nodes {
		g.nodes[node.ID] = node
	}

	for _, edge := range edges {
		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	}

	return g
}

// startNode returns the first node of kind start, or nil.
func (g *graph) startNode() *models.WorkflowNode {
	for _, node := range g.order {
		if node.Kind == models.NodeKindStart {
			return node
		}
	}

	return nil
}

func (g *graph) node(id string) *models.WorkflowNode {
	return g.nodes[id]
}

// firstSuccessor returns the target of the first outgoing edge, or "".
func (g *graph) firstSuccessor(id string) string {
	edges := g.outgoing[id]
	if len(edges) == 0 {
		return ""
	}

	return edges[0].Target
}

// branchSuccessor returns the target of the edge carrying the given branch
// tag. When no edge is tagged, it falls back to the outgoing edge at
// fallbackIndex (first for "yes", second for "no").
func (g *graph) branchSuccessor(id string, tag models.BranchTag, fallbackIndex int) string {
	edges := g.outgoing[id]

	for _, edge := range edges {
		if edge.Branch == tag {
			return edge.Target
		}
	}

	if fallbackIndex < len(edges) {
		return edges[fallbackIndex].Target
	}

	return ""
}

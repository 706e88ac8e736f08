package motionplan

import "go.viam.com/voxelnav/spatialmath"

// node is a pose in one of the two search trees. Roots have a nil parent.
type node struct {
	pose   spatialmath.Pose2D
	parent *node
}

// rrtTree holds the nodes of one tree in insertion order.
type rrtTree struct {
	nodes     []*node
	fromStart bool
}

func newTree(root spatialmath.Pose2D, fromStart bool) *rrtTree {
	return &rrtTree{nodes: []*node{{pose: root}}, fromStart: fromStart}
}

func (t *rrtTree) root() *node {
	return t.nodes[0]
}

func (t *rrtTree) add(pose spatialmath.Pose2D, parent *node) *node {
	n := &node{pose: pose, parent: parent}
	t.nodes = append(t.nodes, n)
	return n
}

// nodePair is where the two trees met: a in the tree that was extended, b in the tree that
// connected to it. Both hold the same pose.
type nodePair struct {
	a, b *node
}

// extractPath walks both trees from the meeting point back to their roots and returns the
// poses ordered from start to goal.
func extractPath(aTree *rrtTree, pair nodePair) []spatialmath.Pose2D {
	startReached, goalReached := pair.a, pair.b
	if !aTree.fromStart {
		startReached, goalReached = pair.b, pair.a
	}

	path := make([]spatialmath.Pose2D, 0)
	for n := startReached; n != nil; n = n.parent {
		path = append(path, n.pose)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	// skip goalReached itself, it repeats the last pose of the start side
	for n := goalReached.parent; n != nil; n = n.parent {
		path = append(path, n.pose)
	}
	return path
}

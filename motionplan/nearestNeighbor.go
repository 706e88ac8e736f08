package motionplan

import (
	"math"
	"sync"

	"go.viam.com/utils"

	"go.viam.com/voxelnav/spatialmath"
)

const neighborsBeforeParallelization = 1000

type neighborManager struct {
	space ConfigurationSpace
	nCPU  int
}

type neighbor struct {
	dist  float64
	index int
}

// nearestNeighbor returns the node closest to target. Ties go to the earliest inserted node, so
// the answer does not depend on how the search was split across workers.
func (nm *neighborManager) nearestNeighbor(target spatialmath.Pose2D, tree *rrtTree) *node {
	if len(tree.nodes) > neighborsBeforeParallelization && nm.nCPU > 1 {
		return nm.parallelNearestNeighbor(target, tree)
	}
	best := nm.scan(target, tree.nodes, 0)
	return tree.nodes[best.index]
}

func (nm *neighborManager) scan(target spatialmath.Pose2D, nodes []*node, offset int) neighbor {
	best := neighbor{dist: math.Inf(1), index: -1}
	for i, n := range nodes {
		if d := nm.space.Distance(n.pose, target); d < best.dist {
			best = neighbor{dist: d, index: offset + i}
		}
	}
	return best
}

func (nm *neighborManager) parallelNearestNeighbor(target spatialmath.Pose2D, tree *rrtTree) *node {
	chunk := (len(tree.nodes) + nm.nCPU - 1) / nm.nCPU
	results := make([]neighbor, nm.nCPU)
	var wg sync.WaitGroup
	for w := 0; w < nm.nCPU; w++ {
		from := w * chunk
		to := min(from+chunk, len(tree.nodes))
		results[w] = neighbor{dist: math.Inf(1), index: -1}
		if from >= to {
			continue
		}
		wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			results[w] = nm.scan(target, tree.nodes[from:to], from)
		})
	}
	wg.Wait()

	best := results[0]
	for _, r := range results[1:] {
		if r.index >= 0 && (best.index < 0 || r.dist < best.dist) {
			best = r
		}
	}
	return tree.nodes[best.index]
}

package sqlast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcyclicWalk_VisitsTree(t *testing.T) {
	children := map[int][]int{
		1: {2, 3},
		2: {4},
		3: {4},
		4: {},
	}
	var visited []int
	AcyclicWalk(1, func(k int) []int { return children[k] }, func(k int) { visited = append(visited, k) })
	assert.Equal(t, []int{1, 2, 4, 3, 4}, visited)
}

func TestAcyclicWalk_StopsOnCycle(t *testing.T) {
	// 1 -> 2 -> 3 -> 1 (cycle)
	children := map[int][]int{
		1: {2},
		2: {3},
		3: {1},
	}
	visited := map[int]int{}
	done := make(chan struct{})
	go func() {
		AcyclicWalk(1, func(k int) []int { return children[k] }, func(k int) { visited[k]++ })
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("AcyclicWalk did not terminate on a cyclic graph")
	}
	assert.Positive(t, visited[1])
}

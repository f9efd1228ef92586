package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKTieBreakIsAscendingKey(t *testing.T) {
	// Scenario 2 from spec.md §8: equal counts, "A" sorts before "B".
	counts := map[string]int64{"B": 3, "A": 3}
	ranked := TopK(counts, 10)
	assert.Equal(t, []Ranked{{Key: "A", Count: 3}, {Key: "B", Count: 3}}, ranked)
}

func TestTopKTruncatesToN(t *testing.T) {
	counts := map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4}
	ranked := TopK(counts, 2)
	assert.Equal(t, []Ranked{{Key: "d", Count: 4}, {Key: "c", Count: 3}}, ranked)
}

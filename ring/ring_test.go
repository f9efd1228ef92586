package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	_, err := New[int](7)
	assert.Error(t, err)
}

func TestPublishPollInOrder(t *testing.T) {
	b, err := New[int](16)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		b.Publish(i)
	}

	c := b.NewCursor()
	got := b.PollBatch(c, 100, time.Millisecond)
	require.Len(t, got, 10)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Zero(t, c.DroppedCount())
}

func TestPollBatchTimesOutWhenEmpty(t *testing.T) {
	b, err := New[int](8)
	require.NoError(t, err)
	c := b.NewCursor()

	start := time.Now()
	got := b.PollBatch(c, 10, 20*time.Millisecond)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestOverflowAccounting(t *testing.T) {
	// Scenario 5: capacity 8, no consumer, publish 20 records.
	b, err := New[int](8)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		b.Publish(i)
	}

	assert.Equal(t, uint64(12), b.DroppedCount())
	assert.Equal(t, 8, b.Size())

	c := b.NewCursor()
	got := b.PollBatch(c, 8, time.Millisecond)
	require.Len(t, got, 8)
	for i, v := range got {
		assert.Equal(t, 12+i, v)
	}
}

func TestSlowConsumerReportsDrops(t *testing.T) {
	b, err := New[int](4)
	require.NoError(t, err)
	c := b.NewCursor()

	for i := 0; i < 4; i++ {
		b.Publish(i)
	}
	got := b.PollBatch(c, 1, time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0])

	// Overwrite everything the cursor hasn't consumed yet.
	for i := 4; i < 12; i++ {
		b.Publish(i)
	}

	got = b.PollBatch(c, 100, time.Millisecond)
	require.NotEmpty(t, got)
	assert.Greater(t, c.DroppedCount(), uint64(0))
}

func TestConcurrentPublishersDoNotRace(t *testing.T) {
	b, err := New[int](1024)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Publish(base*100 + i)
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 800, b.Size())
}

func TestIndependentCursorsSeeSameStream(t *testing.T) {
	b, err := New[int](32)
	require.NoError(t, err)

	c1 := b.NewCursor()
	c2 := b.NewCursor()

	for i := 0; i < 5; i++ {
		b.Publish(i)
	}

	got1 := b.PollBatch(c1, 100, time.Millisecond)
	got2 := b.PollBatch(c2, 100, time.Millisecond)
	assert.Equal(t, got1, got2)
}

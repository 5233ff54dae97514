package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hara602/triangleSentry/internal/model"
)

func TestEmptyTimeline(t *testing.T) {
	tl := New()
	n := 0
	for range tl.Ordered() {
		n++
	}
	assert.Zero(t, n)
	assert.Empty(t, tl.Expand())
}

func TestOrderedIsSortedAndStable(t *testing.T) {
	tl := New()
	tl.Append(30, model.Event{Category: model.NetUsage, Detail: "c"})
	tl.Append(10, model.Event{Category: model.FileModified, Detail: "a1"})
	tl.Append(20, model.Event{Category: model.NetFirst, Detail: "b"})
	tl.Append(10, model.Event{Category: model.FileAttrChanged, Detail: "a2"})
	tl.Append(10, model.Event{Category: model.FileBirth, Detail: "a3"})

	got := tl.Expand()
	require.Len(t, got, 5)
	details := make([]string, 0, len(got))
	for _, e := range got {
		details = append(details, e.Event.Detail)
	}
	assert.Equal(t, []string{"a1", "a2", "a3", "b", "c"}, details)
	assert.Equal(t, 5, tl.Len())
}

func TestOrderedRandomised(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tl := New()
	seq := map[float64]int{}
	for i := 0; i < 500; i++ {
		ts := float64(rng.Intn(50))
		tl.Append(ts, model.Event{Category: model.NetUsage, Detail: string(rune('a' + seq[ts]%26))})
		seq[ts]++
	}

	var prev float64 = -1
	counter := map[float64]int{}
	for ts, ev := range tl.Ordered() {
		require.GreaterOrEqual(t, ts, prev)
		// 同一时间戳按插入顺序
		require.Equal(t, string(rune('a'+counter[ts]%26)), ev.Detail)
		counter[ts]++
		prev = ts
	}
}

func TestOrderedRestartableAndEarlyStop(t *testing.T) {
	tl := New()
	for i := 0; i < 10; i++ {
		tl.Append(float64(i), model.Event{Category: model.NetUsage, Detail: "p"})
	}

	seen := 0
	for range tl.Ordered() {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
	assert.Len(t, tl.Expand(), 10)
	assert.Len(t, tl.Expand(), 10)
}

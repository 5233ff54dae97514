package timeline

import (
	"iter"
	"slices"
	"sync"

	"github.com/Hara602/triangleSentry/internal/model"
)

// Timeline 以时间戳为键的只追加多值映射
// 采集阶段单写者追加，分析阶段只读
type Timeline struct {
	mu     sync.RWMutex
	events map[float64][]model.Event
	size   int
}

// New 创建空时间线
func New() *Timeline {
	return &Timeline{events: make(map[float64][]model.Event)}
}

// Append 追加事件，同一时间戳的事件保持插入顺序
func (t *Timeline) Append(ts float64, ev model.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[ts] = append(t.events[ts], ev)
	t.size++
}

// Len 事件总数
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Ordered 按时间升序惰性产出 (ts, event)；可多次遍历
func (t *Timeline) Ordered() iter.Seq2[float64, model.Event] {
	return func(yield func(float64, model.Event) bool) {
		t.mu.RLock()
		keys := make([]float64, 0, len(t.events))
		for ts := range t.events {
			keys = append(keys, ts)
		}
		t.mu.RUnlock()
		slices.Sort(keys)

		for _, ts := range keys {
			t.mu.RLock()
			bucket := t.events[ts]
			t.mu.RUnlock()
			for _, ev := range bucket {
				if !yield(ts, ev) {
					return
				}
			}
		}
	}
}

// Expand 展开为有序切片，供滑动窗口按下标访问
func (t *Timeline) Expand() model.EventWindow {
	out := make(model.EventWindow, 0, t.Len())
	for ts, ev := range t.Ordered() {
		out = append(out, model.TimedEvent{Timestamp: ts, Event: ev})
	}
	return out
}

package registry

import (
	"iter"
	"slices"
	"sync"

	"github.com/Hara602/triangleSentry/internal/model"
)

// Registry 以检测时间戳为键的检测结果集合 (只追加)
type Registry struct {
	mu         sync.Mutex
	detections map[float64][]model.Detection
	size       int
}

func New() *Registry {
	return &Registry{detections: make(map[float64][]model.Detection)}
}

// Record 追加一条检测
func (r *Registry) Record(ts float64, d model.Detection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections[ts] = append(r.detections[ts], d)
	r.size++
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// All 按时间升序产出 (ts, 该时刻的全部检测)
func (r *Registry) All() iter.Seq2[float64, []model.Detection] {
	return func(yield func(float64, []model.Detection) bool) {
		r.mu.Lock()
		keys := make([]float64, 0, len(r.detections))
		for ts := range r.detections {
			keys = append(keys, ts)
		}
		r.mu.Unlock()
		slices.Sort(keys)

		for _, ts := range keys {
			r.mu.Lock()
			group := slices.Clone(r.detections[ts])
			r.mu.Unlock()
			if !yield(ts, group) {
				return
			}
		}
	}
}

// Flatten 展开为有序切片
func (r *Registry) Flatten() []model.Detection {
	var out []model.Detection
	for _, group := range r.All() {
		out = append(out, group...)
	}
	return out
}

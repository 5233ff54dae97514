package ioc

import (
	"go.uber.org/zap"

	"github.com/Hara602/triangleSentry/internal/model"
)

// Verdict 单条记录的匹配结果
type Verdict uint8

const (
	VerdictIgnored Verdict = iota
	VerdictImplicit
	VerdictExact
)

func (v Verdict) String() string {
	switch v {
	case VerdictExact:
		return "exact"
	case VerdictImplicit:
		return "implicit"
	default:
		return "ignored"
	}
}

// Record 采集器产出的一条待匹配工件记录，时间戳已归一为 Unix 秒
type Record struct {
	Category   model.Category
	Identifier string
	Timestamp  float64
}

// EventSink 时间线写入端
type EventSink interface {
	Append(ts float64, ev model.Event)
}

// DetectionSink 检测结果写入端
type DetectionSink interface {
	Record(ts float64, d model.Detection)
}

// Matcher 精确匹配器
type Matcher struct {
	lists      Lists
	timeline   EventSink
	detections DetectionSink
	log        *zap.Logger
}

// NewMatcher 创建匹配器；log 为 nil 时不输出
func NewMatcher(lists Lists, tl EventSink, det DetectionSink, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{lists: lists, timeline: tl, detections: det, log: log}
}

func (m *Matcher) listFor(c model.Category) List {
	if c == model.LocationStopped {
		return m.lists.Location
	}
	return m.lists.Process
}

// Observe 对一条记录分级：
// exact -> 直接告警并进入时间线；implicit -> 只进入时间线；其它忽略
func (m *Matcher) Observe(rec Record) Verdict {
	verdict := m.listFor(rec.Category).Classify(rec.Identifier)

	switch verdict {
	case VerdictExact:
		m.log.Info("IOC exact match",
			zap.Stringer("source", rec.Category),
			zap.String("identifier", rec.Identifier),
			zap.Float64("ts", rec.Timestamp),
		)
		m.detections.Record(rec.Timestamp, model.NewExactDetection(rec.Timestamp, rec.Category.String(), rec.Identifier))
		m.timeline.Append(rec.Timestamp, model.Event{Category: rec.Category, Detail: rec.Identifier})
	case VerdictImplicit:
		m.timeline.Append(rec.Timestamp, model.Event{Category: rec.Category, Detail: rec.Identifier})
	}
	return verdict
}

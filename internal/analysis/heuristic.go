package analysis

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hara602/triangleSentry/internal/model"
)

// AttachmentsMarker 短信附件存储路径标记
const AttachmentsMarker = "Library/SMS/Attachments/"

const (
	DefaultWindowSize     = 10
	DefaultMaxSpan        = 5 * time.Minute
	DefaultClassThreshold = 2
)

// Class 启发式事件大类
type Class string

const (
	ClassFile     Class = "file"
	ClassNet      Class = "net"
	ClassLocation Class = "location"
	ClassSMS      Class = "sms"
)

// Verdict 单个窗口的判定
type Verdict uint8

const (
	VerdictNoDetection  Verdict = iota // 类别不足或附件目录证据不完整
	VerdictDisqualified                // 窗口内出现真实附件文件，整窗作废
	VerdictDetected
)

func (v Verdict) String() string {
	switch v {
	case VerdictDisqualified:
		return "disqualified"
	case VerdictDetected:
		return "detected"
	default:
		return "no_detection"
	}
}

// Outcome 窗口分类结果
type Outcome struct {
	Verdict Verdict
	Classes []Class
	Window  model.EventWindow // 截断后的窗口
}

// Options 滑动窗口参数
type Options struct {
	WindowSize     int
	MaxSpan        time.Duration
	ClassThreshold int
	Workers        int // >1 时并行评估各锚点
}

// DefaultOptions 默认参数：10 个事件、5 分钟、至少 2 类
func DefaultOptions() Options {
	return Options{
		WindowSize:     DefaultWindowSize,
		MaxSpan:        DefaultMaxSpan,
		ClassThreshold: DefaultClassThreshold,
		Workers:        1,
	}
}

// DetectionSink 检测结果写入端
type DetectionSink interface {
	Record(ts float64, d model.Detection)
}

// Engine 滑动窗口启发式引擎
type Engine struct {
	opts Options
	log  *zap.Logger
}

// NewEngine 创建引擎；非法参数回落到默认值
func NewEngine(opts Options, log *zap.Logger) *Engine {
	def := DefaultOptions()
	if opts.WindowSize <= 0 {
		opts.WindowSize = def.WindowSize
	}
	if opts.MaxSpan <= 0 {
		opts.MaxSpan = def.MaxSpan
	}
	if opts.ClassThreshold <= 0 {
		opts.ClassThreshold = def.ClassThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{opts: opts, log: log}
}

// Windows 生成所有待评估窗口 (已按时间截断)
// 锚点 i 取 0..len-W；尾部不足 W 个事件的窗口不评估
func (e *Engine) Windows(seq model.EventWindow) []model.EventWindow {
	w := e.opts.WindowSize
	if len(seq) < w {
		return nil
	}
	span := e.opts.MaxSpan.Seconds()

	windows := make([]model.EventWindow, 0, len(seq)-w+1)
	for i := 0; i <= len(seq)-w; i++ {
		window := seq[i : i+w]
		start := window[0].Timestamp
		for j := range window {
			if window[j].Timestamp-start > span {
				window = window[:j]
				break
			}
		}
		windows = append(windows, window)
	}
	return windows
}

// Scan 对完整有序序列滑动评估，命中的窗口按锚点顺序写入 sink
func (e *Engine) Scan(ctx context.Context, seq model.EventWindow, sink DetectionSink) (int, error) {
	windows := e.Windows(seq)
	outcomes := make([]Outcome, len(windows))

	if e.opts.Workers > 1 {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)
		for i := range windows {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				outcomes[i] = e.Evaluate(windows[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	} else {
		for i := range windows {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			outcomes[i] = e.Evaluate(windows[i])
		}
	}

	detected := 0
	for _, out := range outcomes {
		switch out.Verdict {
		case VerdictDetected:
			ts := out.Window[0].Timestamp
			sink.Record(ts, model.NewHeuristicDetection(ts, out.Window))
			detected++
		case VerdictDisqualified:
			e.log.Debug("window disqualified by attachment file", zap.Float64("anchor", out.Window[0].Timestamp))
		}
	}
	e.log.Debug("heuristic scan finished",
		zap.Int("events", len(seq)),
		zap.Int("windows", len(windows)),
		zap.Int("detections", detected),
	)
	return detected, nil
}

type attachmentSeen struct {
	modified    bool
	attrChanged bool
}

// Evaluate 对单个窗口分类
func (e *Engine) Evaluate(window model.EventWindow) Outcome {
	out := Outcome{Verdict: VerdictNoDetection, Window: window}
	if len(window) == 0 {
		return out
	}

	classes := make(map[Class]bool)
	attachments := make(map[string]*attachmentSeen)

	for _, te := range window {
		ev := te.Event
		switch {
		case ev.Category.IsFile():
			_, rest, ok := strings.Cut(ev.Detail, AttachmentsMarker)
			if !ok {
				classes[ClassFile] = true
				continue
			}
			// 形如 Attachments/ff/15 的是容器目录；更深的是附件文件本身
			if len(strings.Split(rest, "/")) > 2 {
				out.Verdict = VerdictDisqualified
				return out
			}
			seen := attachments[ev.Detail]
			if seen == nil {
				seen = &attachmentSeen{}
				attachments[ev.Detail] = seen
			}
			switch ev.Category {
			case model.FileModified:
				seen.modified = true
			case model.FileAttrChanged:
				seen.attrChanged = true
			}
		case ev.Category.IsNet():
			classes[ClassNet] = true
		case ev.Category == model.LocationStopped:
			classes[ClassLocation] = true
		}
	}

	// 每个附件目录都必须同时出现修改和属性变更
	for _, seen := range attachments {
		if !seen.modified || !seen.attrChanged {
			return out
		}
	}
	if len(attachments) > 0 {
		classes[ClassSMS] = true
	}

	for _, c := range []Class{ClassFile, ClassNet, ClassLocation, ClassSMS} {
		if classes[c] {
			out.Classes = append(out.Classes, c)
		}
	}
	if len(out.Classes) >= e.opts.ClassThreshold {
		out.Verdict = VerdictDetected
	}
	return out
}

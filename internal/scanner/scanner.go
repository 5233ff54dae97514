package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hara602/triangleSentry/internal/analysis"
	"github.com/Hara602/triangleSentry/internal/collector"
	"github.com/Hara602/triangleSentry/internal/ioc"
	"github.com/Hara602/triangleSentry/internal/model"
	"github.com/Hara602/triangleSentry/internal/registry"
	"github.com/Hara602/triangleSentry/internal/timeline"
)

// ErrPreconditionNotMet 必需的短信附件目录不存在，扫描无法开始
var ErrPreconditionNotMet = errors.New("precondition not met")

// Options 扫描参数
type Options struct {
	Heuristics analysis.Options
	Lists      ioc.Lists
	Collectors []collector.Collector // 为空时使用 collector.Default
	Logger     *zap.Logger
}

// Result 一次扫描的产出
type Result struct {
	Detections []model.Detection // 按时间升序
	Events     int               // 时间线事件数
	Skipped    []string          // 不存在的可选工件
	Warnings   error             // 各工件的软失败 (multierr)
}

// Scanner 采集 -> 关联 流水线
type Scanner struct {
	opts   Options
	engine *analysis.Engine
	log    *zap.Logger
}

func New(opts Options) *Scanner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.Collectors) == 0 {
		opts.Collectors = collector.Default(opts.Logger)
	}
	return &Scanner{
		opts:   opts,
		engine: analysis.NewEngine(opts.Heuristics, opts.Logger),
		log:    opts.Logger,
	}
}

// CheckPrecondition 校验镜像根目录下存在短信附件目录
func CheckPrecondition(root string) error {
	dir := collector.Join(root, collector.AttachmentsDir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: SMS attachments directory not found at %s", ErrPreconditionNotMet, dir)
	}
	return nil
}

type collected struct {
	batch    collector.Batch
	err      error
	notFound bool
}

// Scan 并发采集各工件，按固定顺序合并后运行滑动窗口分析
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	if err := CheckPrecondition(root); err != nil {
		return nil, err
	}

	results := make([]collected, len(s.opts.Collectors))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range s.opts.Collectors {
		g.Go(func() error {
			err := c.Collect(gctx, root, &results[i].batch)
			switch {
			case err == nil:
			case errors.Is(err, collector.ErrNotFound):
				results[i].notFound = true
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				results[i].err = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect artifacts: %w", err)
	}

	tl := timeline.New()
	reg := registry.New()
	matcher := ioc.NewMatcher(s.opts.Lists, tl, reg, s.log)
	res := &Result{}

	for i, c := range s.opts.Collectors {
		r := results[i]
		switch {
		case r.notFound:
			s.log.Debug("Artifact not present", zap.String("artifact", c.Name()))
			res.Skipped = append(res.Skipped, c.Name())
		case r.err != nil:
			s.log.Warn("Artifact skipped", zap.String("artifact", c.Name()), zap.Error(r.err))
			res.Warnings = multierr.Append(res.Warnings, fmt.Errorf("%s: %w", c.Name(), r.err))
		}

		for _, e := range r.batch.Events {
			tl.Append(e.Timestamp, e.Event)
		}
		for _, rec := range r.batch.Records {
			matcher.Observe(rec)
		}
	}

	res.Events = tl.Len()
	s.log.Info("Timeline built", zap.Int("events", res.Events), zap.Int("exact", reg.Len()))

	if _, err := s.engine.Scan(ctx, tl.Expand(), reg); err != nil {
		return nil, fmt.Errorf("heuristic scan: %w", err)
	}

	res.Detections = reg.Flatten()
	return res, nil
}

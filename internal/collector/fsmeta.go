package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Hara602/triangleSentry/internal/model"
)

// fileTimes 一个路径的 mtime / ctime / birthtime (Unix 秒)
type fileTimes struct {
	Modified    float64
	AttrChanged float64
	Birth       float64
}

func (t fileTimes) emit(b *Batch, rel string) {
	b.AddEvent(t.Modified, model.FileModified, rel)
	b.AddEvent(t.AttrChanged, model.FileAttrChanged, rel)
	b.AddEvent(t.Birth, model.FileBirth, rel)
}

// attachmentsCollector 遍历短信附件目录结构 (只到 Attachments/xx/yy 两层)
type attachmentsCollector struct {
	log *zap.Logger
}

func (c *attachmentsCollector) Name() string { return "sms_attachments" }

func (c *attachmentsCollector) Collect(ctx context.Context, root string, b *Batch) error {
	base := Join(root, AttachmentsDir)
	info, err := os.Stat(base)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat attachments dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", base)
	}

	return filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// 单个目录不可读：记录后继续
			c.log.Warn("Error accessing attachment path", zap.String("path", p), zap.Error(walkErr))
			if d != nil && d.IsDir() && p != base {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}

		depth := attachmentDepth(base, p)
		if depth > 2 {
			return fs.SkipDir
		}

		rel := relPath(root, p)
		times, err := statTimes(p)
		if err != nil {
			c.log.Warn("Error accessing attachment dir", zap.String("path", rel), zap.Error(err))
			return nil
		}
		times.emit(b, rel)

		if depth == 2 {
			entries, err := os.ReadDir(p)
			if err == nil && len(entries) == 0 {
				c.log.Info("Empty attachment directory found",
					zap.String("path", rel),
					zap.Time("modified", model.UnixTime(times.Modified)),
				)
			}
		}
		return nil
	})
}

// attachmentDepth Attachments 本身为 0，Attachments/ff 为 1，Attachments/ff/15 为 2
func attachmentDepth(base, p string) int {
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

// relPath 镜像内相对路径，统一使用 '/'
func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

// preferencesCollector 记录几个常被利用链改动的系统 plist 的元数据
type preferencesCollector struct {
	log *zap.Logger
}

func (c *preferencesCollector) Name() string { return "preferences" }

func (c *preferencesCollector) Collect(ctx context.Context, root string, b *Batch) error {
	for _, name := range WatchedPreferences {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := Join(root, path.Join(PreferencesDir, name))
		times, err := statTimes(full)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.log.Warn("Error accessing preference plist", zap.String("path", full), zap.Error(err))
			}
			continue
		}
		// 只保留 Preferences/<name>
		times.emit(b, path.Join(path.Base(PreferencesDir), name))
	}
	return nil
}

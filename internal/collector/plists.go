package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"howett.net/plist"

	"github.com/Hara602/triangleSentry/internal/model"
)

// decodePlist 解析 binary/XML plist 到顶层字典
func decodePlist(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read plist: %w", err)
	}
	var doc map[string]interface{}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse plist %s: %w", path, err)
	}
	return doc, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// numeric plist 中的 <real>/<integer>
func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// osAnalyticsCollector 读取 netUsageBaseline：进程 -> [首次使用日期, ...]
type osAnalyticsCollector struct{}

func (c *osAnalyticsCollector) Name() string { return "osanalytics" }

func (c *osAnalyticsCollector) Collect(ctx context.Context, root string, b *Batch) error {
	doc, err := decodePlist(Join(root, OSAnalyticsPlist))
	if err != nil {
		return err
	}
	baseline, ok := doc[netUsageBaselineKey].(map[string]interface{})
	if !ok {
		return nil
	}

	for _, proc := range sortedKeys(baseline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, ok := baseline[proc].([]interface{})
		if !ok || len(entry) == 0 {
			continue
		}
		first, ok := entry[0].(time.Time)
		if !ok {
			continue
		}
		// plist 日期本身就是 UTC
		b.AddRecord(model.UnixSeconds(first), model.NetUsage, proc)
	}
	return nil
}

// locationdCollector 读取 locationd clients.plist 中各客户端的 LocationTimeStopped
type locationdCollector struct {
	log *zap.Logger
}

func (c *locationdCollector) Name() string { return "locationd_clients" }

func (c *locationdCollector) Collect(ctx context.Context, root string, b *Batch) error {
	doc, err := decodePlist(Join(root, LocationdClients))
	if err != nil {
		return err
	}

	for _, client := range sortedKeys(doc) {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok := doc[client].(map[string]interface{})
		if !ok {
			continue
		}
		stopped, ok := numeric(item[locationStoppedKey])
		if !ok {
			continue
		}
		ts := model.CocoaToUnix(stopped)
		if !finiteTimestamp(ts) {
			c.log.Warn("Skipping non-finite location timestamp", zap.String("client", client))
			continue
		}
		b.AddRecord(ts, model.LocationStopped, client)
	}
	return nil
}

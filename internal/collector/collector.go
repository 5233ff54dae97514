package collector

import (
	"context"
	"errors"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Hara602/triangleSentry/internal/ioc"
	"github.com/Hara602/triangleSentry/internal/model"
)

// 镜像内工件的相对路径
const (
	AttachmentsDir   = "private/var/mobile/Library/SMS/Attachments"
	PreferencesDir   = "private/var/mobile/Library/Preferences"
	OSAnalyticsPlist = PreferencesDir + "/com.apple.osanalytics.addaily.plist"
	DataUsageDB      = "private/var/mobile/Library/Databases/DataUsage.sqlite"
	LocationdClients = "private/var/mobile/Library/Caches/locationd/clients.plist"
)

const (
	netUsageBaselineKey = "netUsageBaseline"
	locationStoppedKey  = "LocationTimeStopped"
)

// WatchedPreferences 只取文件元数据的偏好设置 plist
var WatchedPreferences = []string{
	"com.apple.locationd.StatusBarIconManager.plist",
	"com.apple.imservice.ids.FaceTime.plist",
	"com.apple.ImageIO.plist",
}

// ErrNotFound 可选工件不存在 (调用方视为跳过)
var ErrNotFound = errors.New("artifact not found")

// Batch 单个采集器的产出；调度方按固定顺序合并，保证结果可复现
type Batch struct {
	Events  []model.TimedEvent
	Records []ioc.Record
}

// AddEvent 直接进入时间线的事件
func (b *Batch) AddEvent(ts float64, c model.Category, detail string) {
	b.Events = append(b.Events, model.TimedEvent{Timestamp: ts, Event: model.Event{Category: c, Detail: detail}})
}

// AddRecord 交给精确匹配器分级的记录
func (b *Batch) AddRecord(ts float64, c model.Category, identifier string) {
	b.Records = append(b.Records, ioc.Record{Category: c, Identifier: identifier, Timestamp: ts})
}

// Collector 只读地从镜像中提取一类工件
type Collector interface {
	Name() string
	// Collect 工件不存在时返回 ErrNotFound；其它错误为该工件的软失败
	Collect(ctx context.Context, root string, b *Batch) error
}

// Default 全部内置采集器，顺序即合并顺序
func Default(log *zap.Logger) []Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return []Collector{
		&attachmentsCollector{log: log},
		&preferencesCollector{log: log},
		&osAnalyticsCollector{},
		&dataUsageCollector{log: log},
		&locationdCollector{log: log},
	}
}

// Join 拼接镜像根目录与相对路径
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// finiteTimestamp NaN/Inf 作为时间线 key 无法再被检索，采集时直接丢弃
func finiteTimestamp(ts float64) bool {
	return !math.IsNaN(ts) && !math.IsInf(ts, 0)
}

package model

import "fmt"

// Category 时间线事件的类别 (封闭枚举)
type Category uint8

const (
	FileModified    Category = iota + 1 // 目录/文件 mtime
	FileAttrChanged                     // ctime
	FileBirth                           // birthtime
	NetTimestamp                        // DataUsage ZPROCESS.ZTIMESTAMP
	NetUsage                            // osanalytics netUsageBaseline
	NetFirst                            // DataUsage ZPROCESS.ZFIRSTTIMESTAMP
	NetTimestamp2                       // DataUsage ZLIVEUSAGE.ZTIMESTAMP
	LocationStopped                     // locationd clients LocationTimeStopped
)

var categoryNames = map[Category]string{
	FileModified:    "FileModified",
	FileAttrChanged: "FileAttrChanged",
	FileBirth:       "FileBirth",
	NetTimestamp:    "NetTimestamp",
	NetUsage:        "NetUsage",
	NetFirst:        "NetFirst",
	NetTimestamp2:   "NetTimestamp2",
	LocationStopped: "LocationStopped",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// Valid 是否属于已知类别
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// IsFile 文件系统元数据事件 (M/C/B)
func (c Category) IsFile() bool {
	return c == FileModified || c == FileAttrChanged || c == FileBirth
}

// IsNet 网络使用相关事件
func (c Category) IsNet() bool {
	return c == NetTimestamp || c == NetUsage || c == NetFirst || c == NetTimestamp2
}

// Event 一条不可变的时间线事实
type Event struct {
	Category Category
	Detail   string // 文件为镜像内相对路径，其它为进程名/bundle 标识
}

// TimedEvent 带时间戳的事件 (Unix 秒, UTC)
type TimedEvent struct {
	Timestamp float64 `json:"timestamp"`
	Event     Event   `json:"event"`
}

// EventWindow 触发启发式检测的时间线切片
type EventWindow []TimedEvent

// Kind 检测类型
type Kind uint8

const (
	KindExact Kind = iota + 1
	KindHeuristic
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindHeuristic:
		return "heuristic"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// IdentifierMatch 精确匹配的证据
type IdentifierMatch struct {
	Source     string `json:"source"`
	Identifier string `json:"identifier"`
}

// Detection 一条检测结果；Match 与 Window 二选一，由 Kind 决定
type Detection struct {
	Timestamp float64
	Kind      Kind
	Match     *IdentifierMatch
	Window    EventWindow
}

// NewExactDetection 构造精确匹配检测
func NewExactDetection(ts float64, source, identifier string) Detection {
	return Detection{
		Timestamp: ts,
		Kind:      KindExact,
		Match:     &IdentifierMatch{Source: source, Identifier: identifier},
	}
}

// NewHeuristicDetection 构造启发式检测，window 会被复制
func NewHeuristicDetection(ts float64, window EventWindow) Detection {
	w := make(EventWindow, len(window))
	copy(w, window)
	return Detection{
		Timestamp: ts,
		Kind:      KindHeuristic,
		Window:    w,
	}
}

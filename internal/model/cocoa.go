package model

import (
	"math"
	"time"
)

// CocoaEpochOffset 2001-01-01 00:00:00 UTC 相对 Unix 纪元的秒数
const CocoaEpochOffset = 978307200.0

// CocoaToUnix 将 Cocoa 纪元秒数转换为 Unix 秒数
// 所有来自 Apple 工件的 Cocoa 时间戳都必须经过这里
func CocoaToUnix(cocoa float64) float64 {
	return cocoa + CocoaEpochOffset
}

// UnixSeconds time.Time -> 浮点 Unix 秒
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// UnixTime 浮点 Unix 秒 -> UTC time.Time
func UnixTime(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

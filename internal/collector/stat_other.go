//go:build !linux && !darwin

package collector

import (
	"fmt"
	"os"

	"github.com/Hara602/triangleSentry/internal/model"
)

// 其它平台拿不到 ctime/birthtime，统一使用 mtime
func statTimes(path string) (fileTimes, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileTimes{}, fmt.Errorf("stat %s: %w", path, err)
	}
	m := model.UnixSeconds(info.ModTime())
	return fileTimes{Modified: m, AttrChanged: m, Birth: m}, nil
}

//go:build linux

package collector

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func statxSeconds(ts unix.StatxTimestamp) float64 {
	return float64(ts.Sec) + float64(ts.Nsec)/1e9
}

// statTimes 通过 statx 取得 birthtime；文件系统不支持时回落到 ctime
func statTimes(path string) (fileTimes, error) {
	var stx unix.Statx_t
	mask := unix.STATX_MTIME | unix.STATX_CTIME | unix.STATX_BTIME
	if err := unix.Statx(unix.AT_FDCWD, path, 0, mask, &stx); err != nil {
		return fileTimes{}, fmt.Errorf("statx %s: %w", path, err)
	}

	t := fileTimes{
		Modified:    statxSeconds(stx.Mtime),
		AttrChanged: statxSeconds(stx.Ctime),
	}
	if stx.Mask&unix.STATX_BTIME != 0 {
		t.Birth = statxSeconds(stx.Btime)
	} else {
		t.Birth = t.AttrChanged
	}
	return t, nil
}

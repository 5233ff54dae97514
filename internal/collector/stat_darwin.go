//go:build darwin

package collector

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func timespecSeconds(ts unix.Timespec) float64 {
	return float64(ts.Sec) + float64(ts.Nsec)/1e9
}

func statTimes(path string) (fileTimes, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fileTimes{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return fileTimes{
		Modified:    timespecSeconds(st.Mtim),
		AttrChanged: timespecSeconds(st.Ctim),
		Birth:       timespecSeconds(st.Btim),
	}, nil
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCocoaToUnix(t *testing.T) {
	assert.Equal(t, 978307200.0, CocoaToUnix(0))
	assert.Equal(t, 978307260.5, CocoaToUnix(60.5))

	// 2001-01-01 UTC
	assert.Equal(t, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), UnixTime(CocoaToUnix(0)))
}

func TestUnixRoundTrip(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 30, 0, 0, time.UTC)
	assert.Equal(t, ts, UnixTime(UnixSeconds(ts)))
}

func TestCategoryClasses(t *testing.T) {
	tests := []struct {
		cat  Category
		file bool
		net  bool
	}{
		{FileModified, true, false},
		{FileAttrChanged, true, false},
		{FileBirth, true, false},
		{NetTimestamp, false, true},
		{NetUsage, false, true},
		{NetFirst, false, true},
		{NetTimestamp2, false, true},
		{LocationStopped, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.cat.String(), func(t *testing.T) {
			assert.True(t, tt.cat.Valid())
			assert.Equal(t, tt.file, tt.cat.IsFile())
			assert.Equal(t, tt.net, tt.cat.IsNet())
		})
	}

	assert.False(t, Category(0).Valid())
	assert.Equal(t, "Category(42)", Category(42).String())
}

func TestNewHeuristicDetectionCopiesWindow(t *testing.T) {
	w := EventWindow{{Timestamp: 1, Event: Event{Category: NetUsage, Detail: "nehelper"}}}
	d := NewHeuristicDetection(1, w)
	w[0].Event.Detail = "changed"

	assert.Equal(t, KindHeuristic, d.Kind)
	assert.Nil(t, d.Match)
	assert.Equal(t, "nehelper", d.Window[0].Event.Detail)
}

package collector

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Hara602/triangleSentry/internal/analysis"
	"github.com/Hara602/triangleSentry/internal/ioc"
	"github.com/Hara602/triangleSentry/internal/model"
	"github.com/Hara602/triangleSentry/internal/testutil"
)

func details(events []model.TimedEvent, c model.Category) []string {
	var out []string
	for _, e := range events {
		if e.Event.Category == c {
			out = append(out, e.Event.Detail)
		}
	}
	return out
}

func TestAttachmentsCollectorDepth(t *testing.T) {
	capture := testutil.NewCapture(t)
	mtime := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	capture.WriteFile(t, AttachmentsDir+"/ff/15/IMG_0001.heic", []byte("x"))
	capture.MkdirAttachment(t, "ff/15", mtime)
	capture.MkdirAttachment(t, "76/06/deeper", mtime)

	core, logs := observer.New(zapcore.InfoLevel)
	c := &attachmentsCollector{log: zap.New(core)}
	var b Batch
	require.NoError(t, c.Collect(context.Background(), capture.Root, &b))

	assert.Equal(t, []string{
		AttachmentsDir,
		AttachmentsDir + "/76",
		AttachmentsDir + "/76/06",
		AttachmentsDir + "/ff",
		AttachmentsDir + "/ff/15",
	}, details(b.Events, model.FileModified))
	assert.Len(t, b.Events, 15)
	assert.Empty(t, b.Records)

	for _, e := range b.Events {
		if e.Event.Detail == AttachmentsDir+"/ff/15" && e.Event.Category == model.FileModified {
			assert.Equal(t, model.UnixSeconds(mtime), e.Timestamp)
		}
	}

	// 76/06 含子目录不为空，ff/15 含文件不为空
	assert.Zero(t, logs.FilterMessage("Empty attachment directory found").Len())
}

func TestAttachmentsCollectorLogsEmptyDirectory(t *testing.T) {
	capture := testutil.NewCapture(t)
	capture.MkdirAttachment(t, "aa/bb", time.Now())

	core, logs := observer.New(zapcore.InfoLevel)
	c := &attachmentsCollector{log: zap.New(core)}
	var b Batch
	require.NoError(t, c.Collect(context.Background(), capture.Root, &b))

	entries := logs.FilterMessage("Empty attachment directory found").All()
	require.Len(t, entries, 1)
	assert.Equal(t, AttachmentsDir+"/aa/bb", entries[0].ContextMap()["path"])
}

func TestAttachmentsCollectorMissing(t *testing.T) {
	capture := testutil.NewBareCapture(t)
	var b Batch
	err := (&attachmentsCollector{log: zap.NewNop()}).Collect(context.Background(), capture.Root, &b)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreferencesCollector(t *testing.T) {
	capture := testutil.NewCapture(t)
	capture.WriteFile(t, PreferencesDir+"/com.apple.ImageIO.plist", []byte("x"))

	var b Batch
	require.NoError(t, (&preferencesCollector{log: zap.NewNop()}).Collect(context.Background(), capture.Root, &b))

	require.Len(t, b.Events, 3)
	for _, e := range b.Events {
		assert.Equal(t, "Preferences/com.apple.ImageIO.plist", e.Event.Detail)
	}
	assert.Equal(t, model.FileModified, b.Events[0].Event.Category)
	assert.Equal(t, model.FileAttrChanged, b.Events[1].Event.Category)
	assert.Equal(t, model.FileBirth, b.Events[2].Event.Category)
}

func TestOSAnalyticsCollector(t *testing.T) {
	capture := testutil.NewCapture(t)
	first := time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
	capture.WriteOSAnalytics(t, map[string]time.Time{
		"nehelper":    first.Add(time.Minute),
		"BackupAgent": first,
		"SpringBoard": first,
	})

	var b Batch
	require.NoError(t, (&osAnalyticsCollector{}).Collect(context.Background(), capture.Root, &b))

	assert.Equal(t, []ioc.Record{
		{Category: model.NetUsage, Identifier: "BackupAgent", Timestamp: model.UnixSeconds(first)},
		{Category: model.NetUsage, Identifier: "SpringBoard", Timestamp: model.UnixSeconds(first)},
		{Category: model.NetUsage, Identifier: "nehelper", Timestamp: model.UnixSeconds(first.Add(time.Minute))},
	}, b.Records)
}

func TestOSAnalyticsCollectorMalformed(t *testing.T) {
	capture := testutil.NewCapture(t)
	capture.WriteFile(t, OSAnalyticsPlist, []byte("bplist00 garbage"))

	var b Batch
	err := (&osAnalyticsCollector{}).Collect(context.Background(), capture.Root, &b)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	missing := testutil.NewCapture(t)
	err = (&osAnalyticsCollector{}).Collect(context.Background(), missing.Root, &b)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocationdCollector(t *testing.T) {
	capture := testutil.NewCapture(t)
	bundle := "com.apple.locationd.bundle-/System/Library/LocationBundles/IonosphereHarvest.bundle"
	capture.WriteLocationdClients(t, map[string]float64{
		bundle:            0,
		"com.example.app": 100,
	})

	var b Batch
	require.NoError(t, (&locationdCollector{log: zap.NewNop()}).Collect(context.Background(), capture.Root, &b))

	assert.Equal(t, []ioc.Record{
		{Category: model.LocationStopped, Identifier: bundle, Timestamp: 978307200.0},
		{Category: model.LocationStopped, Identifier: "com.example.app", Timestamp: 978307300.0},
	}, b.Records)
}

func TestDataUsageCollector(t *testing.T) {
	capture := testutil.NewCapture(t)
	capture.WriteDataUsage(t, []testutil.Process{
		{PK: 1, Name: "BackupAgent", First: 100, Last: 200, Live: []float64{300}},
		{PK: 2, Name: "nehelper", First: 10, Last: 20},
	})

	var b Batch
	require.NoError(t, (&dataUsageCollector{log: zap.NewNop()}).Collect(context.Background(), capture.Root, &b))

	assert.Equal(t, []ioc.Record{
		{Category: model.NetFirst, Identifier: "BackupAgent", Timestamp: model.CocoaToUnix(100)},
		{Category: model.NetTimestamp, Identifier: "BackupAgent", Timestamp: model.CocoaToUnix(200)},
		{Category: model.NetTimestamp2, Identifier: "BackupAgent", Timestamp: model.CocoaToUnix(300)},
		{Category: model.NetFirst, Identifier: "nehelper", Timestamp: model.CocoaToUnix(10)},
		{Category: model.NetTimestamp, Identifier: "nehelper", Timestamp: model.CocoaToUnix(20)},
	}, b.Records)
}

func TestLocationdCollectorSkipsNonFiniteTimestamps(t *testing.T) {
	capture := testutil.NewCapture(t)
	capture.WriteLocationdClients(t, map[string]float64{
		"com.example.broken": math.NaN(),
		"com.example.app":    100,
	})

	core, logs := observer.New(zapcore.WarnLevel)
	var b Batch
	require.NoError(t, (&locationdCollector{log: zap.New(core)}).Collect(context.Background(), capture.Root, &b))

	assert.Equal(t, []ioc.Record{
		{Category: model.LocationStopped, Identifier: "com.example.app", Timestamp: 978307300.0},
	}, b.Records)
	entries := logs.FilterMessage("Skipping non-finite location timestamp").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "com.example.broken", entries[0].ContextMap()["client"])
}

// 镜像路径中的 '#'、'?' 不能破坏只读 URI
func TestDataUsageCollectorSpecialCharsInRoot(t *testing.T) {
	parent := t.TempDir()
	capture := &testutil.Capture{Root: filepath.Join(parent, "case#1?x")}
	dbPath := capture.WriteDataUsage(t, []testutil.Process{
		{PK: 1, Name: "BackupAgent", First: 100, Last: 200},
	})
	before, err := os.Stat(dbPath)
	require.NoError(t, err)

	var b Batch
	require.NoError(t, (&dataUsageCollector{log: zap.NewNop()}).Collect(context.Background(), capture.Root, &b))
	assert.Equal(t, []ioc.Record{
		{Category: model.NetFirst, Identifier: "BackupAgent", Timestamp: model.CocoaToUnix(100)},
		{Category: model.NetTimestamp, Identifier: "BackupAgent", Timestamp: model.CocoaToUnix(200)},
	}, b.Records)

	// 没有在镜像旁边创建新的数据库文件
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "case#1?x", entries[0].Name())

	after, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, before.Size(), after.Size())
}

func TestReadOnlyDSNEscapesPath(t *testing.T) {
	dsn, err := readOnlyDSN("/images/case#1/db?.sqlite")
	require.NoError(t, err)
	assert.Equal(t, "file:///images/case%231/db%3F.sqlite?mode=ro", dsn)
}

func TestDataUsageCollectorRejectsNonSQLite(t *testing.T) {
	capture := testutil.NewCapture(t)
	capture.WriteFile(t, DataUsageDB, []byte("definitely not sqlite"))

	var b Batch
	err := (&dataUsageCollector{log: zap.NewNop()}).Collect(context.Background(), capture.Root, &b)
	assert.ErrorIs(t, err, analysis.ErrUnexpectedType)

	missing := testutil.NewCapture(t)
	err = (&dataUsageCollector{log: zap.NewNop()}).Collect(context.Background(), missing.Root, &b)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultCollectorNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Default(nil) {
		assert.False(t, seen[c.Name()], c.Name())
		seen[c.Name()] = true
	}
	assert.Len(t, seen, 5)
}

// Package testutil 在临时目录中构造最小的 iOS 文件系统镜像，供各包测试使用
package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"howett.net/plist"
	_ "modernc.org/sqlite"
)

// 与 collector 包中的路径保持一致
const (
	attachmentsDir   = "private/var/mobile/Library/SMS/Attachments"
	osAnalyticsPlist = "private/var/mobile/Library/Preferences/com.apple.osanalytics.addaily.plist"
	dataUsageDB      = "private/var/mobile/Library/Databases/DataUsage.sqlite"
	locationdClients = "private/var/mobile/Library/Caches/locationd/clients.plist"
)

// Capture 临时镜像根目录
type Capture struct {
	Root string
}

// Process ZPROCESS 表的一行；Live 为 ZLIVEUSAGE 中关联该进程的时间戳 (Cocoa 秒)
type Process struct {
	PK    int64
	Name  string
	First float64
	Last  float64
	Live  []float64
}

// NewCapture 创建含必需附件目录和典型 iOS 目录的空镜像
func NewCapture(t testing.TB) *Capture {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{attachmentsDir, "private/var/root", "private/var/containers"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0o755))
	}
	return &Capture{Root: root}
}

// NewBareCapture 不含附件目录的镜像
func NewBareCapture(t testing.TB) *Capture {
	t.Helper()
	return &Capture{Root: t.TempDir()}
}

// Path 镜像内相对路径对应的绝对路径
func (c *Capture) Path(rel string) string {
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// MkdirAttachment 在 Attachments 下创建目录并设置 mtime
func (c *Capture) MkdirAttachment(t testing.TB, rel string, mtime time.Time) string {
	t.Helper()
	full := c.Path(attachmentsDir + "/" + rel)
	require.NoError(t, os.MkdirAll(full, 0o755))
	require.NoError(t, os.Chtimes(full, mtime, mtime))
	return full
}

// WriteFile 写入任意文件
func (c *Capture) WriteFile(t testing.TB, rel string, data []byte) string {
	t.Helper()
	full := c.Path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
	return full
}

// WritePlist 以 binary plist 格式写入
func (c *Capture) WritePlist(t testing.TB, rel string, v interface{}) string {
	t.Helper()
	data, err := plist.Marshal(v, plist.BinaryFormat)
	require.NoError(t, err)
	return c.WriteFile(t, rel, data)
}

// WriteOSAnalytics 写入 netUsageBaseline
func (c *Capture) WriteOSAnalytics(t testing.TB, baseline map[string]time.Time) {
	t.Helper()
	entries := make(map[string]interface{}, len(baseline))
	for proc, first := range baseline {
		entries[proc] = []interface{}{first.UTC(), int64(1)}
	}
	c.WritePlist(t, osAnalyticsPlist, map[string]interface{}{"netUsageBaseline": entries})
}

// WriteLocationdClients 写入各客户端的 LocationTimeStopped (Cocoa 秒)
func (c *Capture) WriteLocationdClients(t testing.TB, stopped map[string]float64) {
	t.Helper()
	doc := make(map[string]interface{}, len(stopped))
	for client, ts := range stopped {
		doc[client] = map[string]interface{}{"LocationTimeStopped": ts, "Authorized": true}
	}
	c.WritePlist(t, locationdClients, doc)
}

// WriteDataUsage 构造 DataUsage.sqlite
func (c *Capture) WriteDataUsage(t testing.TB, procs []Process) string {
	t.Helper()
	full := c.Path(dataUsageDB)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))

	db, err := sql.Open("sqlite", full)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
	CREATE TABLE ZPROCESS (
		Z_PK INTEGER PRIMARY KEY,
		ZFIRSTTIMESTAMP REAL,
		ZTIMESTAMP REAL,
		ZPROCNAME VARCHAR,
		ZBUNDLENAME VARCHAR
	);
	CREATE TABLE ZLIVEUSAGE (
		Z_PK INTEGER PRIMARY KEY,
		ZHASPROCESS INTEGER,
		ZTIMESTAMP REAL
	);`)
	require.NoError(t, err)

	for _, p := range procs {
		_, err = db.Exec(
			"INSERT INTO ZPROCESS(Z_PK, ZFIRSTTIMESTAMP, ZTIMESTAMP, ZPROCNAME, ZBUNDLENAME) VALUES (?, ?, ?, ?, ?)",
			p.PK, p.First, p.Last, p.Name, p.Name,
		)
		require.NoError(t, err)
		for _, live := range p.Live {
			_, err = db.Exec("INSERT INTO ZLIVEUSAGE(ZHASPROCESS, ZTIMESTAMP) VALUES (?, ?)", p.PK, live)
			require.NoError(t, err)
		}
	}
	return full
}

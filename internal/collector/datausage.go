package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Hara602/triangleSentry/internal/analysis"
	"github.com/Hara602/triangleSentry/internal/model"
)

// 活跃使用记录关联进程，再并上从未出现在 ZLIVEUSAGE 中的孤立进程
const dataUsageQuery = `
SELECT ZPROCESS.ZFIRSTTIMESTAMP, ZPROCESS.ZTIMESTAMP, ZPROCESS.ZPROCNAME, ZPROCESS.ZBUNDLENAME, ZPROCESS.Z_PK, ZLIVEUSAGE.ZTIMESTAMP
  FROM ZLIVEUSAGE LEFT JOIN ZPROCESS ON ZLIVEUSAGE.ZHASPROCESS = ZPROCESS.Z_PK
UNION
SELECT ZFIRSTTIMESTAMP, ZTIMESTAMP, ZPROCNAME, ZBUNDLENAME, Z_PK, NULL
  FROM ZPROCESS WHERE Z_PK NOT IN (SELECT ZHASPROCESS FROM ZLIVEUSAGE)
ORDER BY 5, 6`

// ProcessUsage DataUsage.sqlite 中的一行
type ProcessUsage struct {
	FirstTimestamp sql.NullFloat64
	Timestamp      sql.NullFloat64
	ProcName       sql.NullString
	BundleName     sql.NullString
	PK             sql.NullInt64
	LiveTimestamp  sql.NullFloat64
}

// dataUsageCollector 读取网络使用数据库
type dataUsageCollector struct {
	log *zap.Logger
}

func (c *dataUsageCollector) Name() string { return "datausage" }

func (c *dataUsageCollector) Collect(ctx context.Context, root string, b *Batch) error {
	dbPath := Join(root, DataUsageDB)
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat usage database: %w", err)
	}
	if err := analysis.ExpectKind(dbPath, "sqlite"); err != nil {
		return err
	}

	rows, err := ReadProcessUsage(ctx, dbPath)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if !row.ProcName.Valid {
			continue
		}
		if !row.FirstTimestamp.Valid || !row.Timestamp.Valid {
			c.log.Warn("Process row without timestamps",
				zap.String("process", row.ProcName.String),
				zap.Int64("pk", row.PK.Int64),
			)
			continue
		}
		name := row.ProcName.String
		c.add(b, row.FirstTimestamp.Float64, model.NetFirst, name)
		c.add(b, row.Timestamp.Float64, model.NetTimestamp, name)
		if row.LiveTimestamp.Valid {
			c.add(b, row.LiveTimestamp.Float64, model.NetTimestamp2, name)
		}
	}
	return nil
}

func (c *dataUsageCollector) add(b *Batch, cocoa float64, cat model.Category, name string) {
	ts := model.CocoaToUnix(cocoa)
	if !finiteTimestamp(ts) {
		c.log.Warn("Skipping non-finite usage timestamp",
			zap.String("process", name),
			zap.Stringer("source", cat),
		)
		return
	}
	b.AddRecord(ts, cat, name)
}

// readOnlyDSN 构造 file: URI；路径需转义，否则 '#'、'?' 会截断 mode=ro
func readOnlyDSN(dbPath string) (string, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve database path: %w", err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		// Windows 盘符路径
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p, RawQuery: "mode=ro"}
	return u.String(), nil
}

// ReadProcessUsage 以只读方式打开数据库并读取全部进程使用记录
func ReadProcessUsage(ctx context.Context, dbPath string) ([]ProcessUsage, error) {
	dsn, err := readOnlyDSN(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, dataUsageQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	var out []ProcessUsage
	for rows.Next() {
		var r ProcessUsage
		if err := rows.Scan(&r.FirstTimestamp, &r.Timestamp, &r.ProcName, &r.BundleName, &r.PK, &r.LiveTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}
	return out, nil
}

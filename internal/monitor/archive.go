package monitor

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/stockbot/gostock/internal/store"
)

const archiveSyncInterval = time.Minute

// Archive 成交归档库
//
// 状态文档只保留 7 天成交，归档库长期保留。
// 后台循环把当日成交从状态文档同步进来，按 (date, code, order_no, side) 去重。
type Archive struct {
	db  *sql.DB
	log *logrus.Entry
}

// OpenArchive 打开（或创建）SQLite 归档库
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("archive db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir archive dir")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	a := &Archive{db: db, log: logrus.WithField("component", "monitor.archive")}
	if err := a.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS executions (
  date TEXT NOT NULL,
  code TEXT NOT NULL,
  side TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price INTEGER NOT NULL,
  exec_time TEXT NOT NULL,
  order_no TEXT NOT NULL,
  archived_at TEXT NOT NULL,
  PRIMARY KEY (date, code, order_no, side)
);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_date ON executions(date);`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate archive")
		}
	}
	return nil
}

// ExecutionRow 归档库中的一行
type ExecutionRow struct {
	Date     string `json:"date"`
	Code     string `json:"code"`
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
	Time     string `json:"time"`
	OrderNo  string `json:"order_no"`
}

// SyncLoop 定期把状态文档里的当日成交写入归档库
func (a *Archive) SyncLoop(ctx context.Context, st *store.Store) {
	ticker := time.NewTicker(archiveSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := a.SyncFrom(ctx, st, time.Now().Format("20060102")); err != nil {
			a.log.Warnf("成交归档同步失败: %v", err)
		}
	}
}

// SyncFrom 同步某日成交，已归档的行按主键忽略
func (a *Archive) SyncFrom(ctx context.Context, st *store.Store, date string) error {
	now := time.Now().Format(time.RFC3339)
	for code, recs := range st.ExecutionsOn(date) {
		for _, rec := range recs {
			_, err := a.db.ExecContext(ctx, `
INSERT OR IGNORE INTO executions (date, code, side, quantity, price, exec_time, order_no, archived_at)
VALUES (?,?,?,?,?,?,?,?)
`, date, code, string(rec.Side), rec.Quantity, rec.Price, rec.Time, rec.OrderNo, now)
			if err != nil {
				return errors.Wrap(err, "insert execution")
			}
		}
	}
	return nil
}

// Query 按日期（可选按股票）查询归档成交
func (a *Archive) Query(ctx context.Context, date, code string) ([]ExecutionRow, error) {
	query := `SELECT date, code, side, quantity, price, exec_time, order_no
FROM executions WHERE date = ?`
	args := []any{date}
	if code != "" {
		query += ` AND code = ?`
		args = append(args, code)
	}
	query += ` ORDER BY exec_time, order_no`

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query executions")
	}
	defer rows.Close()

	out := make([]ExecutionRow, 0)
	for rows.Next() {
		var r ExecutionRow
		if err := rows.Scan(&r.Date, &r.Code, &r.Side, &r.Quantity, &r.Price, &r.Time, &r.OrderNo); err != nil {
			return nil, errors.Wrap(err, "scan execution row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

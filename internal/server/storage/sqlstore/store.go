// Package sqlstore 是基于 database/sql 的报告存储实现，SQLite 与 DuckDB 共用同一套表结构。
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"netsift/internal/server/storage"
	"netsift/pkg/model"
)

// 两种数据库都接受 TEXT/INTEGER/BLOB/TIMESTAMP，逐条执行以兼容不支持多语句的驱动。
var schema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	capture_path TEXT,
	created_at   TIMESTAMP,
	tcp_count    INTEGER,
	udp_count    INTEGER,
	http_count   INTEGER,
	dns_count    INTEGER
)`,
	`CREATE TABLE IF NOT EXISTS connections (
	report_id TEXT,
	proto     TEXT,
	seq       INTEGER,
	src       TEXT,
	dst       TEXT,
	sport     INTEGER,
	dport     INTEGER
)`,
	`CREATE TABLE IF NOT EXISTS http_requests (
	report_id  TEXT,
	seq        INTEGER,
	host       TEXT,
	port       INTEGER,
	data       BLOB,
	uri        TEXT,
	body       BLOB,
	path       TEXT,
	user_agent TEXT,
	version    TEXT,
	method     TEXT
)`,
	`CREATE TABLE IF NOT EXISTS dns_requests (
	report_id TEXT,
	seq       INTEGER,
	hostname  TEXT,
	ip        TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_conn_report ON connections(report_id)`,
	`CREATE INDEX IF NOT EXISTS idx_conn_src ON connections(src)`,
	`CREATE INDEX IF NOT EXISTS idx_conn_dst ON connections(dst)`,
	`CREATE INDEX IF NOT EXISTS idx_dns_hostname ON dns_requests(hostname)`,
}

type Store struct {
	db *sql.DB
}

// Open 打开数据库并建表。driver 需由调用方以匿名导入的方式注册。
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败：%w", driver, err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, ddl := range schema {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("建表失败：%w", err)
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, rep *model.Report) error {
	if rep == nil || rep.ID == "" {
		return fmt.Errorf("报告为空或缺少 id")
	}
	res := rep.Result
	if res == nil {
		res = model.NewResult()
	}
	sum := rep.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败：%w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO reports (id, capture_path, created_at, tcp_count, udp_count, http_count, dns_count)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.CapturePath, rep.CreatedAt.UTC(),
		sum.TCPCount, sum.UDPCount, sum.HTTPCount, sum.DNSCount,
	); err != nil {
		return fmt.Errorf("插入报告失败：%w", err)
	}

	if err := insertConnections(ctx, tx, rep.ID, "tcp", res.TCP); err != nil {
		return err
	}
	if err := insertConnections(ctx, tx, rep.ID, "udp", res.UDP); err != nil {
		return err
	}

	if len(res.HTTP) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO http_requests (report_id, seq, host, port, data, uri, body, path, user_agent, version, method)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("准备插入语句失败：%w", err)
		}
		defer stmt.Close()
		for i, h := range res.HTTP {
			if _, err := stmt.ExecContext(ctx, rep.ID, i, h.Host, h.Port, h.Data, h.URI, h.Body, h.Path, h.UserAgent, h.Version, h.Method); err != nil {
				return fmt.Errorf("插入 HTTP 请求失败：%w", err)
			}
		}
	}

	if len(res.DNS) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO dns_requests (report_id, seq, hostname, ip) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("准备插入语句失败：%w", err)
		}
		defer stmt.Close()
		for i, d := range res.DNS {
			if _, err := stmt.ExecContext(ctx, rep.ID, i, d.Hostname, d.IP); err != nil {
				return fmt.Errorf("插入 DNS 请求失败：%w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败：%w", err)
	}
	return nil
}

func insertConnections(ctx context.Context, tx *sql.Tx, id, proto string, rows []model.Connection) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO connections (report_id, proto, seq, src, dst, sport, dport)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备插入语句失败：%w", err)
	}
	defer stmt.Close()
	for i, c := range rows {
		if _, err := stmt.ExecContext(ctx, id, proto, i, c.Src, c.Dst, c.SrcPort, c.DstPort); err != nil {
			return fmt.Errorf("插入 %s 连接失败：%w", proto, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Report, error) {
	rep := &model.Report{Result: model.NewResult()}
	var sum model.ReportSummary
	err := s.db.QueryRowContext(ctx, `
SELECT id, capture_path, created_at, tcp_count, udp_count, http_count, dns_count
FROM reports WHERE id = ?`, id).Scan(
		&rep.ID, &rep.CapturePath, &rep.CreatedAt,
		&sum.TCPCount, &sum.UDPCount, &sum.HTTPCount, &sum.DNSCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询报告失败：%w", err)
	}

	if err := s.loadConnections(ctx, rep); err != nil {
		return nil, err
	}
	if err := s.loadHTTP(ctx, rep); err != nil {
		return nil, err
	}
	if err := s.loadDNS(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Store) loadConnections(ctx context.Context, rep *model.Report) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT proto, src, dst, sport, dport FROM connections
WHERE report_id = ?
ORDER BY proto, seq`, rep.ID)
	if err != nil {
		return fmt.Errorf("查询连接失败：%w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var proto string
		var c model.Connection
		if err := rows.Scan(&proto, &c.Src, &c.Dst, &c.SrcPort, &c.DstPort); err != nil {
			return fmt.Errorf("读取行失败：%w", err)
		}
		if proto == "tcp" {
			rep.Result.TCP = append(rep.Result.TCP, c)
		} else {
			rep.Result.UDP = append(rep.Result.UDP, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("遍历结果失败：%w", err)
	}
	return nil
}

func (s *Store) loadHTTP(ctx context.Context, rep *model.Report) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT host, port, data, uri, body, path, user_agent, version, method
FROM http_requests WHERE report_id = ? ORDER BY seq`, rep.ID)
	if err != nil {
		return fmt.Errorf("查询 HTTP 请求失败：%w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h model.HTTPRequest
		if err := rows.Scan(&h.Host, &h.Port, &h.Data, &h.URI, &h.Body, &h.Path, &h.UserAgent, &h.Version, &h.Method); err != nil {
			return fmt.Errorf("读取行失败：%w", err)
		}
		rep.Result.HTTP = append(rep.Result.HTTP, h)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("遍历结果失败：%w", err)
	}
	return nil
}

func (s *Store) loadDNS(ctx context.Context, rep *model.Report) error {
	rows, err := s.db.QueryContext(ctx, `
SELECT hostname, ip FROM dns_requests WHERE report_id = ? ORDER BY seq`, rep.ID)
	if err != nil {
		return fmt.Errorf("查询 DNS 请求失败：%w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d model.DNSRequest
		if err := rows.Scan(&d.Hostname, &d.IP); err != nil {
			return fmt.Errorf("读取行失败：%w", err)
		}
		rep.Result.DNS = append(rep.Result.DNS, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("遍历结果失败：%w", err)
	}
	return nil
}

func (s *Store) QueryByIP(ctx context.Context, ip string, limit int) ([]model.ReportSummary, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, capture_path, created_at, tcp_count, udp_count, http_count, dns_count
FROM reports
WHERE id IN (SELECT report_id FROM connections WHERE src = ? OR dst = ?)
ORDER BY created_at DESC
LIMIT ?`, ip, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("查询失败：%w", err)
	}
	defer rows.Close()

	out := make([]model.ReportSummary, 0, 16)
	for rows.Next() {
		var r model.ReportSummary
		if err := rows.Scan(&r.ID, &r.CapturePath, &r.CreatedAt, &r.TCPCount, &r.UDPCount, &r.HTTPCount, &r.DNSCount); err != nil {
			return nil, fmt.Errorf("读取行失败：%w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结果失败：%w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

package duckdb

import (
	_ "github.com/marcboeker/go-duckdb"

	"netsift/internal/server/storage/sqlstore"
)

// NewStore 打开单文件 DuckDB；path 为空时使用内存库，适合一次性分析。
func NewStore(path string) (*sqlstore.Store, error) {
	return sqlstore.Open("duckdb", path)
}

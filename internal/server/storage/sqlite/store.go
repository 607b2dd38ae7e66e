package sqlite

import (
	_ "modernc.org/sqlite"

	"netsift/internal/server/storage/sqlstore"
)

func NewStore(path string) (*sqlstore.Store, error) {
	if path == "" {
		path = "./netsift.sqlite"
	}
	return sqlstore.Open("sqlite", path)
}

package sqlite

import (
	"database/sql"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"
)

func init() {
	// Register sqlite-vec as an auto-loadable extension so every new
	// connection gets the vec0 module and the distance functions.
	vec.Auto()

	sql.Register("sqlite3_vec", &sqlite3.SQLiteDriver{})
}

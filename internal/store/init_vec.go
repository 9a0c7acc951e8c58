//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Registers sqlite-vec as an auto-loadable extension on the
	// mattn/go-sqlite3 driver so CREATE VIRTUAL TABLE ... USING vec0(...)
	// works against every connection this process opens.
	vec.Auto()
}

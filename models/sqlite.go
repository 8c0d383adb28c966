package models

import (
	"database/sql/driver"
	"strings"

	gosqlite "github.com/glebarez/go-sqlite"
	"gorm.io/gorm"
)

// SQLite's built-in LOWER only folds ASCII, so Cyrillic or accented text
// never matched a lowercased pattern. unicodeLower folds like strings.ToLower.
const unicodeLower = "unicode_lower"

func init() {
	gosqlite.MustRegisterDeterministicScalarFunction(unicodeLower, 1, func(_ *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// Lower wraps column in the lowercase function of db's dialect. Pair it with
// ContainsPattern for case-insensitive substring matches.
func Lower(db *gorm.DB, column string) string {
	if db.Dialector.Name() == DriverSQLite {
		return unicodeLower + "(" + column + ")"
	}
	return "LOWER(" + column + ")"
}

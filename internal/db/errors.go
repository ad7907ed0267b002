package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes treated as "this role cannot see that object"
var privilegeCodes = map[string]bool{
	"42501": true, // insufficient_privilege
	"42P01": true, // undefined_table
	"3F000": true, // invalid_schema_name
}

// IsPrivilegeError reports whether err means the current role may not read an object.
// Reflection degrades to empty metadata on these instead of aborting.
func IsPrivilegeError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return privilegeCodes[pgErr.Code]
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "must be owner") ||
		strings.Contains(msg, "does not exist")
}

package errors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Classify maps an arbitrary error onto the closed Kind set.
//
// It understands GORM errors, MySQL driver errors, context deadlines and
// common network failure shapes:
//   - context deadline / net timeouts / connection errors -> KindNetwork
//   - gorm.ErrRecordNotFound -> KindBusiness (the record is absent, retrying
//     will not make it appear)
//   - MySQL 1213 (deadlock) and other server errors -> KindStorage
//   - MySQL constraint/data errors (1062, 1406, 1452, ...) -> KindValidation
//   - everything else -> KindSystem
func Classify(err error) Kind {
	if err == nil {
		return KindSystem
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return KindBusiness
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return classifyMySQLError(mysqlErr)
	}

	if isConnectionError(err.Error()) {
		return KindNetwork
	}

	return KindSystem
}

// classifyMySQLError maps MySQL server error codes onto kinds.
func classifyMySQLError(err *mysql.MySQLError) Kind {
	switch err.Number {
	case 1062, // ER_DUP_ENTRY
		1406,             // ER_DATA_TOO_LONG
		1451, 1452,       // foreign key constraints
		1048,             // ER_BAD_NULL_ERROR
		1265, 1366,       // truncated / wrong value
		3140, 3141, 3142: // invalid JSON
		return KindValidation
	case 1213: // ER_LOCK_DEADLOCK, safe to retry
		return KindStorage
	default:
		return KindStorage
	}
}

var connectionKeywords = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"connection lost",
	"can't connect",
	"dial tcp",
}

// isConnectionError checks whether the error message indicates a connection
// problem. Last-resort string matching for drivers that do not expose typed
// errors.
func isConnectionError(msg string) bool {
	msg = strings.ToLower(msg)
	for _, keyword := range connectionKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

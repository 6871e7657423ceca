package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE classes and codes worth retrying.
const (
	sqlstateConnectionException = "08"
	sqlstateCannotConnectNow    = "57P03" // server starting up or shutting down
	sqlstateTooManyConnections  = "53300"
)

// IsTransient reports whether err looks like a temporary connectivity
// problem: network timeouts, refused or reset connections, and Postgres
// errors raised while the server is unavailable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, sqlstateConnectionException) ||
			pgErr.Code == sqlstateCannotConnectNow ||
			pgErr.Code == sqlstateTooManyConnections
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"i/o timeout",
		"the database system is starting up",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

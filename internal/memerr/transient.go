package memerr

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsTransient classifies an error from the vector store (or any network
// collaborator) as transient: connection-refused, timeouts, unexpected EOF,
// and HTTP 502/503 are retried by the backoff wrapper; everything else is
// not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Transient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"timeout",
		"timed out",
		"502",
		"503",
		"bad gateway",
		"service unavailable",
		"i/o timeout",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

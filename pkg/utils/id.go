package utils

import (
	"github.com/google/uuid"
)

// GenerateConnectionID returns the id assigned to one signaling connection.
func GenerateConnectionID() string {
	return "conn_" + uuid.NewString()
}

// GenerateRequestID returns an id for request-scoped logging.
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

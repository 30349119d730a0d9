package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord binds a client retry key to the operation it created.
// Key is "<ownerID>:<client key>". ResponseJSON holds the OperationView
// returned to the first request and is empty until that request commits.
type IdempotencyRecord struct {
	Key          string
	OperationID  uuid.UUID
	ResponseJSON []byte
	CreatedAt    time.Time
}

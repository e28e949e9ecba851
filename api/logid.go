package api

import "github.com/google/uuid"

// logIDKey is the canonical byte representation of a logId used as the
// queue's routing and row key throughout this package: the UUID's
// canonical string form, not its raw 16 bytes, so logs stay readable in
// queue storage and logs.
func logIDKey(id uuid.UUID) []byte {
	return []byte(id.String())
}

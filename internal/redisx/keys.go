package redisx

import "time"

const (
	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Durable documents live under doc:{path}, path = /orders/{id} etc.
	KeyDoc = "doc:%s"
)

var (
	TTLDedup = 48 * time.Hour
)

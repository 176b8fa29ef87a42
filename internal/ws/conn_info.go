package ws

import "time"

// ConnInfo describes the live channel connection.
type ConnInfo struct {
	ConnID      string
	DeviceID    string
	URL         string
	ConnectedAt time.Time
}

package domain

import "time"

type MessageCounters struct {
	Received  int64 `json:"received"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

// RemoteSessionInfo is a read-only view of a connected remote client.
type RemoteSessionInfo struct {
	ID          string          `json:"id"`
	ClientAddr  string          `json:"clientAddr"`
	ConnectedAt time.Time       `json:"connectedAt"`
	Alive       bool            `json:"alive"`
	Messages    MessageCounters `json:"messages"`
}

// ServerStatus summarizes the remote socket server. Counters are for
// observability only.
type ServerStatus struct {
	Running   bool   `json:"running"`
	Addr      string `json:"addr,omitempty"`
	Sessions  int    `json:"sessions"`
	Received  int64  `json:"received"`
	Delivered int64  `json:"delivered"`
	Dropped   int64  `json:"dropped"`
}

package domain

import "time"

type StatusType string

const (
	StatusRuntime     StatusType = "runtime"
	StatusApp         StatusType = "app"
	StatusCapture     StatusType = "capture"
	StatusServer      StatusType = "server"
	StatusViewfinder  StatusType = "viewfinder"
	StatusExitRequest StatusType = "exit_request"
)

// StatusEvent is what the core tells the presentation layer. Value carries a
// counter or a flag (1/0) depending on Type.
type StatusEvent struct {
	Type  StatusType `json:"type"`
	Name  string     `json:"name,omitempty"`
	Value int        `json:"value"`
	Text  string     `json:"text,omitempty"`
	Ts    time.Time  `json:"ts"`
}

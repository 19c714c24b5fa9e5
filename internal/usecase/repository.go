package usecase

import (
	"context"

	"vr-screenshotter/internal/domain"
)

// CaptureHistory keeps recent completed captures for the ops API. The
// in-memory store also serves as a ResultSink.
type CaptureHistory interface {
	GetRecord(ctx context.Context, id string) (domain.CaptureRecord, bool, error)
	ListRecords(ctx context.Context, f HistoryFilter) ([]domain.CaptureRecord, int, error)
	ClearRecords(ctx context.Context) error
}

type HistoryFilter struct {
	// Q matches tag or nonce, case-insensitive
	Q      string
	AppID  string
	Limit  int
	Offset int
}

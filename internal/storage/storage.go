package storage

import (
	"context"

	"flashArb/internal/model"
)

// Sink persists cycle reports.
type Sink interface {
	PutCycleReport(ctx context.Context, report model.CycleReport) error
}

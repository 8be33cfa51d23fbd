// Package state keeps a history of computed migration plans in SQLite.
package state

import (
	"context"
	"time"

	"github.com/leapstack-labs/leapschema/pkg/dbobject"
)

// Plan is one stored diff between a current and a target snapshot.
type Plan struct {
	ID        string
	CreatedAt time.Time
	// Source describes the current side: a connection summary or a document path.
	Source string
	// Document is the path of the target document.
	Document   string
	Operations []dbobject.Operation
}

// Store persists plans.
type Store interface {
	SavePlan(ctx context.Context, source, document string, ops []dbobject.Operation) (*Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlans(ctx context.Context, limit int) ([]*Plan, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

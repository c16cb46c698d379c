package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// AuditService writes immutable audit trail entries.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

// AuditEntry is one audit record; EntityID is a ledger row id or a uuid.
type AuditEntry struct {
	EntityType string
	EntityID   string
	ActorID    *uuid.UUID
	Action     string
	PrevState  string
	NextState  string
	Metadata   map[string]any
}

// Write stores a single audit record inside the caller's transaction.
func (s *AuditService) Write(ctx context.Context, qtx repository.Querier, e AuditEntry) error {
	var actor pgtype.UUID
	if e.ActorID != nil {
		actor = repository.ToPgUUID(*e.ActorID)
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
		metadata = raw
	}

	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		ActorID:    actor,
		Action:     e.Action,
		PrevState:  textParam(e.PrevState),
		NextState:  textParam(e.NextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

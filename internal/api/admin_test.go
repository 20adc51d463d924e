package api

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/models"
)

func TestNewAuditEntry(t *testing.T) {
	actor := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	target := primitive.NewObjectID()

	entry := newAuditEntry(actor, auditActionBan, target.Hex(), map[string]any{"banned": true})

	if entry.ActorID != actor.ID {
		t.Fatalf("ActorID = %v, want %v", entry.ActorID, actor.ID)
	}
	if entry.ActorRole != models.RoleAdmin {
		t.Fatalf("ActorRole = %v, want %v", entry.ActorRole, models.RoleAdmin)
	}
	if entry.TargetID != target {
		t.Fatalf("TargetID = %v, want %v", entry.TargetID, target)
	}
	if entry.Action != auditActionBan {
		t.Fatalf("Action = %q, want %q", entry.Action, auditActionBan)
	}
	if entry.Meta["banned"] != true {
		t.Fatalf("Meta = %v, want banned=true", entry.Meta)
	}
}

func TestNewAuditEntryInvalidTarget(t *testing.T) {
	actor := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}

	entry := newAuditEntry(actor, auditActionDelete, "not-a-hex-id", nil)

	if !entry.TargetID.IsZero() {
		t.Fatalf("TargetID = %v, want zero", entry.TargetID)
	}
	if entry.Action != auditActionDelete {
		t.Fatalf("Action = %q, want %q", entry.Action, auditActionDelete)
	}
}

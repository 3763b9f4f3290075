package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/jobboard/internal/models"
)

func TestAuditServiceLogAndList(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc, err := NewAuditService(db, WithAuditClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	admin := createAdmin(t, db, "auditor@example.com", false)

	err = svc.Log(ctx, AuditEntry{
		Actor:      Actor{Kind: models.PrincipalAdmin, ID: admin.ID, Email: " Auditor@Example.com ", IPAddress: "10.0.0.9"},
		Action:     AuditActionReject,
		Resource:   AuditResourceApplication,
		ResourceID: "app-1",
		Result:     AuditResultSuccess,
		Metadata:   map[string]any{"note": NoteRejected},
	})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, svc.Log(ctx, AuditEntry{
		Actor:  Actor{Kind: models.PrincipalUser, Email: "someone@example.com"},
		Action: AuditActionLogin,
		Result: AuditResultFailure,
	}))

	logs, total, err := svc.List(ctx, AuditListOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, AuditActionLogin, logs[0].Action)
	require.Nil(t, logs[0].ActorID)

	logs, total, err = svc.List(ctx, AuditListOptions{Filters: AuditFilters{ActorID: admin.ID}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "auditor@example.com", logs[0].ActorEmail)
	require.Equal(t, "10.0.0.9", logs[0].IPAddress)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &metadata))
	require.Equal(t, NoteRejected, metadata["note"])

	since := clock.Now()
	logs, _, err = svc.List(ctx, AuditListOptions{Filters: AuditFilters{Since: &since, Result: AuditResultFailure}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestAuditServiceRequiresActionAndResult(t *testing.T) {
	svc, err := NewAuditService(openServiceDB(t))
	require.NoError(t, err)

	require.Error(t, svc.Log(context.Background(), AuditEntry{Result: AuditResultSuccess}))
	require.Error(t, svc.Log(context.Background(), AuditEntry{Action: AuditActionLogin}))
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	svc, err := NewAuditService(db, WithAuditClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "old.action", Result: AuditResultSuccess}))
	clock.Advance(10 * 24 * time.Hour)
	require.NoError(t, svc.Log(ctx, AuditEntry{Action: "new.action", Result: AuditResultSuccess}))

	rows, err := svc.CleanupOlderThan(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)

	var remaining []models.AuditLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "new.action", remaining[0].Action)
}

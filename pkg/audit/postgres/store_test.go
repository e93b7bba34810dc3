package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/toolbridge/pkg/audit"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db, Config{RetentionDays: 30}), mock
}

func TestStore_Log(t *testing.T) {
	store, mock := newMockStore(t)

	event := audit.Event{
		ID:           "evt-1",
		Type:         audit.EventTypeToolCall,
		Timestamp:    time.Now(),
		DurationMS:   42,
		RequestID:    "req-1",
		SessionID:    "sess-1",
		UserID:       "user-1",
		ToolName:     "initiate_connection",
		ToolkitSlug:  "GMAIL",
		Parameters:   map[string]any{"toolkit": "GMAIL"},
		Success:      true,
	}

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(
			event.ID, string(event.Type), event.Timestamp, event.DurationMS,
			event.RequestID, event.SessionID, event.UserID, event.ToolName,
			event.ToolkitSlug, event.ConnectionID, event.Status,
			sqlmock.AnyArg(), event.Success, event.ErrorMessage,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Log(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Query(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows(auditColumns).
		AddRow(
			"evt-1", "connection", now, int64(0), "req-1", "sess-1",
			"user-1", "", "GMAIL", "conn-1", "ACTIVE",
			[]byte(`{"redirect":"https://example.com"}`), true, "",
		).
		AddRow(
			"evt-2", "connection", now.Add(-time.Minute), int64(0), "req-2", "sess-1",
			"user-1", "", "SLACK", "conn-2", "FAILED",
			[]byte(`{}`), false, "provider rejected grant",
		)

	mock.ExpectQuery("SELECT .+ FROM audit_events").
		WithArgs("user-1").
		WillReturnRows(rows)

	events, err := store.Query(context.Background(), audit.QueryFilter{
		UserID: "user-1",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, audit.EventTypeConnection, events[0].Type)
	assert.Equal(t, "GMAIL", events[0].ToolkitSlug)
	assert.Equal(t, "ACTIVE", events[0].Status)
	assert.True(t, events[0].Success)
	assert.Equal(t, "https://example.com", events[0].Parameters["redirect"])

	assert.Equal(t, "evt-2", events[1].ID)
	assert.False(t, events[1].Success)
	assert.Equal(t, "provider rejected grant", events[1].ErrorMessage)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryFilters(t *testing.T) {
	store, mock := newMockStore(t)

	start := time.Now().Add(-time.Hour)
	success := true

	mock.ExpectQuery("SELECT .+ FROM audit_events").
		WithArgs(start, "tool_call", "user-1", "GMAIL", success).
		WillReturnRows(sqlmock.NewRows(auditColumns))

	events, err := store.Query(context.Background(), audit.QueryFilter{
		StartTime:   &start,
		Type:        audit.EventTypeToolCall,
		UserID:      "user-1",
		ToolkitSlug: "GMAIL",
		Success:     &success,
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_events").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.Count(context.Background(), audit.QueryFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Cleanup(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM audit_events WHERE timestamp").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 12))

	err := store.Cleanup(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CloseWithoutCleanupRoutine(t *testing.T) {
	store, _ := newMockStore(t)
	assert.NoError(t, store.Close())
}

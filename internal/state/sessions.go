package state

import (
	"fmt"
	"strings"
	"time"

	"veriflow/internal/telemetry"
	"veriflow/pkg/models"
)

// SessionRecord is a persisted coordination session row.
type SessionRecord struct {
	ID              string
	Request         string
	Priority        string
	TaskType        string
	Status          string
	CompletionScore float64
	IsCompleted     bool
	StartedAt       time.Time
	FinishedAt      *time.Time
}

// CreateSession inserts a new active session row.
func (db *DB) CreateSession(req *models.TaskRequest, taskType models.SubtaskType) error {
	_, err := db.Exec(
		"INSERT INTO sessions (id, request, priority, task_type, status, started_at) VALUES (?, ?, ?, ?, 'active', ?)",
		req.ID, req.Text, string(req.Priority), string(taskType), req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FinishSession marks a session as finished with its completion outcome.
func (db *DB) FinishSession(sessionID, status string, assessment *models.CompletionAssessment) error {
	completed := 0
	score := 0.0
	if assessment != nil {
		score = assessment.Score
		if assessment.IsCompleted {
			completed = 1
		}
	}
	_, err := db.Exec(
		"UPDATE sessions SET status = ?, completion_score = ?, is_completed = ?, finished_at = ? WHERE id = ?",
		status, score, completed, time.Now(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// SaveSubtask upserts a subtask row with its latest gate outcome.
func (db *DB) SaveSubtask(sessionID string, st *models.Subtask, qualityScore float64, gatePassed bool, artifacts []string) error {
	passed := 0
	if gatePassed {
		passed = 1
	}
	_, err := db.Exec(`
		INSERT INTO subtasks (id, session_id, type, description, assigned_to, status, quality_score, gate_passed, artifacts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			assigned_to = excluded.assigned_to,
			status = excluded.status,
			quality_score = excluded.quality_score,
			gate_passed = excluded.gate_passed,
			artifacts = excluded.artifacts`,
		st.ID, sessionID, string(st.Type), st.Description, st.AssignedTo, string(st.Status),
		qualityScore, passed, strings.Join(artifacts, ","),
	)
	if err != nil {
		return fmt.Errorf("save subtask: %w", err)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (db *DB) ListSessions(limit int) ([]*SessionRecord, error) {
	rows, err := db.Query(
		"SELECT id, request, priority, task_type, status, completion_score, is_completed, started_at, finished_at FROM sessions ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var completed int
		if err := rows.Scan(&rec.ID, &rec.Request, &rec.Priority, &rec.TaskType, &rec.Status,
			&rec.CompletionScore, &completed, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.IsCompleted = completed != 0
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Sink is a telemetry sink persisting events to the database. Write
// failures are swallowed; telemetry must never block or fail coordination.
type Sink struct {
	db *DB
}

// NewSink creates a database-backed telemetry sink.
func NewSink(db *DB) *Sink {
	return &Sink{db: db}
}

// Record persists the event.
func (s *Sink) Record(ev telemetry.Event) {
	_, _ = s.db.Exec(
		"INSERT INTO events (session_id, type, stage, agent_id, detail, at) VALUES (?, ?, ?, ?, ?, ?)",
		ev.SessionID, string(ev.Type), ev.Stage, ev.AgentID, ev.Detail, ev.At,
	)
}

// SessionEvents returns the recorded events for a session in order.
func (db *DB) SessionEvents(sessionID string) ([]*telemetry.Event, error) {
	rows, err := db.Query(
		"SELECT type, stage, agent_id, detail, at FROM events WHERE session_id = ? ORDER BY id",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*telemetry.Event
	for rows.Next() {
		ev := &telemetry.Event{SessionID: sessionID}
		var typ string
		if err := rows.Scan(&typ, &ev.Stage, &ev.AgentID, &ev.Detail, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = telemetry.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

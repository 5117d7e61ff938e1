package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/facemood/internal/database"
)

// RecordDetection appends a detection event.
func (s *Store) RecordDetection(ctx context.Context, event database.NewDetection) (int64, error) {
	var sessionID sql.NullString
	if event.SessionID != "" {
		sessionID = sql.NullString{String: event.SessionID, Valid: true}
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO detection_events (identity_id, emotion, confidence, session_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, event.IdentityID, event.Emotion, event.Confidence, sessionID).Scan(&id)
	if err != nil {
		return 0, database.StorageError("insert detection", err)
	}
	return id, nil
}

// ListDetections returns events for an identity, most recent first.
func (s *Store) ListDetections(ctx context.Context, identityID int64) ([]database.DetectionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identity_id, emotion, confidence, session_id, detected_at
		FROM detection_events
		WHERE identity_id = $1
		ORDER BY detected_at DESC, id DESC
	`, identityID)
	if err != nil {
		return nil, database.StorageError("query detections", err)
	}
	defer rows.Close()

	var events []database.DetectionEvent
	for rows.Next() {
		var e database.DetectionEvent
		var identity sql.NullInt64
		var sessionID sql.NullString

		if err := rows.Scan(&e.ID, &identity, &e.Emotion, &e.Confidence, &sessionID, &e.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		e.IdentityID = identity.Int64
		e.SessionID = sessionID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return events, nil
}

// CountDetections returns the number of detection events.
func (s *Store) CountDetections(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM detection_events").Scan(&count); err != nil {
		return 0, database.StorageError("count detections", err)
	}
	return count, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LoadActiveCallsigns returns every active CallsignSession keyed by
// (prefix, suffix), for the reconciler's step 2 ("load live state").
func LoadActiveCallsigns(ctx context.Context, q Querier) (map[CallsignKey]CallsignSession, error) {
	rows, err := q.Query(ctx, `
		SELECT id, prefix, suffix, start_time, end_time, duration, last_seen, is_active
		FROM callsign_sessions WHERE is_active`)
	if err != nil {
		return nil, mapPgError(err, "load_active_callsigns")
	}
	defer rows.Close()

	out := make(map[CallsignKey]CallsignSession)
	for rows.Next() {
		var cs CallsignSession
		if err := rows.Scan(&cs.ID, &cs.Prefix, &cs.Suffix, &cs.StartTime, &cs.EndTime, &cs.Duration, &cs.LastSeen, &cs.IsActive); err != nil {
			return nil, mapPgError(err, "load_active_callsigns")
		}
		out[CallsignKey{Prefix: cs.Prefix, Suffix: cs.Suffix}] = cs
	}
	return out, mapPgError(rows.Err(), "load_active_callsigns")
}

// LoadActivePositions returns every active PositionSession keyed by
// position_id.
func LoadActivePositions(ctx context.Context, q Querier) (map[string]PositionSession, error) {
	rows, err := q.Query(ctx, `
		SELECT id, position_id, start_time, end_time, duration, last_seen, is_active
		FROM position_sessions WHERE is_active`)
	if err != nil {
		return nil, mapPgError(err, "load_active_positions")
	}
	defer rows.Close()

	out := make(map[string]PositionSession)
	for rows.Next() {
		var ps PositionSession
		if err := rows.Scan(&ps.ID, &ps.PositionID, &ps.StartTime, &ps.EndTime, &ps.Duration, &ps.LastSeen, &ps.IsActive); err != nil {
			return nil, mapPgError(err, "load_active_positions")
		}
		out[ps.PositionID] = ps
	}
	return out, mapPgError(rows.Err(), "load_active_positions")
}

// LoadActiveControllers returns every active ControllerSession keyed
// by cid.
func LoadActiveControllers(ctx context.Context, q Querier) (map[int32]ControllerSession, error) {
	rows, err := q.Query(ctx, `
		SELECT id, cid, name, user_rating, requested_rating, connected_callsign,
		       primary_position_id, login_time, is_observer, start_time, end_time,
		       duration, last_seen, is_active, callsign_session_id, position_session_id
		FROM controller_sessions WHERE is_active`)
	if err != nil {
		return nil, mapPgError(err, "load_active_controllers")
	}
	defer rows.Close()

	out := make(map[int32]ControllerSession)
	for rows.Next() {
		var c ControllerSession
		if err := rows.Scan(&c.ID, &c.CID, &c.Name, &c.UserRating, &c.RequestedRating, &c.ConnectedCallsign,
			&c.PrimaryPositionID, &c.LoginTime, &c.IsObserver, &c.StartTime, &c.EndTime,
			&c.Duration, &c.LastSeen, &c.IsActive, &c.CallsignSessionID, &c.PositionSessionID); err != nil {
			return nil, mapPgError(err, "load_active_controllers")
		}
		out[c.CID] = c
	}
	return out, mapPgError(rows.Err(), "load_active_controllers")
}

// CloseCallsignSession closes an active CallsignSession (reconciler
// step 4).
func CloseCallsignSession(ctx context.Context, q Querier, id uuid.UUID, endTime time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE callsign_sessions
		SET end_time = $2, duration = $2 - start_time, is_active = false
		WHERE id = $1 AND is_active`, id, endTime)
	return mapPgError(err, "close_callsign_session")
}

// ClosePositionSession closes an active PositionSession.
func ClosePositionSession(ctx context.Context, q Querier, id uuid.UUID, endTime time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE position_sessions
		SET end_time = $2, duration = $2 - start_time, is_active = false
		WHERE id = $1 AND is_active`, id, endTime)
	return mapPgError(err, "close_position_session")
}

// CloseControllerSession closes an active ControllerSession.
func CloseControllerSession(ctx context.Context, q Querier, id uuid.UUID, endTime time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE controller_sessions
		SET end_time = $2, duration = $2 - start_time, is_active = false
		WHERE id = $1 AND is_active`, id, endTime)
	return mapPgError(err, "close_controller_session")
}

// OpenCallsignSession inserts a new active CallsignSession.
func OpenCallsignSession(ctx context.Context, q Querier, prefix, suffix string, snapshotTime time.Time) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO callsign_sessions (id, prefix, suffix, start_time, last_seen, is_active)
		VALUES ($1, $2, $3, $4, $4, true)`, id, prefix, suffix, snapshotTime)
	return id, mapPgError(err, "open_callsign_session")
}

// RefreshCallsignSession advances last_seen on an active CallsignSession.
func RefreshCallsignSession(ctx context.Context, q Querier, id uuid.UUID, snapshotTime time.Time) error {
	_, err := q.Exec(ctx, `UPDATE callsign_sessions SET last_seen = $2 WHERE id = $1`, id, snapshotTime)
	return mapPgError(err, "refresh_callsign_session")
}

// OpenPositionSession inserts a new active PositionSession.
func OpenPositionSession(ctx context.Context, q Querier, positionID string, snapshotTime time.Time) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO position_sessions (id, position_id, start_time, last_seen, is_active)
		VALUES ($1, $2, $3, $3, true)`, id, positionID, snapshotTime)
	return id, mapPgError(err, "open_position_session")
}

// RefreshPositionSession advances last_seen on an active PositionSession.
func RefreshPositionSession(ctx context.Context, q Querier, id uuid.UUID, snapshotTime time.Time) error {
	_, err := q.Exec(ctx, `UPDATE position_sessions SET last_seen = $2 WHERE id = $1`, id, snapshotTime)
	return mapPgError(err, "refresh_position_session")
}

// ControllerFields holds the refreshable/insertable fields of a
// ControllerSession, shared by OpenControllerSession and
// RefreshControllerSession.
type ControllerFields struct {
	CID               int32
	Name              string
	UserRating        int16
	RequestedRating   int16
	ConnectedCallsign string
	PrimaryPositionID string
	LoginTime         time.Time
	IsObserver        bool
	CallsignSessionID uuid.UUID
	PositionSessionID uuid.UUID
}

// OpenControllerSession inserts a new active ControllerSession.
func OpenControllerSession(ctx context.Context, q Querier, f ControllerFields, snapshotTime time.Time) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO controller_sessions
			(id, cid, name, user_rating, requested_rating, connected_callsign,
			 primary_position_id, login_time, is_observer, start_time, last_seen,
			 is_active, callsign_session_id, position_session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, true, $11, $12)`,
		id, f.CID, f.Name, f.UserRating, f.RequestedRating, f.ConnectedCallsign,
		f.PrimaryPositionID, f.LoginTime, f.IsObserver, snapshotTime,
		f.CallsignSessionID, f.PositionSessionID)
	return id, mapPgError(err, "open_controller_session")
}

// RefreshControllerSession refreshes an active ControllerSession's
// mutable fields and re-points its callsign/position references.
func RefreshControllerSession(ctx context.Context, q Querier, id uuid.UUID, f ControllerFields, snapshotTime time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE controller_sessions
		SET last_seen = $2, name = $3, user_rating = $4, requested_rating = $5,
		    connected_callsign = $6, primary_position_id = $7,
		    callsign_session_id = $8, position_session_id = $9
		WHERE id = $1`,
		id, snapshotTime, f.Name, f.UserRating, f.RequestedRating,
		f.ConnectedCallsign, f.PrimaryPositionID, f.CallsignSessionID, f.PositionSessionID)
	return mapPgError(err, "refresh_controller_session")
}

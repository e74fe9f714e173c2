package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

func uuidOrEmpty(u uuid.UUID) string {
	if u == uuid.Nil {
		return ""
	}
	return u.String()
}

func parseUUID(s string) uuid.UUID {
	if s == "" {
		return uuid.Nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return u
}

// CreateThread persists a new thread with its initial participants.
// For direct threads the unordered participant pair is canonicalized into a
// unique key, so re-creation returns the already existing thread instead of
// a duplicate.
func (db *DB) CreateThread(ctx context.Context, th *model.Thread) (*model.Thread, error) {
	ctx, cancel := db.op(ctx)
	defer cancel()

	var directKey sql.NullString
	if th.Kind == model.ThreadDirect {
		if len(th.Participants) != 2 {
			return nil, model.ErrValidation("direct thread requires exactly two participants")
		}
		directKey = sql.NullString{
			String: model.DirectKey(th.Participants[0].UserID, th.Participants[1].UserID),
			Valid:  true,
		}
		if existing, err := db.threadByDirectKey(ctx, directKey.String); err == nil {
			return existing, nil
		} else if !model.IsKind(err, model.KindNotFound) {
			return nil, err
		}
	}

	if th.ID == uuid.Nil {
		th.ID = uuid.New()
	}
	now := time.Now().UnixMilli()
	if th.CreatedAt == 0 {
		th.CreatedAt = now
	}
	if th.LastActivityAt == 0 {
		th.LastActivityAt = now
	}
	settings, err := json.Marshal(orEmptyMap(th.Settings))
	if err != nil {
		return nil, model.ErrValidation("unencodable thread settings")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("create thread", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, kind, direct_key, last_message_id, last_activity_at, settings, created_at)
		VALUES (?, ?, ?, '', ?, ?, ?)`,
		th.ID.String(), string(th.Kind), directKey, th.LastActivityAt, string(settings), th.CreatedAt)
	if err != nil {
		// A concurrent creator may have won the direct-key race; resolve to
		// the existing thread rather than failing the caller.
		if isConstraint(err) && directKey.Valid {
			return db.threadByDirectKey(ctx, directKey.String)
		}
		return nil, storageErr("create thread", err)
	}

	for i := range th.Participants {
		p := &th.Participants[i]
		if p.JoinedAt == 0 {
			p.JoinedAt = now
		}
		if !p.Active && p.LeftAt == 0 {
			p.Active = true
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO thread_participants (thread_id, user_id, role, joined_at, left_at, active, last_seen_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			th.ID.String(), p.UserID.String(), string(p.Role), p.JoinedAt, p.LeftAt, p.Active, p.LastSeenAt)
		if err != nil {
			if isConstraint(err) {
				return nil, model.ErrValidation("duplicate participant in thread")
			}
			return nil, storageErr("create thread participant", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("create thread", err)
	}
	return th, nil
}

// GetThread loads a thread with its full participant list.
func (db *DB) GetThread(ctx context.Context, id uuid.UUID) (*model.Thread, error) {
	ctx, cancel := db.op(ctx)
	defer cancel()
	return db.getThread(ctx, "id", id.String())
}

func (db *DB) threadByDirectKey(ctx context.Context, key string) (*model.Thread, error) {
	return db.getThread(ctx, "direct_key", key)
}

func (db *DB) getThread(ctx context.Context, col, val string) (*model.Thread, error) {
	var (
		th            model.Thread
		idStr         string
		kind          string
		lastMessageID string
		settingsRaw   string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, kind, last_message_id, last_activity_at, settings, created_at
		FROM threads WHERE `+col+` = ?`, val).
		Scan(&idStr, &kind, &lastMessageID, &th.LastActivityAt, &settingsRaw, &th.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound("thread not found")
		}
		return nil, storageErr("get thread", err)
	}
	th.ID = parseUUID(idStr)
	th.Kind = model.ThreadKind(kind)
	th.LastMessageID = parseUUID(lastMessageID)
	_ = json.Unmarshal([]byte(settingsRaw), &th.Settings)

	rows, err := db.QueryContext(ctx, `
		SELECT user_id, role, joined_at, left_at, active, last_seen_at
		FROM thread_participants WHERE thread_id = ? ORDER BY joined_at ASC`, idStr)
	if err != nil {
		return nil, storageErr("get thread participants", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			p       model.Participant
			userStr string
			role    string
		)
		if err := rows.Scan(&userStr, &role, &p.JoinedAt, &p.LeftAt, &p.Active, &p.LastSeenAt); err != nil {
			return nil, storageErr("scan thread participant", err)
		}
		p.UserID = parseUUID(userStr)
		p.Role = model.Role(role)
		th.Participants = append(th.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get thread participants", err)
	}
	return &th, nil
}

// TouchParticipant refreshes the member's last-seen stamp on join.
func (db *DB) TouchParticipant(ctx context.Context, threadID, userID uuid.UUID, at int64) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		UPDATE thread_participants SET last_seen_at = ?
		WHERE thread_id = ? AND user_id = ?`,
		at, threadID.String(), userID.String())
	return storageErr("touch participant", err)
}

// DeactivateParticipant flips the member inactive. Threads are never hard
// deleted; this is the only form of removal.
func (db *DB) DeactivateParticipant(ctx context.Context, threadID, userID uuid.UUID, at int64) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	res, err := db.ExecContext(ctx, `
		UPDATE thread_participants SET active = 0, left_at = ?
		WHERE thread_id = ? AND user_id = ? AND active = 1`,
		at, threadID.String(), userID.String())
	if err != nil {
		return storageErr("deactivate participant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound("active participant not found")
	}
	return nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// CreateNotification persists the durable fallback record. Notifications
// are write-once; the only later mutation is flipping the read flag.
func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().UnixMilli()
	}
	refs, err := json.Marshal(orEmptyMap(n.RelatedRefs))
	if err != nil {
		return model.ErrValidation("unencodable related refs")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, kind, title, body, priority, related_refs, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID.String(), n.RecipientID.String(), uuidOrEmpty(n.SenderID),
		string(n.Kind), n.Title, n.Body, string(n.Priority), string(refs), n.CreatedAt)
	return storageErr("create notification", err)
}

// MarkNotificationRead flips the read flag for the recipient's own record.
// Idempotent: marking an already-read notification reports no change.
func (db *DB) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) (bool, error) {
	ctx, cancel := db.op(ctx)
	defer cancel()

	res, err := db.ExecContext(ctx, `
		UPDATE notifications SET read = 1
		WHERE id = ? AND recipient_id = ? AND read = 0`,
		id.String(), recipientID.String())
	if err != nil {
		return false, storageErr("mark notification read", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListNotifications returns the recipient's notifications, newest first.
func (db *DB) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]model.Notification, error) {
	ctx, cancel := db.op(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, recipient_id, sender_id, kind, title, body, priority, related_refs, read, created_at
		FROM notifications WHERE recipient_id = ?`
	if unreadOnly {
		q += ` AND read = 0`
	}
	q += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := db.QueryContext(ctx, q, recipientID.String(), limit)
	if err != nil {
		return nil, storageErr("list notifications", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Notification
	for rows.Next() {
		var (
			n            model.Notification
			idStr        string
			recipientStr string
			senderStr    string
			kind         string
			priority     string
			refsRaw      string
		)
		if err := rows.Scan(&idStr, &recipientStr, &senderStr, &kind, &n.Title, &n.Body,
			&priority, &refsRaw, &n.Read, &n.CreatedAt); err != nil {
			return nil, storageErr("scan notification", err)
		}
		n.ID = parseUUID(idStr)
		n.RecipientID = parseUUID(recipientStr)
		n.SenderID = parseUUID(senderStr)
		n.Kind = model.NotificationKind(kind)
		n.Priority = model.NotificationPriority(priority)
		_ = json.Unmarshal([]byte(refsRaw), &n.RelatedRefs)
		out = append(out, n)
	}
	return out, storageErr("list notifications", rows.Err())
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// ReceiptKind discriminates the two append-only receipt sets.
type ReceiptKind string

const (
	ReceiptDelivered ReceiptKind = "delivered"
	ReceiptRead      ReceiptKind = "read"
)

// CreateMessage commits a message together with its send-time delivery
// stamps and the thread activity bump, in one transaction. The per-thread
// sequence is assigned here: broadcast order follows commit order.
func (db *DB) CreateMessage(ctx context.Context, msg *model.Message, deliveredTo []model.Receipt) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}
	payload, err := model.EncodeContent(msg.Content)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("create message", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Single-writer WAL makes this read-then-insert atomic.
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE thread_id = ?`,
		msg.ThreadID.String()).Scan(&seq)
	if err != nil {
		return storageErr("assign message seq", err)
	}
	msg.Seq = seq

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, seq, sender_id, kind, payload, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.ThreadID.String(), msg.Seq, msg.SenderID.String(),
		string(msg.Kind), string(payload), uuidOrEmpty(msg.ReplyToID), msg.CreatedAt)
	if err != nil {
		return storageErr("create message", err)
	}

	for _, r := range deliveredTo {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_receipts (message_id, user_id, kind, at)
			VALUES (?, ?, ?, ?)`,
			msg.ID.String(), r.UserID.String(), string(ReceiptDelivered), r.At)
		if err != nil {
			return storageErr("stamp delivery", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE threads SET last_message_id = ?, last_activity_at = ? WHERE id = ?`,
		msg.ID.String(), msg.CreatedAt, msg.ThreadID.String())
	if err != nil {
		return storageErr("bump thread activity", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("create message", err)
	}
	msg.DeliveredTo = append([]model.Receipt(nil), deliveredTo...)
	return nil
}

// GetMessage loads a message with its receipt sets and reactions.
func (db *DB) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	ctx, cancel := db.op(ctx)
	defer cancel()

	var (
		msg        model.Message
		idStr      string
		threadStr  string
		senderStr  string
		kind       string
		payload    string
		replyStr   string
		deletedStr string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, thread_id, seq, sender_id, kind, payload, reply_to_id,
		       edited, deleted, deleted_by, deleted_at, created_at
		FROM messages WHERE id = ?`, id.String()).
		Scan(&idStr, &threadStr, &msg.Seq, &senderStr, &kind, &payload, &replyStr,
			&msg.Edited, &msg.Deleted, &deletedStr, &msg.DeletedAt, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound("message not found")
		}
		return nil, storageErr("get message", err)
	}

	msg.ID = parseUUID(idStr)
	msg.ThreadID = parseUUID(threadStr)
	msg.SenderID = parseUUID(senderStr)
	msg.Kind = model.MessageKind(kind)
	msg.ReplyToID = parseUUID(replyStr)
	msg.DeletedBy = parseUUID(deletedStr)

	if msg.Deleted {
		// Deleted payloads are scrubbed at write time; surface the empty
		// union member so readers still see a well-formed message.
		msg.Content, _ = model.EmptyContent(msg.Kind)
	} else {
		content, err := model.DecodeContent(msg.Kind, []byte(payload))
		if err != nil {
			return nil, model.WrapError(model.KindFatal, "stored payload does not decode", err)
		}
		msg.Content = content
	}

	if err := db.loadReceipts(ctx, &msg); err != nil {
		return nil, err
	}
	if err := db.loadReactions(ctx, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (db *DB) loadReceipts(ctx context.Context, msg *model.Message) error {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, kind, at FROM message_receipts
		WHERE message_id = ? ORDER BY at ASC`, msg.ID.String())
	if err != nil {
		return storageErr("load receipts", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			userStr string
			kind    string
			at      int64
		)
		if err := rows.Scan(&userStr, &kind, &at); err != nil {
			return storageErr("scan receipt", err)
		}
		r := model.Receipt{UserID: parseUUID(userStr), At: at}
		switch ReceiptKind(kind) {
		case ReceiptDelivered:
			msg.DeliveredTo = append(msg.DeliveredTo, r)
		case ReceiptRead:
			msg.ReadBy = append(msg.ReadBy, r)
		}
	}
	return storageErr("load receipts", rows.Err())
}

func (db *DB) loadReactions(ctx context.Context, msg *model.Message) error {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, emoji, at FROM message_reactions
		WHERE message_id = ? ORDER BY at ASC`, msg.ID.String())
	if err != nil {
		return storageErr("load reactions", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			userStr string
			r       model.Reaction
		)
		if err := rows.Scan(&userStr, &r.Emoji, &r.At); err != nil {
			return storageErr("scan reaction", err)
		}
		r.UserID = parseUUID(userStr)
		msg.Reactions = append(msg.Reactions, r)
	}
	return storageErr("load reactions", rows.Err())
}

// ApplyEdit archives the current payload and installs the new one,
// atomically. The edited flag is orthogonal to the delivery/read track:
// existing read markers are deliberately untouched.
func (db *DB) ApplyEdit(ctx context.Context, messageID uuid.UUID, newPayload []byte, at int64) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("edit message", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prior string
	var deleted bool
	err = tx.QueryRowContext(ctx,
		`SELECT payload, deleted FROM messages WHERE id = ?`, messageID.String()).
		Scan(&prior, &deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound("message not found")
		}
		return storageErr("edit message", err)
	}
	if deleted {
		return model.ErrValidation("cannot edit a deleted message")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_edits (message_id, prior_payload, archived_at)
		VALUES (?, ?, ?)`, messageID.String(), prior, at)
	if err != nil {
		return storageErr("archive prior payload", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET payload = ?, edited = 1 WHERE id = ?`,
		string(newPayload), messageID.String())
	if err != nil {
		return storageErr("edit message", err)
	}

	return storageErr("edit message", tx.Commit())
}

// MarkDeleted flags the message deleted and scrubs the payload, preserving
// id, seq and the receipt sets for consistency.
func (db *DB) MarkDeleted(ctx context.Context, messageID, actor uuid.UUID, at int64) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	res, err := db.ExecContext(ctx, `
		UPDATE messages SET deleted = 1, deleted_by = ?, deleted_at = ?, payload = ''
		WHERE id = ? AND deleted = 0`,
		actor.String(), at, messageID.String())
	if err != nil {
		return storageErr("delete message", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound("message not found or already deleted")
	}
	return nil
}

// AddReceipt appends one receipt, once. Duplicates are silent no-ops so
// delivery and read marking stay idempotent under at-least-once clients.
func (db *DB) AddReceipt(ctx context.Context, messageID, userID uuid.UUID, kind ReceiptKind, at int64) (bool, error) {
	ctx, cancel := db.op(ctx)
	defer cancel()

	res, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO message_receipts (message_id, user_id, kind, at)
		VALUES (?, ?, ?, ?)`,
		messageID.String(), userID.String(), string(kind), at)
	if err != nil {
		return false, storageErr("add receipt", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddReaction appends the user's reaction. A duplicate react by the same
// user and emoji violates the primary key and is reported as AlreadyExists,
// keeping the reaction set a true set.
func (db *DB) AddReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string, at int64) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		INSERT INTO message_reactions (message_id, user_id, emoji, at)
		VALUES (?, ?, ?, ?)`,
		messageID.String(), userID.String(), emoji, at)
	if err != nil {
		if isConstraint(err) {
			return model.ErrAlreadyExists("reaction already present")
		}
		return storageErr("add reaction", err)
	}
	return nil
}

// RemoveReaction deletes the reaction if present. Idempotent.
func (db *DB) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	ctx, cancel := db.op(ctx)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		DELETE FROM message_reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID.String(), userID.String(), emoji)
	return storageErr("remove reaction", err)
}

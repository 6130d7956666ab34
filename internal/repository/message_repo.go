package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

// TxDB is a DBTX that can also open transactions. *pgxpool.Pool satisfies it.
type TxDB interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type MessageRepository struct {
	db TxDB
}

func NewMessageRepository(db TxDB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append persists the message and bumps the conversation's last-message
// timestamp in one transaction. The database assigns created_at, which is
// authoritative for ordering.
func (r *MessageRepository) Append(ctx context.Context, message *models.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	insert := `
		INSERT INTO messages (id, conversation_id, sender_id, sender_role, type, content, file_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insert,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.SenderRole,
		message.Type,
		message.Content,
		message.FileURL,
		message.Status,
	).Scan(&message.CreatedAt); err != nil {
		return err
	}

	touch := `
		UPDATE conversations
		SET last_message_at = $1
		WHERE id = $2
	`
	if _, err := tx.Exec(ctx, touch, message.CreatedAt, message.ConversationID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, sender_role, type, content, file_url, status, created_at
		FROM messages
		WHERE id = $1
	`
	var message models.Message
	err := r.db.QueryRow(ctx, query, id).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.SenderRole,
		&message.Type,
		&message.Content,
		&message.FileURL,
		&message.Status,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByConversation returns a page of messages in canonical order
// (created_at ascending, id as tiebreak) plus the total count.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID string,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	totalQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
	`

	var total int
	if err := r.db.QueryRow(ctx, totalQuery, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, conversation_id, sender_id, sender_role, type, content, file_url, status, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.SenderRole,
			&message.Type,
			&message.Content,
			&message.FileURL,
			&message.Status,
			&message.CreatedAt,
		); err != nil {
			return nil, 0, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// AdvanceStatus moves a message's status forward. The rank guard makes the
// write monotonic: a stale "delivered" arriving after "read" updates nothing.
// It returns the message as stored and whether the update was applied.
func (r *MessageRepository) AdvanceStatus(
	ctx context.Context,
	messageID string,
	status string,
) (*models.Message, bool, error) {
	query := `
		UPDATE messages
		SET status = $2
		WHERE id = $1
		  AND (CASE status
				WHEN 'sent' THEN 2
				WHEN 'delivered' THEN 3
				WHEN 'read' THEN 4
				ELSE 0
			   END) < $3
		RETURNING id, conversation_id, sender_id, sender_role, type, content, file_url, status, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, messageID, status, chatwire.StatusRank(status)).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.SenderRole,
		&message.Type,
		&message.Content,
		&message.FileURL,
		&message.Status,
		&message.CreatedAt,
	)
	if err == nil {
		return &message, true, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	// Guard rejected the write or the message does not exist.
	existing, err := r.GetByID(ctx, messageID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

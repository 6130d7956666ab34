package repository

import (
	"context"
	"time"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

const conversationColumns = `
	id, mentor_id, mentee_id,
	mentor_name, mentor_profession, mentor_skill_focus, mentor_bio, mentor_photo_url,
	mentee_name, mentee_profession, mentee_skill_focus, mentee_bio, mentee_photo_url,
	created_at, last_message_at, mentor_last_read_at, mentee_last_read_at
`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateIfAbsent inserts the conversation unless a row with the same derived
// id already exists. Two near-simultaneous first messages race through
// ON CONFLICT DO NOTHING: the loser re-reads the winner's row, so exactly one
// document exists per pair and the existing snapshots always win.
func (r *ConversationRepository) CreateIfAbsent(ctx context.Context, conversation *models.Conversation) (bool, error) {
	query := `
		INSERT INTO conversations (
			id, mentor_id, mentee_id,
			mentor_name, mentor_profession, mentor_skill_focus, mentor_bio, mentor_photo_url,
			mentee_name, mentee_profession, mentee_skill_focus, mentee_bio, mentee_photo_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		conversation.ID,
		conversation.MentorID,
		conversation.MenteeID,
		conversation.MentorInfo.Name,
		conversation.MentorInfo.Profession,
		conversation.MentorInfo.SkillFocus,
		conversation.MentorInfo.Bio,
		conversation.MentorInfo.PhotoURL,
		conversation.MenteeInfo.Name,
		conversation.MenteeInfo.Profession,
		conversation.MenteeInfo.SkillFocus,
		conversation.MenteeInfo.Bio,
		conversation.MenteeInfo.PhotoURL,
	)
	if err != nil {
		return false, err
	}

	if tag.RowsAffected() == 0 {
		existing, err := r.GetByID(ctx, conversation.ID)
		if err != nil {
			return false, err
		}
		*conversation = *existing
		return false, nil
	}

	created, err := r.GetByID(ctx, conversation.ID)
	if err != nil {
		return false, err
	}
	*conversation = *created
	return true, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return r.scanConversation(r.db.QueryRow(ctx, query, id))
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	id string,
	participantID string,
) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND (mentor_id = $2 OR mentee_id = $2)
	`
	return r.scanConversation(r.db.QueryRow(ctx, query, id, participantID))
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id, c.mentor_id, c.mentee_id,
			c.mentor_name, c.mentor_profession, c.mentor_skill_focus, c.mentor_bio, c.mentor_photo_url,
			c.mentee_name, c.mentee_profession, c.mentee_skill_focus, c.mentee_bio, c.mentee_photo_url,
			c.created_at, c.last_message_at, c.mentor_last_read_at, c.mentee_last_read_at,
			lm.id, lm.conversation_id, lm.sender_id, lm.sender_role, lm.type,
			lm.content, lm.file_url, lm.status, lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, conversation_id, sender_id, sender_role, type, content, file_url, status, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $1
			  AND status <> 'read'
		) uc ON TRUE
		WHERE c.mentor_id = $1 OR c.mentee_id = $1
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID *string
		var messageConversationID *string
		var messageSenderID *string
		var messageSenderRole *string
		var messageType *string
		var messageContent *string
		var messageFileURL *string
		var messageStatus *string
		var messageCreatedAt *time.Time

		if err := rows.Scan(
			&summary.ID,
			&summary.MentorID,
			&summary.MenteeID,
			&summary.MentorInfo.Name,
			&summary.MentorInfo.Profession,
			&summary.MentorInfo.SkillFocus,
			&summary.MentorInfo.Bio,
			&summary.MentorInfo.PhotoURL,
			&summary.MenteeInfo.Name,
			&summary.MenteeInfo.Profession,
			&summary.MenteeInfo.SkillFocus,
			&summary.MenteeInfo.Bio,
			&summary.MenteeInfo.PhotoURL,
			&summary.CreatedAt,
			&summary.LastMessageAt,
			&summary.MentorLastReadAt,
			&summary.MenteeLastReadAt,
			&messageID,
			&messageConversationID,
			&messageSenderID,
			&messageSenderRole,
			&messageType,
			&messageContent,
			&messageFileURL,
			&messageStatus,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summary.MentorInfo.UserID = summary.MentorID
		summary.MenteeInfo.UserID = summary.MenteeID

		if messageID != nil {
			summary.LastMessage = &models.Message{
				ID:             *messageID,
				ConversationID: *messageConversationID,
				SenderID:       *messageSenderID,
				SenderRole:     *messageSenderRole,
				Type:           *messageType,
				Content:        *messageContent,
				FileURL:        messageFileURL,
				Status:         *messageStatus,
				CreatedAt:      *messageCreatedAt,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// SetLastRead advances the participant's last-read marker. The guard keeps it
// forward-only so a stale read batch cannot move the marker back.
func (r *ConversationRepository) SetLastRead(
	ctx context.Context,
	conversationID string,
	readerRole string,
	at time.Time,
) error {
	column := "mentee_last_read_at"
	if readerRole == chatwire.RoleMentor {
		column = "mentor_last_read_at"
	}
	query := `
		UPDATE conversations
		SET ` + column + ` = $1
		WHERE id = $2
		  AND (` + column + ` IS NULL OR ` + column + ` < $1)
	`
	_, err := r.db.Exec(ctx, query, at, conversationID)
	return err
}

func (r *ConversationRepository) scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.MentorID,
		&conversation.MenteeID,
		&conversation.MentorInfo.Name,
		&conversation.MentorInfo.Profession,
		&conversation.MentorInfo.SkillFocus,
		&conversation.MentorInfo.Bio,
		&conversation.MentorInfo.PhotoURL,
		&conversation.MenteeInfo.Name,
		&conversation.MenteeInfo.Profession,
		&conversation.MenteeInfo.SkillFocus,
		&conversation.MenteeInfo.Bio,
		&conversation.MenteeInfo.PhotoURL,
		&conversation.CreatedAt,
		&conversation.LastMessageAt,
		&conversation.MentorLastReadAt,
		&conversation.MenteeLastReadAt,
	)
	if err != nil {
		return nil, err
	}
	conversation.MentorInfo.UserID = conversation.MentorID
	conversation.MenteeInfo.UserID = conversation.MenteeID
	return &conversation, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `
	id, admin_id, counselor_id, created_at, updated_at, last_message_at, last_message_text
`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.AdminID,
		&conversation.CounselorID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
		&conversation.LastMessageAt,
		&conversation.LastMessageText,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// Create inserts a conversation for the pair. A concurrent insert for the same
// pair surfaces as ErrDuplicate.
func (r *ConversationRepository) Create(
	ctx context.Context,
	adminID int64,
	counselorID int64,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (admin_id, counselor_id)
		VALUES ($1, $2)
		RETURNING ` + conversationColumns

	conversation, err := scanConversation(r.db.QueryRow(ctx, query, adminID, counselorID))
	if err != nil {
		return nil, mapWriteError(err)
	}
	return conversation, nil
}

func (r *ConversationRepository) GetByPair(
	ctx context.Context,
	adminID int64,
	counselorID int64,
) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE admin_id = $1 AND counselor_id = $2
	`
	return scanConversation(r.db.QueryRow(ctx, query, adminID, counselorID))
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
	`
	return scanConversation(r.db.QueryRow(ctx, query, conversationID))
}

// ListForParticipant returns the conversations where participantID sits in the
// column selected by role, newest activity first.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
	role models.Role,
) ([]models.ConversationSummary, error) {
	selfColumn, counterpartColumn := "admin_id", "counselor_id"
	if role == models.RoleCounselor {
		selfColumn, counterpartColumn = "counselor_id", "admin_id"
	}

	query := fmt.Sprintf(`
		SELECT
			c.id,
			c.admin_id,
			c.counselor_id,
			c.created_at,
			c.updated_at,
			c.last_message_at,
			c.last_message_text,
			u.id,
			u.first_name,
			u.last_name,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		JOIN users u ON u.id = c.%[2]s
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND receiver_id = $1
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE c.%[1]s = $1
		ORDER BY c.updated_at DESC, c.id DESC
	`, selfColumn, counterpartColumn)

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var firstName, lastName string

		if err := rows.Scan(
			&summary.ID,
			&summary.AdminID,
			&summary.CounselorID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.LastMessageAt,
			&summary.LastMessageText,
			&summary.CounterpartID,
			&firstName,
			&lastName,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summary.CounterpartName = models.DisplayName(firstName, lastName)
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// RecordMessage locks the conversation row and advances its summary. The
// returned timestamp is strictly greater than the previous updated_at and is
// used as the message creation time.
func (r *ConversationRepository) RecordMessage(
	ctx context.Context,
	conversationID int64,
	text string,
) (time.Time, error) {
	var stamp time.Time
	err := r.db.QueryRow(ctx, `
		WITH locked AS (
			SELECT id, GREATEST(clock_timestamp(), updated_at + INTERVAL '1 microsecond') AS stamp
			FROM conversations
			WHERE id = $1
			FOR UPDATE
		)
		UPDATE conversations c
		SET updated_at = locked.stamp,
		    last_message_at = locked.stamp,
		    last_message_text = $2
		FROM locked
		WHERE c.id = locked.id
		RETURNING c.updated_at
	`, conversationID, models.TruncateMessageText(text)).Scan(&stamp)
	if err != nil {
		return time.Time{}, err
	}
	return stamp, nil
}

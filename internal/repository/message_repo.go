package repository

import (
	"context"
	"time"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/jackc/pgx/v5"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

type AppendMessageInput struct {
	ConversationID int64
	SenderID       int64
	ReceiverID     int64
	Text           string
}

func (r *MessageRepository) Create(
	ctx context.Context,
	input AppendMessageInput,
	createdAt time.Time,
) (*models.ChatMessage, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, text, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING id, conversation_id, sender_id, receiver_id, text, is_read, created_at
	`

	var message models.ChatMessage
	err := r.db.QueryRow(
		ctx,
		query,
		input.ConversationID,
		input.SenderID,
		input.ReceiverID,
		input.Text,
		createdAt,
	).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Text,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return &message, nil
}

// Append inserts the message and advances the conversation summary in a single
// transaction. Nothing is written when either step fails.
func (r *MessageRepository) Append(ctx context.Context, input AppendMessageInput) (*models.ChatMessage, error) {
	var message *models.ChatMessage
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		txConversationRepo := NewConversationRepository(tx)
		txMessageRepo := NewMessageRepository(tx)

		stamp, err := txConversationRepo.RecordMessage(ctx, input.ConversationID, input.Text)
		if err != nil {
			return err
		}

		message, err = txMessageRepo.Create(ctx, input, stamp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID int64,
	limit int,
	offset int,
) ([]models.ChatMessage, int, error) {
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
		SELECT id, conversation_id, sender_id, receiver_id, text, is_read, created_at
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

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Text,
			&message.IsRead,
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

// MarkConversationRead flips every unread message addressed to readerID and
// returns how many rows changed.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1
		  AND receiver_id = $2
		  AND is_read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) CountUnread(
	ctx context.Context,
	conversationID int64,
	receiverID int64,
) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND receiver_id = $2
		  AND is_read = FALSE
	`, conversationID, receiverID).Scan(&count)
	return count, err
}

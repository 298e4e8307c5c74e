package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/Gersondiaz03/aasmcbev2/internal/repository"
	"github.com/jackc/pgx/v5"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a conversation participant")
	ErrInvalidParticipant   = errors.New("sender and receiver must be the conversation participants")
	ErrSelfConversation     = errors.New("a conversation needs two distinct participants")
)

type conversationStore interface {
	Create(ctx context.Context, adminID int64, counselorID int64) (*models.Conversation, error)
	GetByPair(ctx context.Context, adminID int64, counselorID int64) (*models.Conversation, error)
	GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error)
	ListForParticipant(ctx context.Context, participantID int64, role models.Role) ([]models.ConversationSummary, error)
}

type messageStore interface {
	Append(ctx context.Context, input repository.AppendMessageInput) (*models.ChatMessage, error)
	ListByConversation(ctx context.Context, conversationID int64, limit int, offset int) ([]models.ChatMessage, int, error)
	MarkConversationRead(ctx context.Context, conversationID int64, readerID int64) (int64, error)
	CountUnread(ctx context.Context, conversationID int64, receiverID int64) (int, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

type ChatService struct {
	conversationRepo conversationStore
	messageRepo      messageStore
	userRepo         userReader
}

func NewChatService(
	conversationRepo conversationStore,
	messageRepo messageStore,
	userRepo userReader,
) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

// GetOrCreateConversation returns the conversation for the directional pair,
// creating it on first contact. When two first contacts race, the losing
// insert is rejected by the unique constraint and resolved as a fetch.
func (s *ChatService) GetOrCreateConversation(
	ctx context.Context,
	adminID int64,
	counselorID int64,
) (*models.Conversation, error) {
	if adminID <= 0 || counselorID <= 0 {
		return nil, ErrInvalidInput
	}
	if adminID == counselorID {
		return nil, ErrSelfConversation
	}

	conversation, err := s.conversationRepo.GetByPair(ctx, adminID, counselorID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	conversation, err = s.conversationRepo.Create(ctx, adminID, counselorID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	conversation, err = s.conversationRepo.GetByPair(ctx, adminID, counselorID)
	if err != nil {
		return nil, fmt.Errorf("fetch conversation after conflict: %w", err)
	}
	return conversation, nil
}

// StartConversationWithCounselor is the admin-initiated request shape.
func (s *ChatService) StartConversationWithCounselor(
	ctx context.Context,
	adminID int64,
	counselorID int64,
) (*models.Conversation, error) {
	if err := s.requireRole(ctx, adminID, models.RoleAdmin, ErrForbidden); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, counselorID, models.RoleCounselor, ErrInvalidInput); err != nil {
		return nil, err
	}
	return s.GetOrCreateConversation(ctx, adminID, counselorID)
}

// StartConversationWithAdmin is the counselor-initiated request shape.
func (s *ChatService) StartConversationWithAdmin(
	ctx context.Context,
	counselorID int64,
	adminID int64,
) (*models.Conversation, error) {
	if err := s.requireRole(ctx, counselorID, models.RoleCounselor, ErrForbidden); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, adminID, models.RoleAdmin, ErrInvalidInput); err != nil {
		return nil, err
	}
	return s.GetOrCreateConversation(ctx, adminID, counselorID)
}

func (s *ChatService) requireRole(ctx context.Context, userID int64, role models.Role, mismatch error) error {
	if userID <= 0 {
		return ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if user.Role != role {
		return mismatch
	}
	return nil
}

// ListCounterparts lists the users a member of role can start a conversation with.
func (s *ChatService) ListCounterparts(ctx context.Context, role models.Role) ([]models.User, error) {
	if !role.Valid() {
		return nil, ErrForbidden
	}
	return s.userRepo.ListByRole(ctx, role.Counterpart())
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	userID int64,
	role models.Role,
) ([]models.ConversationSummary, error) {
	if !role.Valid() {
		return nil, ErrForbidden
	}
	if userID <= 0 {
		return nil, ErrInvalidInput
	}

	return s.conversationRepo.ListForParticipant(ctx, userID, role)
}

// IsParticipant is false for unknown conversations as well as for users
// outside the pair.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error) {
	if conversationID <= 0 || userID <= 0 {
		return false, nil
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return conversation.HasParticipant(userID), nil
}

func (s *ChatService) Participants(ctx context.Context, conversationID int64) (int64, int64, error) {
	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return 0, 0, err
	}
	return conversation.AdminID, conversation.CounselorID, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	conversationID int64,
	skip int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if conversationID <= 0 || skip < 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	return s.messageRepo.ListByConversation(ctx, conversationID, limit, skip)
}

func (s *ChatService) CreateMessage(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	receiverID int64,
	text string,
) (*models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}

	conversation, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if senderID == receiverID ||
		!conversation.HasParticipant(senderID) ||
		!conversation.HasParticipant(receiverID) {
		return nil, ErrInvalidParticipant
	}

	message, err := s.messageRepo.Append(ctx, repository.AppendMessageInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           text,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	return message, nil
}

// MarkMessagesAsRead returns the number of messages that changed state.
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, conversationID int64, userID int64) (int64, error) {
	if conversationID <= 0 || userID <= 0 {
		return 0, ErrInvalidInput
	}
	return s.messageRepo.MarkConversationRead(ctx, conversationID, userID)
}

func (s *ChatService) UnreadCount(ctx context.Context, conversationID int64, userID int64) (int, error) {
	if conversationID <= 0 || userID <= 0 {
		return 0, ErrInvalidInput
	}
	return s.messageRepo.CountUnread(ctx, conversationID, userID)
}

func (s *ChatService) getConversation(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	if conversationID <= 0 {
		return nil, ErrConversationNotFound
	}
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

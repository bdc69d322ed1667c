package services

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	apperrors "campus-errands.com/campus-errands/internal/errors"
	model "campus-errands.com/campus-errands/internal/models"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

// ChatService handles per-errand messaging between requester and runner, and
// the unread-count tracking the badges are driven by. Counts are cached in
// redis briefly; the cache is best effort and every failure falls back to the
// database.
type ChatService struct {
	chats    *repository.ChatRepository
	errands  *repository.ErrandRepository
	redis    rueidis.Client
	cacheTTL time.Duration
}

func NewChatService(
	chats *repository.ChatRepository,
	errands *repository.ErrandRepository,
	redis rueidis.Client,
	cacheTTL time.Duration,
) *ChatService {
	return &ChatService{
		chats:    chats,
		errands:  errands,
		redis:    redis,
		cacheTTL: cacheTTL,
	}
}

// Send stores a message from one errand participant to the other.
func (s *ChatService) Send(ctx context.Context, errandID, senderID string, text *string, media []string) (*model.ChatMessage, error) {
	errand, err := s.participant(ctx, errandID, senderID)
	if err != nil {
		return nil, err
	}

	hasText := text != nil && strings.TrimSpace(*text) != ""
	if !hasText && len(media) == 0 {
		return nil, apperrors.Validation("message needs text or media")
	}

	msg := &model.ChatMessage{
		ErrandID: errandID,
		SenderID: senderID,
		Text:     text,
		Media:    encodeStrings(media),
	}
	if err := s.chats.Create(ctx, msg); err != nil {
		return nil, err
	}

	if other := counterpart(errand, senderID); other != "" {
		s.invalidateUnread(ctx, errandID, other)
	}
	return msg, nil
}

func (s *ChatService) Messages(ctx context.Context, errandID, callerID string) ([]model.ChatMessage, error) {
	if _, err := s.participant(ctx, errandID, callerID); err != nil {
		return nil, err
	}
	return s.chats.ListByErrand(ctx, errandID)
}

func (s *ChatService) MarkDelivered(ctx context.Context, errandID, callerID string) error {
	if _, err := s.participant(ctx, errandID, callerID); err != nil {
		return err
	}
	return s.chats.MarkDelivered(ctx, errandID, callerID)
}

func (s *ChatService) MarkRead(ctx context.Context, errandID, callerID string) error {
	if _, err := s.participant(ctx, errandID, callerID); err != nil {
		return err
	}
	if err := s.chats.MarkRead(ctx, errandID, callerID); err != nil {
		return err
	}
	s.invalidateUnread(ctx, errandID, callerID)
	return nil
}

// UnreadCount returns how many counterpart messages the caller has not read.
func (s *ChatService) UnreadCount(ctx context.Context, errandID, callerID string) (int64, error) {
	if _, err := s.participant(ctx, errandID, callerID); err != nil {
		return 0, err
	}

	if cached, ok := s.cachedUnread(ctx, errandID, callerID); ok {
		return cached, nil
	}

	count, err := s.chats.UnreadCount(ctx, errandID, callerID)
	if err != nil {
		return 0, err
	}
	s.cacheUnread(ctx, errandID, callerID, count)
	return count, nil
}

func (s *ChatService) participant(ctx context.Context, errandID, userID string) (*model.Errand, error) {
	errand, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, err
	}
	if errand.RequesterID != userID && (errand.RunnerID == nil || *errand.RunnerID != userID) {
		return nil, apperrors.ErrForbidden
	}
	return errand, nil
}

func counterpart(errand *model.Errand, userID string) string {
	if errand.RequesterID == userID {
		if errand.RunnerID != nil {
			return *errand.RunnerID
		}
		return ""
	}
	return errand.RequesterID
}

func unreadKey(errandID, userID string) string {
	return "unread:" + errandID + ":" + userID
}

func (s *ChatService) cachedUnread(ctx context.Context, errandID, userID string) (int64, bool) {
	if s.redis == nil {
		return 0, false
	}

	result := s.redis.Do(ctx, s.redis.B().Get().Key(unreadKey(errandID, userID)).Build())
	if err := result.Error(); err != nil {
		if !rueidis.IsRedisNil(err) {
			log.Printf("chat: unread cache read failed: %v", err)
		}
		return 0, false
	}

	count, err := result.AsInt64()
	if err != nil {
		return 0, false
	}
	return count, true
}

func (s *ChatService) cacheUnread(ctx context.Context, errandID, userID string, count int64) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}

	cmd := s.redis.B().Setex().
		Key(unreadKey(errandID, userID)).
		Seconds(int64(s.cacheTTL.Seconds())).
		Value(strconv.FormatInt(count, 10)).
		Build()
	if err := s.redis.Do(ctx, cmd).Error(); err != nil {
		log.Printf("chat: unread cache write failed: %v", err)
	}
}

func (s *ChatService) invalidateUnread(ctx context.Context, errandID, userID string) {
	if s.redis == nil {
		return
	}

	cmd := s.redis.B().Del().Key(unreadKey(errandID, userID)).Build()
	if err := s.redis.Do(ctx, cmd).Error(); err != nil {
		log.Printf("chat: unread cache invalidate failed: %v", err)
	}
}

package services

import (
	"context"
	"net/http"
	"testing"

	apperrors "campus-errands.com/campus-errands/internal/errors"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

func TestChatService_SendAndUnread(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	errandSvc := NewErrandService(errandRepo)
	svc := NewChatService(chatRepo, errandRepo, nil, 0)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	errand := createOpenErrand(t, errandSvc, requester.ID)

	if _, err := errandSvc.Claim(ctx, errand.ID, runner.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	text := "on my way"
	msg, err := svc.Send(ctx, errand.ID, runner.ID, &text, nil)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.ID == "" || msg.Delivered || msg.Read {
		t.Errorf("unexpected message state: %+v", msg)
	}

	count, err := svc.UnreadCount(ctx, errand.ID, requester.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 unread for requester, got %d", count)
	}

	// The sender's own messages never count as unread for the sender.
	count, err = svc.UnreadCount(ctx, errand.ID, runner.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 unread for sender, got %d", count)
	}

	if err := svc.MarkRead(ctx, errand.ID, requester.ID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	count, err = svc.UnreadCount(ctx, errand.ID, requester.ID)
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 unread after mark read, got %d", count)
	}

	messages, err := svc.Messages(ctx, errand.ID, requester.ID)
	if err != nil {
		t.Fatalf("messages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if !messages[0].Read || !messages[0].Delivered {
		t.Errorf("expected message read and delivered, got %+v", messages[0])
	}
}

func TestChatService_ParticipantGating(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	errandSvc := NewErrandService(errandRepo)
	svc := NewChatService(chatRepo, errandRepo, nil, 0)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	stranger := createTestUser(t, userRepo, "stranger")
	errand := createOpenErrand(t, errandSvc, requester.ID)

	if _, err := errandSvc.Claim(ctx, errand.ID, runner.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	text := "hello"
	if _, err := svc.Send(ctx, errand.ID, stranger.ID, &text, nil); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for stranger send, got %v", err)
	}
	if _, err := svc.Messages(ctx, errand.ID, stranger.ID); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for stranger read, got %v", err)
	}
	if _, err := svc.UnreadCount(ctx, errand.ID, stranger.ID); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for stranger unread count, got %v", err)
	}
	if _, err := svc.Send(ctx, "missing-errand", requester.ID, &text, nil); !apperrors.IsStatus(err, http.StatusNotFound) {
		t.Errorf("expected not found for missing errand, got %v", err)
	}

	empty := "   "
	if _, err := svc.Send(ctx, errand.ID, requester.ID, &empty, nil); !apperrors.IsStatus(err, http.StatusBadRequest) {
		t.Errorf("expected validation error for blank message, got %v", err)
	}
	if _, err := svc.Send(ctx, errand.ID, requester.ID, &empty, []string{"https://img.example/1.jpg"}); err != nil {
		t.Errorf("media-only message must be accepted, got %v", err)
	}
}

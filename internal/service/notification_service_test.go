package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/link-access-service/internal/config"
	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/events"
)

func linkIssued(assignmentID string) events.Event {
	return events.Event{
		ID:        "evt-1",
		Type:      events.EventLinkIssued,
		SubjectID: "S1",
		Timestamp: time.Now(),
		Payload: events.LinkIssuedPayload{
			SubjectEmail: "worker@example.com",
			URL:          "https://training.example.com/auth/link?token=abc",
			ScopeKind:    domain.ScopeKindAssignment,
			AssignmentID: assignmentID,
			ExpiresAt:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestNotificationSendsLinkEmail(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	mailer := &recordingMailer{}
	NewNotificationService(dispatcher, mailer, zaptest.NewLogger(t), config.NotificationConfig{EmailFrom: "noreply@example.com"}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), linkIssued("A1")))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "noreply@example.com", sent[0].From)
	assert.Equal(t, "worker@example.com", sent[0].To)
	assert.Equal(t, "You have a new course assignment", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "https://training.example.com/auth/link?token=abc")
}

func TestNotificationWithoutSenderSkipsEmail(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	mailer := &recordingMailer{}
	NewNotificationService(dispatcher, mailer, zaptest.NewLogger(t), config.NotificationConfig{}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), linkIssued("")))
	assert.Empty(t, mailer.messages())
}

func TestNotificationRejectsUnexpectedPayload(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, &recordingMailer{}, zaptest.NewLogger(t), config.NotificationConfig{EmailFrom: "noreply@example.com"}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventLinkIssued, Payload: "nope"})
	require.Error(t, err)
}

func TestLogMailerDelivers(t *testing.T) {
	require.NoError(t, NewLogMailer(zaptest.NewLogger(t)).Deliver(context.Background(), Message{To: "a@example.com"}))
}

func TestNotificationRedemptionEventsSendNothing(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	mailer := &recordingMailer{}
	NewNotificationService(dispatcher, mailer, zaptest.NewLogger(t), config.NotificationConfig{EmailFrom: "noreply@example.com"}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventLinkRedeemed,
		SubjectID: "S1",
		Payload:   events.LinkRedeemedPayload{ScopeKind: domain.ScopeKindNone},
	}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventLinkRedemptionFailed,
		SubjectID: "S1",
		Payload:   events.LinkRedemptionFailedPayload{Stage: "validating", Reason: "scope mismatch"},
	}))
	assert.Empty(t, mailer.messages())
}

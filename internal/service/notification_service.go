package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/link-access-service/internal/config"
	"github.com/spec-kit/link-access-service/internal/events"
)

// Message is an outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Delivery is fire-and-forget from the link flow's
// point of view.
type Mailer interface {
	Deliver(ctx context.Context, msg Message) error
}

// LogMailer is a development mailer that records deliveries without the body,
// which carries the access link.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates the mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Deliver implements Mailer.
func (m *LogMailer) Deliver(_ context.Context, msg Message) error {
	m.logger.Info("email queued",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)))
	return nil
}

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventLinkIssued, n.handleLinkIssued)
	n.dispatcher.Subscribe(events.EventLinkRedeemed, n.handleLinkRedeemed)
	n.dispatcher.Subscribe(events.EventLinkRedemptionFailed, n.handleRedemptionFailed)
}

func (n *NotificationService) handleLinkIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LinkIssuedPayload)
	if !ok {
		return fmt.Errorf("link_issued: unexpected payload %T", event.Payload)
	}
	n.logger.Info("LinkIssued",
		zap.String("subject_id", event.SubjectID),
		zap.String("scope_kind", string(payload.ScopeKind)),
		zap.String("assignment_id", payload.AssignmentID))
	if err := n.sendLinkEmail(ctx, payload); err != nil {
		n.logger.Warn("link email delivery failed", zap.String("subject_id", event.SubjectID), zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleLinkRedeemed(_ context.Context, event events.Event) error {
	n.logger.Info("LinkRedeemed", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleRedemptionFailed(_ context.Context, event events.Event) error {
	n.logger.Info("LinkRedemptionFailed", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendLinkEmail(ctx context.Context, payload events.LinkIssuedPayload) error {
	if n.mailer == nil || strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return nil
	}
	subject := "Your sign-in link"
	if payload.AssignmentID != "" {
		subject = "You have a new course assignment"
	}
	body := fmt.Sprintf("Open this link to continue:\n\n%s\n\nThe link works once and expires on %s.",
		payload.URL, payload.ExpiresAt.Format("2006-01-02 15:04 MST"))
	return n.mailer.Deliver(ctx, Message{
		From:    n.cfg.EmailFrom,
		To:      payload.SubjectEmail,
		Subject: subject,
		Body:    body,
	})
}

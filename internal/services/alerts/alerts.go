// Package alerts разбирает уведомления биллинга для операторов.
package alerts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/career-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

// Mailer отправляет письма.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// Service логирует уведомления и при настроенной почте пишет операторам
// о событиях, которые не удалось применить.
type Service struct {
	log       *slog.Logger
	mailer    Mailer
	operators []string
}

// NewService создаёт Service. Без mailer письма не отправляются.
func NewService(log *slog.Logger, mailer Mailer, operators ...string) *Service {
	return &Service{
		log:       log,
		mailer:    mailer,
		operators: operators,
	}
}

// HandleUnresolved обрабатывает событие, не сопоставленное с аккаунтом или планом.
// Ошибка отправки письма возвращает сообщение в очередь.
func (s *Service) HandleUnresolved(body []byte) error {
	const op = "services.alerts.HandleUnresolved"
	var msg models.UnresolvedEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPoisonMessage, err)
	}

	s.log.Warn("unresolved billing event",
		slog.String("op", op),
		slog.String("reason", msg.Reason),
		slog.String("event_id", msg.Event.ID),
		slog.String("event_type", string(msg.Event.Type)),
		slog.String("customer_ref", msg.Event.CustomerRef),
		slog.String("account_ref", msg.Event.AccountRef),
		slog.String("plan_id", string(msg.Event.PlanID)),
	)

	if s.mailer == nil || len(s.operators) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Billing event %s needs attention: %s", msg.Event.ID, msg.Reason)
	if err := s.mailer.Send(s.operators, subject, describe(msg)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HandleTierChanged записывает смену тарифа в журнал аудита.
func (s *Service) HandleTierChanged(body []byte) error {
	const op = "services.alerts.HandleTierChanged"
	var msg models.TierChangedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPoisonMessage, err)
	}

	s.log.Info("tier changed",
		slog.String("op", op),
		slog.String("account_id", msg.AccountID),
		slog.String("tier", msg.Tier.String()),
		slog.String("event_id", msg.EventID),
		slog.Time("occurred_at", msg.OccurredAt),
	)
	return nil
}

func describe(msg models.UnresolvedEventMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reason: %s\n", msg.Reason)
	fmt.Fprintf(&b, "Event ID: %s\n", msg.Event.ID)
	fmt.Fprintf(&b, "Event type: %s\n", msg.Event.Type)
	fmt.Fprintf(&b, "Customer: %s\n", msg.Event.CustomerRef)
	if msg.Event.AccountRef != "" {
		fmt.Fprintf(&b, "Account: %s\n", msg.Event.AccountRef)
	}
	if msg.Event.PlanID != "" {
		fmt.Fprintf(&b, "Plan: %s\n", msg.Event.PlanID)
	}
	fmt.Fprintf(&b, "Occurred at: %s\n", msg.Event.OccurredAt.UTC().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

package alerts

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/career-entitlements/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to []string, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func unresolvedBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(models.UnresolvedEventMessage{
		Event: models.BillingEvent{
			ID:          "evt_1",
			Type:        models.EventSubscriptionActivated,
			PlanID:      models.PlanProMonthly,
			CustomerRef: "cus_404",
			OccurredAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		Reason: "unknown_account",
	})
	require.NoError(t, err)
	return body
}

func TestService_HandleUnresolved(t *testing.T) {
	tests := []struct {
		name       string
		operators  []string
		setupMocks func(*MockMailer)
		wantErr    bool
	}{
		{
			name:      "emails operators",
			operators: []string{"ops@example.com"},
			setupMocks: func(m *MockMailer) {
				m.On("Send", []string{"ops@example.com"}, "Billing event evt_1 needs attention: unknown_account",
					mock.MatchedBy(func(body string) bool {
						return strings.Contains(body, "Reason: unknown_account") &&
							strings.Contains(body, "Customer: cus_404") &&
							strings.Contains(body, "Plan: pro_monthly") &&
							strings.Contains(body, "2026-03-01 12:00:00 UTC")
					})).Return(nil).Once()
			},
		},
		{
			name:       "no operators only logs",
			setupMocks: func(*MockMailer) {},
		},
		{
			name:      "mail failure requeues",
			operators: []string{"ops@example.com"},
			setupMocks: func(m *MockMailer) {
				m.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := new(MockMailer)
			tt.setupMocks(mailer)
			s := NewService(newNoopLogger(), mailer, tt.operators...)

			err := s.HandleUnresolved(unresolvedBody(t))
			if tt.wantErr {
				require.Error(t, err)
				assert.NotErrorIs(t, err, rabbitmq.ErrPoisonMessage)
			} else {
				require.NoError(t, err)
			}
			mailer.AssertExpectations(t)
		})
	}
}

func TestService_NilMailer(t *testing.T) {
	s := NewService(newNoopLogger(), nil, "ops@example.com")
	require.NoError(t, s.HandleUnresolved(unresolvedBody(t)))
}

func TestService_PoisonMessages(t *testing.T) {
	s := NewService(newNoopLogger(), nil)

	assert.ErrorIs(t, s.HandleUnresolved([]byte("not json")), rabbitmq.ErrPoisonMessage)
	assert.ErrorIs(t, s.HandleTierChanged([]byte("{")), rabbitmq.ErrPoisonMessage)
}

func TestService_HandleTierChanged(t *testing.T) {
	body, err := json.Marshal(models.TierChangedMessage{
		AccountID: "acc-1", Tier: models.TierPro, EventID: "evt_1", OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	assert.NoError(t, NewService(newNoopLogger(), nil).HandleTierChanged(body))
}

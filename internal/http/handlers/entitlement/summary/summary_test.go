package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/services/entitlement"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Summary(ctx context.Context, caller models.Caller) (*entitlement.Summary, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entitlement.Summary), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSummaryHandler_ServeHTTP(t *testing.T) {
	caller := models.Caller{AccountID: "acc-1"}

	tests := []struct {
		name           string
		caller         *models.Caller
		setupMocks     func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "success",
			caller: &caller,
			setupMocks: func(s *MockService) {
				s.On("Summary", mock.Anything, caller).Return(&entitlement.Summary{
					AccountID: "acc-1",
					Tier:      models.TierPro,
					Limits:    models.TierLimits{RequestsPerMonth: 500, MaxTokensPerRequest: 4000},
					Period:    "2026-03",
					Used:      10,
					Remaining: 490,
					ResetsAt:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"status":"OK","data":{"account_id":"acc-1","tier":"pro",
				"limits":{"requests_per_month":500,"max_tokens_per_request":4000},
				"period":"2026-03","used":10,"remaining":490,"resets_at":"2026-04-01T00:00:00Z"}}`,
		},
		{
			name:           "missing caller",
			setupMocks:     func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:   "service error",
			caller: &caller,
			setupMocks: func(s *MockService) {
				s.On("Summary", mock.Anything, caller).Return(nil, errors.New("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/entitlements", nil)
			if tt.caller != nil {
				req = req.WithContext(middlewarectx.WithCaller(req.Context(), *tt.caller))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			service.AssertExpectations(t)
		})
	}
}

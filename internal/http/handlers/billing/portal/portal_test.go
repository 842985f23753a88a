package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/career-entitlements/internal/http/middlewarectx"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
	"github.com/magabrotheeeer/career-entitlements/internal/services/billing"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) PortalURL(ctx context.Context, caller models.Caller) (string, error) {
	args := m.Called(ctx, caller)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestPortalHandler_ServeHTTP(t *testing.T) {
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
				s.On("PortalURL", mock.Anything, caller).Return("https://billing.stripe.com/p/session_1", nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"url":"https://billing.stripe.com/p/session_1"}}`,
		},
		{
			name:           "missing caller",
			setupMocks:     func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:   "never subscribed",
			caller: &caller,
			setupMocks: func(s *MockService) {
				s.On("PortalURL", mock.Anything, caller).
					Return("", fmt.Errorf("services.billing.PortalURL: %w", billing.ErrNoBillingAccount)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"status":"Error","error":"no subscription to manage"}`,
		},
		{
			name:   "provider error",
			caller: &caller,
			setupMocks: func(s *MockService) {
				s.On("PortalURL", mock.Anything, caller).Return("", errors.New("stripe unavailable")).Once()
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"status":"Error","error":"payment provider error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.setupMocks(service)
			handler := New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/portal", nil)
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

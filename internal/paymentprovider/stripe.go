// Package paymentprovider инкапсулирует работу со Stripe: проверку и разбор
// вебхуков, создание клиентов и сессий оплаты.
package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/career-entitlements/internal/config"
	"github.com/magabrotheeeer/career-entitlements/internal/models"
)

// Client клиент Stripe
type Client struct {
	api           *client.API
	webhookSecret string
	frontendURL   string
	priceByPlan   map[models.PlanID]string
	planByPrice   map[string]models.PlanID
}

// NewClient создаёт клиент Stripe. backends можно передать nil,
// тогда используются стандартные адреса API.
func NewClient(cfg config.Stripe, backends *stripe.Backends) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	priceByPlan := map[models.PlanID]string{
		models.PlanProMonthly: cfg.PriceIDProMonthly,
		models.PlanProYearly:  cfg.PriceIDProYearly,
	}
	planByPrice := make(map[string]models.PlanID, len(priceByPlan))
	for plan, price := range priceByPlan {
		planByPrice[price] = plan
	}

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
		priceByPlan:   priceByPlan,
		planByPrice:   planByPrice,
	}
}

// CreateCustomer создаёт клиента Stripe, привязанного к аккаунту через метаданные.
func (c *Client) CreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	const op = "paymentprovider.CreateCustomer"

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			MetadataAccountID: accountID,
		},
	}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession создаёт сессию оплаты подписки по плану.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	const op = "paymentprovider.CreateCheckoutSession"

	priceID, ok := c.priceByPlan[req.PlanID]
	if !ok || priceID == "" {
		return nil, fmt.Errorf("%s: no price configured for plan %q", op, req.PlanID)
	}
	metadata := map[string]string{
		MetadataAccountID: req.AccountID,
		MetadataPlanID:    string(req.PlanID),
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.AccountID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripe.String(c.frontendURL + "/billing/success"),
		CancelURL:  stripe.String(c.frontendURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession возвращает ссылку на портал управления подпиской.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	const op = "paymentprovider.CreatePortalSession"

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, nil
}

// ParseWebhook проверяет подпись вебхука и переводит событие Stripe
// в BillingEvent. Для событий, которые не меняют тариф, возвращается nil.
func (c *Client) ParseWebhook(payload []byte, signature string) (*models.BillingEvent, error) {
	const op = "paymentprovider.ParseWebhook"

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	ev, err := c.translate(event)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ev, nil
}

func (c *Client) translate(event stripe.Event) (*models.BillingEvent, error) {
	occurred := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		if sess.Mode != stripe.CheckoutSessionModeSubscription ||
			sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			return nil, nil
		}
		accountRef := sess.ClientReferenceID
		if accountRef == "" {
			accountRef = sess.Metadata[MetadataAccountID]
		}
		return &models.BillingEvent{
			ID:          event.ID,
			Type:        models.EventSubscriptionActivated,
			PlanID:      models.PlanID(sess.Metadata[MetadataPlanID]),
			CustomerRef: customerID(sess.Customer),
			AccountRef:  accountRef,
			OccurredAt:  occurred,
		}, nil

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
		}
		typ, ok := subscriptionEventType(event.Type, sub.Status)
		if !ok {
			return nil, nil
		}
		return &models.BillingEvent{
			ID:          event.ID,
			Type:        typ,
			PlanID:      c.planFor(&sub),
			CustomerRef: customerID(sub.Customer),
			AccountRef:  sub.Metadata[MetadataAccountID],
			OccurredAt:  occurred,
		}, nil
	}

	return nil, nil
}

func subscriptionEventType(eventType stripe.EventType, status stripe.SubscriptionStatus) (models.BillingEventType, bool) {
	if eventType == "customer.subscription.deleted" {
		return models.EventSubscriptionCancelled, true
	}
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.EventSubscriptionActivated, true
	case stripe.SubscriptionStatusCanceled:
		return models.EventSubscriptionCancelled, true
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return models.EventSubscriptionExpired, true
	}
	// past_due, incomplete и paused не меняют тариф до окончательного исхода.
	return "", false
}

// planFor возвращает план по цене первой позиции подписки. Неизвестная цена
// возвращается как есть, чтобы её отклонил каталог.
func (c *Client) planFor(sub *stripe.Subscription) models.PlanID {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return models.PlanID(sub.Metadata[MetadataPlanID])
	}
	priceID := sub.Items.Data[0].Price.ID
	if plan, ok := c.planByPrice[priceID]; ok {
		return plan
	}
	return models.PlanID(priceID)
}

func customerID(cust *stripe.Customer) string {
	if cust == nil {
		return ""
	}
	return cust.ID
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ambos-norte-backend/internal/dto"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
	"ambos-norte-backend/internal/service"
)

type notification struct {
	topic      string
	resourceID string
}

// stubPaymentService records webhook notifications and returns canned
// results.
type stubPaymentService struct {
	ack           service.Ack
	notifications []notification
	confirmErr    error
	payment       *model.Payment
}

func (s *stubPaymentService) CreatePreference(context.Context, service.Actor, *dto.CreatePreferenceRequest) (*dto.CreatePreferenceResponse, error) {
	return nil, service.ErrValidation
}

func (s *stubPaymentService) HandleNotification(_ context.Context, topic, resourceID string) service.Ack {
	s.notifications = append(s.notifications, notification{topic: topic, resourceID: resourceID})
	return s.ack
}

func (s *stubPaymentService) Confirm(context.Context, *dto.ConfirmPaymentRequest) (*model.Payment, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return s.payment, nil
}

func (s *stubPaymentService) SetState(context.Context, uint, string, service.Actor) (*model.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentService) Get(context.Context, uint) (*model.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentService) List(context.Context, repository.PaymentListFilter) ([]*model.Payment, error) {
	return nil, nil
}

func webhookRequest(t *testing.T, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeWebhookResponse(t *testing.T, rec *httptest.ResponseRecorder) dto.WebhookResponse {
	t.Helper()
	var resp dto.WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWebhookReadsQueryParams(t *testing.T) {
	stub := &stubPaymentService{ack: service.AckSuccess}
	h := NewPaymentHandler(stub)

	c, rec := webhookRequest(t, "/api/payments/webhook?topic=payment&id=123", "")
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decodeWebhookResponse(t, rec).Status)
	require.Len(t, stub.notifications, 1)
	assert.Equal(t, "payment", stub.notifications[0].topic)
	assert.Equal(t, "123", stub.notifications[0].resourceID)
}

func TestWebhookFallsBackToJSONBody(t *testing.T) {
	stub := &stubPaymentService{ack: service.AckSuccess}
	h := NewPaymentHandler(stub)

	c, rec := webhookRequest(t, "/api/payments/webhook",
		`{"type":"payment","data":{"id":"456"}}`)
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.notifications, 1)
	assert.Equal(t, "payment", stub.notifications[0].topic)
	assert.Equal(t, "456", stub.notifications[0].resourceID)
}

func TestWebhookLegacyTopicField(t *testing.T) {
	stub := &stubPaymentService{ack: service.AckSuccess}
	h := NewPaymentHandler(stub)

	c, rec := webhookRequest(t, "/api/payments/webhook",
		`{"topic":"payment","data":{"id":"789"}}`)
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, stub.notifications, 1)
	assert.Equal(t, "payment", stub.notifications[0].topic)
}

func TestWebhookAlwaysRespondsOK(t *testing.T) {
	for _, ack := range []service.Ack{
		service.AckIgnored,
		service.AckError,
		service.AckNoExternalReference,
		service.AckOrderNotFound,
	} {
		stub := &stubPaymentService{ack: ack}
		h := NewPaymentHandler(stub)

		c, rec := webhookRequest(t, "/api/payments/webhook?topic=payment&id=1", "")
		require.NoError(t, h.Webhook(c))

		assert.Equal(t, http.StatusOK, rec.Code, "ack %q", ack)
		assert.Equal(t, string(ack), decodeWebhookResponse(t, rec).Status)
	}
}

func TestWebhookGarbageBodyStillOK(t *testing.T) {
	stub := &stubPaymentService{ack: service.AckIgnored}
	h := NewPaymentHandler(stub)

	c, rec := webhookRequest(t, "/api/payments/webhook", `{{{not json`)
	require.NoError(t, h.Webhook(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeWebhookResponse(t, rec).Status)
}

func TestConfirmTranslatesNotFound(t *testing.T) {
	stub := &stubPaymentService{confirmErr: service.ErrNotFound}
	h := NewPaymentHandler(stub)

	c, _ := webhookRequest(t, "/api/payments/confirm",
		`{"order_id":1,"payment_id":"555","status":"approved"}`)
	err := h.Confirm(c)
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestSetStateRejectsBadPaymentID(t *testing.T) {
	h := NewPaymentHandler(&stubPaymentService{})

	c, _ := webhookRequest(t, "/api/payments/abc/state", `{"state":"approved"}`)
	c.SetParamNames("id")
	c.SetParamValues("abc")

	err := h.SetState(c)
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

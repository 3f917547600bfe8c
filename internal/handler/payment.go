package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ambos-norte-backend/internal/dto"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
	"ambos-norte-backend/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

func (h *PaymentHandler) CreatePreference(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreatePreferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.paymentService.CreatePreference(ctx, actorFromContext(c), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, resp)
}

// Webhook is the boundary adapter for gateway notifications. Whatever
// happens inside, the gateway gets a 200 with a status token; anything else
// makes it retry indefinitely.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	topic := c.QueryParam("topic")
	if topic == "" {
		topic = c.QueryParam("type")
	}
	resourceID := c.QueryParam("id")

	if topic == "" || resourceID == "" {
		var body dto.WebhookBody
		if err := c.Bind(&body); err == nil {
			if topic == "" {
				topic = body.Type
				if topic == "" {
					topic = body.Topic
				}
			}
			if resourceID == "" {
				resourceID = body.Data.ID
			}
		}
	}

	ack := h.paymentService.HandleNotification(ctx, topic, resourceID)

	return c.JSON(http.StatusOK, dto.WebhookResponse{Status: string(ack)})
}

func (h *PaymentHandler) Confirm(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ConfirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	payment, err := h.paymentService.Confirm(ctx, &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewPaymentResponse(payment))
}

func (h *PaymentHandler) SetState(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	var req dto.SetPaymentStateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	payment, err := h.paymentService.SetState(ctx, uint(paymentID), req.State, actorFromContext(c))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewPaymentResponse(payment))
}

func (h *PaymentHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	paymentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := h.paymentService.Get(ctx, uint(paymentID))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewPaymentResponse(payment))
}

func (h *PaymentHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.PaymentListFilter{
		State: model.PaymentStatus(c.QueryParam("state")),
	}
	if orderParam := c.QueryParam("order"); orderParam != "" {
		if orderID, err := strconv.ParseUint(orderParam, 10, 64); err == nil {
			filter.OrderID = uint(orderID)
		}
	}

	payments, err := h.paymentService.List(ctx, filter)
	if err != nil {
		return httpError(err)
	}

	out := make([]*dto.PaymentResponse, len(payments))
	for i, payment := range payments {
		out[i] = dto.NewPaymentResponse(payment)
	}

	return c.JSON(http.StatusOK, out)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"ambos-norte-backend/internal/dto"
	"ambos-norte-backend/internal/middleware"
	"ambos-norte-backend/internal/model"
	"ambos-norte-backend/internal/repository"
	"ambos-norte-backend/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func actorFromContext(c echo.Context) service.Actor {
	actor := service.Actor{}
	if userID, ok := c.Get(middleware.ContextUserID).(uint); ok && userID != 0 {
		actor.UserID = &userID
	}
	if email, ok := c.Get(middleware.ContextEmail).(string); ok {
		actor.Email = email
	}
	return actor
}

func orderIDFromPath(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	return uint(id), nil
}

func (h *OrderHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	order, err := h.orderService.Create(ctx, actorFromContext(c), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDFromPath(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.Get(ctx, orderID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repository.OrderListFilter{
		State:      model.OrderStatus(c.QueryParam("state")),
		ActiveOnly: c.QueryParam("active") == "true",
	}
	if userParam := c.QueryParam("user"); userParam != "" {
		if userID, err := strconv.ParseUint(userParam, 10, 64); err == nil {
			id := uint(userID)
			filter.UserID = &id
		}
	}

	orders, err := h.orderService.List(ctx, filter)
	if err != nil {
		return httpError(err)
	}

	out := make([]*dto.OrderResponse, len(orders))
	for i, order := range orders {
		out[i] = dto.NewOrderResponse(order)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) ChangeStatus(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDFromPath(c)
	if err != nil {
		return err
	}

	var req dto.ChangeStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	order, err := h.orderService.ChangeStatus(ctx, orderID, req.NewState, actorFromContext(c), req.Comment)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) Deactivate(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDFromPath(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.Deactivate(ctx, orderID, actorFromContext(c))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) ToggleActive(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDFromPath(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.ToggleActive(ctx, orderID, actorFromContext(c))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}

func (h *OrderHandler) History(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := orderIDFromPath(c)
	if err != nil {
		return err
	}

	entries, err := h.orderService.History(ctx, orderID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.NewStatusEntryResponses(entries))
}

func (h *OrderHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.orderService.Stats(ctx)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, stats)
}

package server

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ambos-norte-backend/internal/handler"
	"ambos-norte-backend/internal/middleware"
	"ambos-norte-backend/internal/service"
)

type Server struct {
	echo           *echo.Echo
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
}

func NewServer(orderService service.OrderService, paymentService service.PaymentService, jwtSecret string) *Server {
	e := echo.New()

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.Auth(jwtSecret))

	s := &Server{
		echo:           e,
		orderHandler:   handler.NewOrderHandler(orderService),
		paymentHandler: handler.NewPaymentHandler(paymentService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("", s.orderHandler.Create)
	orders.GET("", s.orderHandler.List)
	orders.GET("/stats", s.orderHandler.Stats, middleware.RequireAdmin())
	orders.GET("/:id", s.orderHandler.Get)
	orders.GET("/:id/history", s.orderHandler.History)
	orders.POST("/:id/status", s.orderHandler.ChangeStatus, middleware.RequireAdmin())
	orders.POST("/:id/toggle-active", s.orderHandler.ToggleActive, middleware.RequireAdmin())
	orders.DELETE("/:id", s.orderHandler.Deactivate, middleware.RequireAdmin())

	// -------- payments --------
	payments := api.Group("/payments")
	payments.POST("/preference", s.paymentHandler.CreatePreference)
	payments.GET("", s.paymentHandler.List, middleware.RequireAdmin())
	payments.GET("/:id", s.paymentHandler.Get)
	payments.POST("/:id/state", s.paymentHandler.SetState, middleware.RequireAdmin())
	payments.POST("/confirm", s.paymentHandler.Confirm)

	// gateway webhooks: no auth, always 200
	payments.POST("/webhook", s.paymentHandler.Webhook)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

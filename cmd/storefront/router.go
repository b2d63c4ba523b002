package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	handler "github.com/rookgm/storefront/internal/handler/http"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/service"
	"go.uber.org/zap"
)

// routes holds handlers served by storefront
type routes struct {
	payment      *handler.PaymentHandler
	order        *handler.OrderHandler
	reminder     *handler.ReminderHandler
	cart         *handler.CartHandler
	subscription *handler.SubscriptionHandler
	health       http.Handler
	metrics      http.Handler
}

func newRouter(h routes, tokens service.TokenService, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logging(logger))

	router.Method(http.MethodGet, "/healthz", h.health)
	router.Method(http.MethodGet, "/metrics", h.metrics)

	router.Route("/api/payments", func(r chi.Router) {
		r.Post("/flutterwave", h.payment.InitiateFlutterwave())
		r.Post("/flutterwave/webhook", h.payment.FlutterwaveWebhook())
		r.Get("/flutterwave/verify", h.payment.VerifyFlutterwave())
		r.Post("/flutterwave/verify", h.payment.VerifyFlutterwave())
		r.Post("/paypal", h.payment.InitiatePayPal())
		r.Post("/paypal/capture/{providerOrderID}", h.payment.CapturePayPal())
		r.Post("/paypal/cancel/{providerOrderID}", h.payment.CancelPayPal())
	})

	router.Post("/api/reminders/process", h.reminder.ProcessReminders())
	router.Post("/api/send-subscription-email", h.subscription.Subscribe())
	router.Post("/api/send-contact-email", h.subscription.Contact())

	// routes that require authentication
	router.Group(func(group chi.Router) {
		group.Use(middleware.Auth(tokens))
		group.Post("/api/orders", h.order.PlaceOrder())
		group.Get("/api/orders", h.order.ListUserOrders())
		group.Get("/api/orders/{orderID}", h.order.GetUserOrder())
		group.Post("/api/reminders", h.reminder.SetupReminder())
		group.Get("/api/reminders", h.reminder.ListUserReminders())
		group.Get("/api/cart", h.cart.GetCart())
		group.Put("/api/cart", h.cart.SaveCart())
	})

	return router
}

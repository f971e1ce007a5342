package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/foxyhub/internal/handlers"
	"github.com/example/foxyhub/internal/metrics"
	"github.com/example/foxyhub/internal/middleware"
	"github.com/example/foxyhub/internal/services"
)

// Dependencies are the services and settings the HTTP layer needs.
type Dependencies struct {
	Sessions    *services.SessionService
	OTP         *services.OTPService
	Profiles    *services.ProfileService
	Catalog     *services.CatalogService
	Orders      *services.OrderService
	Payments    *services.PaymentService
	OTPLimiter  *middleware.RateLimiter
	EchoOTPCode bool
	WebhookURL  string
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Dependencies) {
	authHandler := handlers.NewAuthHandler(d.OTP, d.Sessions, d.EchoOTPCode)
	profileHandler := handlers.NewProfileHandler(d.Profiles)
	catalogHandler := handlers.NewCatalogHandler(d.Catalog)
	orderHandler := handlers.NewOrderHandler(d.Orders, d.Payments, d.WebhookURL)

	app.Get("/health", handlers.Health)
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api/v1")
	api.Get("/health", handlers.Health)

	// Auth routes
	otp := api.Group("/otp")
	if d.OTPLimiter != nil {
		otp.Post("/request", d.OTPLimiter.Handler(), authHandler.RequestOTP)
	} else {
		otp.Post("/request", authHandler.RequestOTP)
	}
	otp.Post("/verify", authHandler.VerifyOTP)
	api.Post("/auth/token/refresh", authHandler.RefreshToken)

	// Catalog routes
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/categories/:slug", catalogHandler.GetCategory)
	api.Get("/products", catalogHandler.ListProducts)
	api.Get("/products/:slug", catalogHandler.GetProduct)
	api.Get("/products/:slug/variants", catalogHandler.ListVariants)

	// Gateway callback, registered ahead of the authenticated order routes.
	api.Post("/orders/webhook", orderHandler.Webhook)

	auth := middleware.AuthMiddleware(d.Sessions)

	profile := api.Group("/profile", auth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Patch("/", profileHandler.UpdateProfile)
	profile.Post("/telegram-id", profileHandler.UpdateTelegramID)

	orders := api.Group("/orders", auth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Post("/:id/create-payment", orderHandler.CreatePayment)
}

package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/richstorm00/saas-starter/internal/adapter/handler/http"
	"github.com/richstorm00/saas-starter/internal/config"
	"github.com/richstorm00/saas-starter/internal/middleware/auth"
	"github.com/richstorm00/saas-starter/internal/usecase"
	"github.com/richstorm00/saas-starter/pkg/logger"
	"go.uber.org/zap"
)

// Services are the usecases the HTTP routes expose.
type Services struct {
	Ingestor     *usecase.EventIngestor
	Projector    *usecase.PlanProjector
	Cancellation *usecase.CancellationService
	Portal       *usecase.PortalService
	Sync         *usecase.SyncService
	Catalog      *usecase.CatalogService
	Checkout     *usecase.CheckoutService
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	services *Services
	metrics  http.Handler
}

// NewServer builds the echo server and its routes. metrics may be nil.
func NewServer(cfg *config.Config, log *zap.Logger, services *Services, metrics http.Handler) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	logger.WithEchoLogger(e, log)
	e.Validator = handlers.NewRequestValidator()

	origins := cfg.Server.HTTP.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.Service.AppURL}
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(logger.NewEchoRequestLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}))

	s := &Server{
		config:   cfg,
		logger:   log,
		echo:     e,
		services: services,
		metrics:  metrics,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() error {
	healthHandler := handlers.NewHealthHandler(s.config.Service.Name)
	s.echo.GET("/health", healthHandler.Health)
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	webhookHandler := handlers.NewWebhookHandler(s.logger, s.services.Ingestor)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.services.Projector, s.services.Cancellation)
	portalHandler := handlers.NewPortalHandler(s.logger, s.services.Portal)
	sessionHandler := handlers.NewSessionHandler(s.logger, s.services.Sync)
	productHandler := handlers.NewProductHandler(s.logger, s.services.Catalog)
	checkoutHandler := handlers.NewCheckoutHandler(s.logger, s.services.Checkout)

	jwtMiddleware, err := auth.JWTMiddleware(auth.JWTConfig{
		Key:               s.config.Service.Clerk.JWTKey,
		Logger:            s.logger,
		AuthorizedParties: s.config.Service.Clerk.AuthorizedParties,
	})
	if err != nil {
		return fmt.Errorf("failed to configure session verification: %w", err)
	}

	api := s.echo.Group("/api")

	// Public routes
	stripe := api.Group("/stripe")
	stripe.POST("/webhook", webhookHandler.HandleWebhook)
	stripe.GET("/products", productHandler.GetProducts)

	// Protected routes (require a Clerk session)
	protectedStripe := stripe.Group("", jwtMiddleware)
	protectedStripe.POST("/create-checkout-session", checkoutHandler.CreateCheckoutSession)
	protectedStripe.POST("/cancel-subscription", subscriptionHandler.CancelSubscription)
	protectedStripe.POST("/customer-portal", portalHandler.CreatePortalSession)
	protectedStripe.GET("/verify-session", sessionHandler.VerifySession)
	protectedStripe.POST("/update-clerk-metadata", sessionHandler.UpdateMetadata)

	user := api.Group("/user", jwtMiddleware)
	user.GET("/current-plan", subscriptionHandler.GetCurrentPlan)

	return nil
}

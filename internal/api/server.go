package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/hkhalili/shopflow/internal/config"
	"github.com/hkhalili/shopflow/internal/database"
	"github.com/hkhalili/shopflow/internal/gateways"
	"github.com/hkhalili/shopflow/internal/handlers"
	"github.com/hkhalili/shopflow/internal/models"
	"github.com/hkhalili/shopflow/internal/outbox"
	"github.com/hkhalili/shopflow/internal/repository"
	"github.com/hkhalili/shopflow/internal/service"
	"github.com/hkhalili/shopflow/pkg/kafka"
	"github.com/hkhalili/shopflow/pkg/logger"
	"github.com/hkhalili/shopflow/pkg/middleware"
)

// Server wires the HTTP API, the outbox processor and the event consumer
type Server struct {
	config          *config.Config
	logger          logger.Logger
	router          *mux.Router
	httpServer      *http.Server
	db              *database.Database
	redis           *redis.Client
	outboxProcessor *outbox.Processor
	kafkaProducer   *kafka.Producer
	kafkaConsumer   *kafka.Consumer

	paymentRateLimiter *middleware.RateLimiterMiddleware
	zarinpalGateway    *gateways.ZarinpalGateway

	orderService   *service.OrderService
	paymentService *service.PaymentService
	invoiceService *service.InvoiceService
	cartService    *service.CartService
	promoService   *service.PromoService
	shippingCalc   *service.ShippingCalculator
}

// NewServer creates a new API server with the given configuration and logger.
func NewServer(cfg *config.Config, logger logger.Logger) *Server {
	r := mux.NewRouter()
	db, err := database.New(cfg, logger)

	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		panic(err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		panic(err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Repositories
	orderRepo := repository.NewOrderRepository(db, logger)
	paymentRepo := repository.NewPaymentRepository(db, logger)
	invoiceRepo := repository.NewInvoiceRepository(db, logger)
	promoRepo := repository.NewPromoRepository(db, logger)
	productRepo := repository.NewProductRepository(db, logger)
	cartRepo := repository.NewCartRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)

	if err != nil {
		logger.Error("Failed to create Kafka producer", "error", err)
		panic(err)
	}

	// Payment gateways; the registry is built here and injected, nothing
	// registers globally.
	registry := gateways.NewRegistry(cfg.Payments.DefaultGateway)
	zarinpalGateway := gateways.NewZarinpalGateway(gateways.ZarinpalConfig{
		MerchantID:      cfg.Payments.ZarinpalMerchantID,
		CallbackBaseURL: cfg.Payments.CallbackBaseURL,
		Sandbox:         cfg.Payments.ZarinpalSandbox,
		Timeout:         cfg.Payments.GatewayTimeout,
	}, logger)
	registry.Register(zarinpalGateway)
	registry.Register(gateways.NewManualGateway(logger))

	// Services
	shippingCalc := service.NewShippingCalculator()
	promoService := service.NewPromoService(promoRepo, logger)
	orderService := service.NewOrderService(orderRepo, cartRepo, productRepo, promoRepo, shippingCalc, logger)
	invoiceService := service.NewInvoiceService(
		invoiceRepo,
		orderRepo,
		productRepo,
		service.NewInvoicePDFRenderer(cfg.Invoices.PDFDir),
		logger,
	)
	paymentService := service.NewPaymentService(paymentRepo, orderService, invoiceService, registry, logger)
	cartService := service.NewCartService(cartRepo, productRepo, promoService, redisClient, logger)

	// Outbox processor publishes every event type to the events topic
	outboxProcessor := outbox.NewProcessor(outboxRepo, outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       20,
		MaxRetries:      5,
	}, logger)

	kafkaHandler := outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.EventsTopic, logger)
	outboxProcessor.RegisterHandler(models.EventOrderCreated, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventOrderStatusChanged, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventPaymentCompleted, kafkaHandler)
	outboxProcessor.RegisterHandler(models.EventInvoiceGenerated, kafkaHandler)

	// The consumer closes the invoice loop: replayed payment completions
	// regenerate any invoice that failed inline.
	kafkaConsumer, err := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topics:        []string{cfg.Kafka.EventsTopic},
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
	}, logger)

	if err != nil {
		logger.Error("Failed to create Kafka consumer", "error", err)
		panic(err)
	}

	paymentEventsHandler := handlers.NewPaymentEventsHandler(invoiceService, logger)
	kafkaConsumer.RegisterHandler(cfg.Kafka.EventsTopic, paymentEventsHandler)

	// Adaptive global limit plus a per-IP limit on the payment routes,
	// where every allowed request can become a provider call.
	paymentRateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:   100,
		GlobalMaxRate:     50,
		GlobalMinRate:     5,
		GlobalThreshold:   0.7,
		IPMaxTokens:       10,
		IPRefillRate:      2,
		TrustForwardedFor: cfg.TrustForwardedFor,
	}, logger)

	server := &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:          logger,
		config:          cfg,
		db:              db,
		redis:           redisClient,
		outboxProcessor: outboxProcessor,
		kafkaProducer:   kafkaProducer,
		kafkaConsumer:   kafkaConsumer,

		paymentRateLimiter: paymentRateLimiter,
		zarinpalGateway:    zarinpalGateway,

		orderService:    orderService,
		paymentService:  paymentService,
		invoiceService:  invoiceService,
		cartService:     cartService,
		promoService:    promoService,
		shippingCalc:    shippingCalc,
	}

	server.setupRoutes()
	outboxProcessor.Start()

	if err := kafkaConsumer.Start(); err != nil {
		logger.Error("Failed to start Kafka consumer", "error", err)
		// Non-fatal, the API works without the retry consumer
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.outboxProcessor.Stop()
	s.paymentRateLimiter.Stop()

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Error closing Redis connection", "error", err)
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for our API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Cart
	api.HandleFunc("/cart", s.getCartHandler).Methods(http.MethodGet)
	api.HandleFunc("/cart/items", s.addCartItemHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{productId}", s.updateCartItemHandler).Methods(http.MethodPatch)
	api.HandleFunc("/cart/items/{productId}", s.removeCartItemHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart", s.clearCartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart/promo", s.applyPromoHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/merge", s.mergeCartHandler).Methods(http.MethodPost)

	// Shipping
	api.HandleFunc("/shipping/methods", s.getShippingMethodsHandler).Methods(http.MethodGet)

	// Orders
	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.listOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.getOrderHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/cancel", s.cancelOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/ship", s.shipOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/deliver", s.deliverOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/return", s.returnOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/refund", s.refundOrderHandler).Methods(http.MethodPost)

	// Payments; the limiter shields the gateway from request floods
	payments := api.PathPrefix("/payments").Subrouter()
	payments.Use(s.paymentRateLimiter.Middleware)
	payments.HandleFunc("/request", s.requestPaymentHandler).Methods(http.MethodPost)
	payments.HandleFunc("/callback/{gateway}/{paymentId}", s.paymentCallbackHandler).Methods(http.MethodGet, http.MethodPost)
	payments.HandleFunc("/{paymentId}/receipt", s.uploadReceiptHandler).Methods(http.MethodPost)
	payments.HandleFunc("/{paymentId}/approve", s.approvePaymentHandler).Methods(http.MethodPost)
	payments.HandleFunc("/order/{orderId}", s.listOrderPaymentsHandler).Methods(http.MethodGet)

	// Invoices
	api.HandleFunc("/invoices/order/{orderId}", s.getInvoiceHandler).Methods(http.MethodGet)
	api.HandleFunc("/invoices/order/{orderId}/pdf", s.getInvoicePDFHandler).Methods(http.MethodGet)

	// Operational endpoints
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
}

// Middleware for logging requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}

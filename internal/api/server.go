package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"investment-platform/internal/auth"
	"investment-platform/internal/billing"
	"investment-platform/internal/cache"
	"investment-platform/internal/database"
	"investment-platform/internal/email"
	"investment-platform/internal/esign"
	"investment-platform/internal/events"
	"investment-platform/internal/kyc"
	"investment-platform/internal/ledger"
	"investment-platform/internal/logging"
	"investment-platform/internal/vault"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	repo           *database.Repository
	eventBus       *events.EventBus
	ledgerService  *ledger.Service
	config         ServerConfig
	authService    *auth.Service
	authEnabled    bool
	vaultClient    *vault.Client
	cacheService   *cache.CacheService
	billingService *billing.StripeService
	scheduler      *billing.Scheduler
	kycService     *kyc.Service
	esignService   *esign.Service
	emailService   *email.Service
	rateLimiter    *RateLimiter
	hub            *WSHub
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
}

// Services bundles the optional service dependencies. Nil members disable
// the routes that need them.
type Services struct {
	Auth    *auth.Service
	Vault   *vault.Client
	Cache   *cache.CacheService
	Billing *billing.StripeService
	Dunning *billing.Scheduler
	KYC     *kyc.Service
	ESign   *esign.Service
	Email   *email.Service
	Logger  zerolog.Logger
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	eventBus *events.EventBus,
	ledgerService *ledger.Service,
	services Services,
) *Server {
	// Set Gin mode
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(traceMiddleware(services.Logger))

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:         router,
		repo:           repo,
		eventBus:       eventBus,
		ledgerService:  ledgerService,
		config:         config,
		authService:    services.Auth,
		authEnabled:    services.Auth != nil,
		vaultClient:    services.Vault,
		cacheService:   services.Cache,
		billingService: services.Billing,
		scheduler:      services.Dunning,
		kycService:     services.KYC,
		esignService:   services.ESign,
		emailService:   services.Email,
		rateLimiter:    NewRateLimiter(300, time.Minute),
		hub:            NewWSHub(),
	}

	server.setupRoutes()

	// Broadcast every bus event to connected websocket clients
	eventBus.SubscribeAll(server.hub.BroadcastEvent)
	go server.hub.Run()

	return server
}

// traceMiddleware attaches a per-request trace ID and logger to the request
// context and echoes the trace ID back to the caller.
func traceMiddleware(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _ := logging.WithTraceContext(c.Request.Context(), base)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", logging.TraceIDFromContext(ctx))
		c.Next()
	}
}

// rateLimitMiddleware rate limits requests by endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	// Webhook endpoints are driven by external providers with their own
	// retry schedules; throttling them just multiplies redeliveries.
	noRateLimitPaths := map[string]bool{
		"/api/webhooks/billing": true,
		"/api/webhooks/kyc":     true,
		"/api/webhooks/esign":   true,
		"/ws":                   true,
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if noRateLimitPaths[path] {
			c.Next()
			return
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint. Please slow down.",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	s.router.Use(s.rateLimitMiddleware())

	// Auth routes (public, no authentication required)
	if s.authEnabled {
		authHandlers := auth.NewHandlers(s.authService)
		authGroup := s.router.Group("/api/auth")
		authHandlers.RegisterRoutes(authGroup, s.authService.GetJWTManager())
	}

	// Auth status endpoint (always available)
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"auth_enabled":    s.authEnabled,
			"billing_enabled": s.billingService != nil,
			"kyc_enabled":     s.kycService != nil && s.kycService.IsConfigured(),
			"esign_enabled":   s.esignService != nil && s.esignService.IsConfigured(),
		})
	})

	// Provider webhooks carry their own HMAC signatures instead of JWTs
	webhooks := s.router.Group("/api/webhooks")
	{
		webhooks.POST("/billing", s.handleBillingWebhook)
		webhooks.POST("/kyc", s.handleKYCWebhook)
		webhooks.POST("/esign", s.handleESignWebhook)
	}

	// WebSocket endpoint (token via query param, validated in the handler)
	s.router.GET("/ws", s.handleWebSocket)

	// API routes (protected when auth is enabled)
	api := s.router.Group("/api")
	if s.authEnabled {
		api.Use(auth.Middleware(s.authService.GetJWTManager()))
	}

	// Mutating fund-administration routes require manager or above
	manager := api.Group("")
	if s.authEnabled {
		manager.Use(auth.RequireRole(database.RoleManager))
	}

	{
		// Structure endpoints
		api.GET("/structures", s.handleGetStructures)
		api.GET("/structures/:id", s.handleGetStructure)
		api.GET("/structures/:id/ownership", s.handleGetOwnership)
		api.GET("/structures/:id/investors", s.handleGetStructureInvestors)
		api.GET("/structures/:id/ladder", s.handleGetLadder)
		api.GET("/structures/:id/investments", s.handleGetInvestments)
		api.GET("/structures/:id/capital-calls", s.handleGetCapitalCalls)
		api.GET("/structures/:id/distributions", s.handleGetDistributions)

		manager.POST("/structures", s.handleCreateStructure)
		manager.PUT("/structures/:id", s.handleUpdateStructure)
		manager.DELETE("/structures/:id", s.handleDeleteStructure)
		manager.POST("/structures/:id/investors", s.handleAddStructureInvestor)
		manager.PUT("/structures/:id/investors/:memberID", s.handleUpdateStructureInvestor)
		manager.DELETE("/structures/:id/investors/:memberID", s.handleRemoveStructureInvestor)
		manager.POST("/structures/:id/ladder/default", s.handleCreateDefaultLadder)
		manager.PUT("/structures/:id/ladder", s.handleReplaceLadder)

		// Investment endpoints
		api.GET("/investments/:id", s.handleGetInvestment)
		manager.POST("/investments", s.handleCreateInvestment)
		manager.PUT("/investments/:id", s.handleUpdateInvestment)
		manager.POST("/investments/:id/exit", s.handleExitInvestment)

		// Capital call endpoints
		api.GET("/capital-calls/:id", s.handleGetCapitalCall)
		api.GET("/capital-calls/:id/allocations", s.handleGetCapitalCallAllocations)
		api.GET("/my/capital-calls", s.handleGetMyCapitalCallAllocations)
		manager.POST("/capital-calls", s.handleCreateCapitalCall)
		manager.POST("/capital-calls/:id/send", s.handleSendCapitalCall)
		manager.POST("/capital-calls/:id/payments", s.handleRecordPayment)

		// Distribution endpoints
		api.GET("/distributions/:id", s.handleGetDistribution)
		api.GET("/distributions/:id/allocations", s.handleGetDistributionAllocations)
		manager.POST("/distributions", s.handleCreateDistribution)
		manager.POST("/distributions/:id/apply-waterfall", s.handleApplyWaterfall)
		manager.POST("/distributions/:id/allocations", s.handleCreateDistributionAllocations)
		manager.POST("/distributions/:id/mark-paid", s.handleMarkDistributionPaid)

		// Document endpoints
		api.GET("/documents/:id", s.handleGetDocument)
		api.GET("/entities/:kind/:entityID/documents", s.handleGetEntityDocuments)
		manager.POST("/documents", s.handleCreateDocument)
		manager.DELETE("/documents/:id", s.handleDeleteDocument)
		manager.POST("/documents/:id/esign", s.handleSendForSignature)
		manager.POST("/documents/:id/esign/void", s.handleVoidEnvelope)

		// Conversation endpoints
		api.GET("/conversations", s.handleGetConversations)
		api.POST("/conversations", s.handleCreateConversation)
		api.GET("/conversations/:id/messages", s.handleGetMessages)
		api.POST("/conversations/:id/messages", s.handleSendMessage)
		api.POST("/conversations/:id/read", s.handleMarkMessagesRead)

		// Billing endpoints
		api.GET("/billing/tiers", s.handleGetTiers)
		api.POST("/billing/checkout", s.handleCreateCheckout)
		api.POST("/billing/portal", s.handleCreatePortal)
		api.POST("/billing/cancel", s.handleCancelSubscription)

		// KYC endpoints
		api.POST("/kyc/start", s.handleStartKYC)
		api.GET("/kyc/token", s.handleGetKYCToken)
	}

	// Admin endpoints
	admin := s.router.Group("/api/admin")
	if s.authEnabled {
		admin.Use(auth.Middleware(s.authService.GetJWTManager()))
		admin.Use(auth.RequireAdmin())
	}
	{
		admin.GET("/users", s.handleGetUsers)
		admin.PUT("/users/:id/role", s.handleUpdateUserRole)
		admin.GET("/settings", s.handleGetSettings)
		admin.PUT("/settings", s.handleSetSetting)
		admin.GET("/events", s.handleGetSystemEvents)
		admin.GET("/scheduler/status", s.handleSchedulerStatus)
		admin.POST("/scheduler/run", s.handleSchedulerRun)
		admin.GET("/cache/stats", s.handleCacheStats)
		admin.GET("/vault/health", s.handleVaultHealth)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dbHealthy := true
	if err := s.repo.HealthCheck(ctx); err != nil {
		dbHealthy = false
	}

	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
		"time":     time.Now().Format(time.RFC3339),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// handleServiceError maps ledger errors onto HTTP status codes
func (s *Server) handleServiceError(c *gin.Context, err error) {
	var validationErr *ledger.ValidationError
	var conflictErr *ledger.ConflictError
	var notFoundErr *ledger.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   true,
			"message": "validation failed",
			"errors":  validationErr.Errors,
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   true,
			"code":    conflictErr.Code,
			"message": conflictErr.Message,
		})
	case errors.As(err, &notFoundErr):
		errorResponse(c, http.StatusNotFound, notFoundErr.Error())
	default:
		logger := logging.FromContext(c.Request.Context())
		logger.Error().Err(err).
			Str("path", c.Request.URL.Path).Msg("internal error")
		errorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}

// getUserID returns the user ID from the context, or a fixed ID when auth
// is disabled (local development)
func (s *Server) getUserID(c *gin.Context) string {
	if !s.authEnabled {
		return "00000000-0000-0000-0000-000000000000"
	}
	return auth.GetUserID(c)
}

// getUserIDRequired returns the user ID from the context and sends error if not authenticated
func (s *Server) getUserIDRequired(c *gin.Context) (string, bool) {
	userID := s.getUserID(c)
	if userID == "" && s.authEnabled {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "UNAUTHORIZED",
			"message": "authentication required",
		})
		return "", false
	}
	return userID, true
}

// Package api provides the HTTP API server of the MDM catalog.
// It uses the Echo framework to serve the REST endpoints under /api, plus
// /health, /metrics and the Swagger UI under /docs.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "evalgo.org/mdm/docs" // Import generated docs
	"evalgo.org/mdm/internal/config"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/validation"
	"evalgo.org/mdm/internal/version"
)

// Permissions checked on catalog routes. Admins hold every permission.
const (
	PermCatalogWrite  = "catalog.write"
	PermCatalogDelete = "catalog.delete"
)

// Server represents the MDM API server.
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	services *Services
}

// New creates a new API server instance.
func New(cfg *config.Config, services *Services) *Server {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Validator = validation.New()

	server := &Server{
		echo:     e,
		config:   cfg,
		services: services,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     s.config.Security.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
		}))
	}

	s.echo.Use(middleware.RequestID())
	s.echo.Use(logging.Middleware())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logging.FromContext(c.Request().Context()).WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("request")
			return nil
		},
	}))

	if s.services.Metrics != nil {
		s.echo.Use(s.services.Metrics.Middleware())
	}

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	s.echo.Use(ValidateContentType)
	s.echo.Use(ValidateAcceptHeader)
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)
	if s.services.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.services.Metrics.Handler()))
	}

	mw := s.services.AuthMW
	write := mw.RequirePermission(PermCatalogWrite)
	del := mw.RequirePermission(PermCatalogDelete)

	api := s.echo.Group("/api")

	// Public routes
	authRoutes := api.Group("/auth")
	authRoutes.POST("/login", s.login)
	authRoutes.POST("/register", s.register)
	authRoutes.POST("/refresh-token", s.refreshToken)
	authRoutes.POST("/logout", s.logout)

	loc := api.Group("/localizations")
	loc.GET("/languages", s.listLanguages)
	loc.GET("/:lang", s.getLocalizationBundle)

	// Everything below requires a valid token
	p := api.Group("", mw.Protect)

	p.GET("/auth/me", s.me)
	p.POST("/auth/refresh-permissions", s.refreshPermissions)
	p.PUT("/auth/profile", s.updateProfile)
	p.GET("/auth/users", s.listUsers, mw.RequireAdmin)
	p.PUT("/auth/users/:id/access", s.updateUserAccess, ValidateIDFormat, mw.RequireAdmin)

	p.POST("/localizations", s.upsertLocalization, write)

	attributes := p.Group("/attributes")
	attributes.GET("", s.listAttributes)
	attributes.POST("", s.createAttribute, write)
	attributes.GET("/:id", s.getAttribute, ValidateIDFormat)
	attributes.PUT("/:id", s.updateAttribute, ValidateIDFormat, write)
	attributes.DELETE("/:id", s.deleteAttribute, ValidateIDFormat, del)
	attributes.GET("/:id/groups", s.getAttributeGroupsOf, ValidateIDFormat)
	attributes.PUT("/:id/groups", s.setAttributeGroups, ValidateIDFormat, write)

	groups := p.Group("/attributeGroups")
	groups.GET("", s.listAttributeGroups)
	groups.POST("", s.createAttributeGroup, write)
	groups.GET("/:id", s.getAttributeGroup, ValidateIDFormat)
	groups.PUT("/:id", s.updateAttributeGroup, ValidateIDFormat, write)
	groups.DELETE("/:id", s.deleteAttributeGroup, ValidateIDFormat, del)

	categories := p.Group("/categories")
	categories.GET("", s.listCategories)
	categories.POST("", s.createCategory, write)
	categories.GET("/by-itemtype/:itemTypeId", s.categoriesByItemType)
	categories.GET("/:id", s.getCategory, ValidateIDFormat)
	categories.PUT("/:id", s.updateCategory, ValidateIDFormat, write)
	categories.DELETE("/:id", s.deleteCategory, ValidateIDFormat, del)

	families := p.Group("/families")
	families.GET("", s.listFamilies)
	families.POST("", s.createFamily, write)
	families.GET("/by-category/:categoryId", s.familiesByCategory)
	families.GET("/:id", s.getFamily, ValidateIDFormat)
	families.PUT("/:id", s.updateFamily, ValidateIDFormat, write)
	families.DELETE("/:id", s.deleteFamily, ValidateIDFormat, del)

	itemTypes := p.Group("/ItemTypes")
	itemTypes.GET("", s.listItemTypes)
	itemTypes.POST("", s.createItemType, write)
	itemTypes.GET("/navbar", s.navbarItemTypes)
	itemTypes.GET("/code/:code", s.getItemTypeByCode)
	itemTypes.GET("/:id", s.getItemType, ValidateIDFormat)
	itemTypes.GET("/:id/required-attributes", s.requiredAttributes, ValidateIDFormat)
	itemTypes.PUT("/:id", s.updateItemType, ValidateIDFormat, write)
	itemTypes.DELETE("/:id", s.deleteItemType, ValidateIDFormat, del)

	associations := p.Group("/associations")
	associations.GET("", s.listAssociations)
	associations.POST("", s.createAssociation, write)
	associations.GET("/:id", s.getAssociation, ValidateIDFormat)
	associations.PUT("/:id", s.updateAssociation, ValidateIDFormat, write)
	associations.DELETE("/:id", s.deleteAssociation, ValidateIDFormat, del)

	items := p.Group("/items")
	items.GET("", s.listItems)
	items.POST("", s.createItem, write)
	items.GET("/:id", s.getItem, ValidateIDFormat)
	items.PUT("/:id", s.updateItem, ValidateIDFormat, write)
	items.DELETE("/:id", s.deleteItem, ValidateIDFormat, del)

	relationships := p.Group("/relationships")
	relationships.GET("", s.listRelationships)
	relationships.POST("", s.createRelationship, write)
	relationships.GET("/entity/:entityType/:entityId", s.relationshipsByEntity)
	relationships.GET("/:id", s.getRelationship, ValidateIDFormat)
	relationships.PUT("/:id", s.updateRelationship, ValidateIDFormat, write)
	relationships.PATCH("/:id/status", s.changeRelationshipStatus, ValidateIDFormat, write)
	relationships.DELETE("/:id", s.deleteRelationship, ValidateIDFormat, del)

	relTypes := p.Group("/relationship-types")
	relTypes.GET("", s.listRelationshipTypes)
	relTypes.POST("", s.createRelationshipType, write)
	relTypes.GET("/:id", s.getRelationshipType, ValidateIDFormat)
	relTypes.PUT("/:id", s.updateRelationshipType, ValidateIDFormat, write)
	relTypes.DELETE("/:id", s.deleteRelationshipType, ValidateIDFormat, del)

	p.GET("/history", s.queryHistory)
	p.GET("/history/:entityId", s.entityHistory)

	p.GET("/stats", s.getStatistics)

	integrityRoutes := p.Group("/integrity", mw.RequireAdmin)
	integrityRoutes.GET("/scan", s.integrityScan)
	integrityRoutes.POST("/repair", s.integrityRepair)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	logging.Default().WithFields(logrus.Fields{
		"address": addr,
		"backend": s.config.Storage.Backend,
		"debug":   s.config.Server.Debug,
		"version": version.Version,
	}).Info("starting MDM API server")

	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	if s.config.Server.TLSEnabled {
		return s.echo.StartTLS(addr, s.config.Server.TLSCert, s.config.Server.TLSKey)
	}

	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Default().Info("shutting down MDM API server")

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	if err := s.services.Storage.Close(); err != nil {
		return fmt.Errorf("error closing storage: %w", err)
	}

	logging.Default().Info("server shutdown complete")
	return nil
}

// healthCheck handles health check requests.
//
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) healthCheck(c echo.Context) error {
	info, err := s.services.Storage.GetDatabaseInfo(c.Request().Context())
	if err != nil {
		logging.FromContext(c.Request().Context()).WithError(err).Warn("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  "veritabanı bağlantısı kurulamadı",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "mdm",
		"version":  version.Version,
		"backend":  info.Backend,
		"database": info.Name,
		"documents": map[string]interface{}{
			"total":   info.DocCount,
			"deleted": info.DocDelCount,
		},
	})
}

// ServeHTTP allows Server to implement http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

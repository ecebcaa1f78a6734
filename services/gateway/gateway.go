package gateway

import (
	"net/http"
	"strings"

	"sheetpilot-backend/lib/bot"
	"sheetpilot-backend/lib/telemetry"
	"sheetpilot-backend/services/auth"
	"sheetpilot-backend/services/keychain"
	"sheetpilot-backend/services/timesheet"

	"github.com/gin-gonic/gin"
)

var tracer = telemetry.Tracer("sheetpilot.services.gateway")

const sessionContextKey = "session"

// Service is the HTTP surface in front of the auth, keychain and
// timesheet services.
type Service struct {
	auth      auth.Service
	keychain  keychain.Service
	timesheet timesheet.Service
	router    *bot.Router
}

func NewService(authService auth.Service, kc keychain.Service, ts timesheet.Service, router *bot.Router) Service {
	return Service{
		auth:      authService,
		keychain:  kc,
		timesheet: ts,
		router:    router,
	}
}

// Handler builds the full route table on a fresh engine.
func (s Service) Handler() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.POST("/api/login", s.handleLogin)

	api := engine.Group("/api", s.requireSession())
	{
		api.POST("/logout", s.handleLogout)
		api.GET("/me", s.handleMe)

		api.POST("/credentials", s.handleSetCredentials)
		api.GET("/credentials", s.handleListCredentials)
		api.DELETE("/credentials/:service", s.handleDeleteCredentials)

		api.POST("/timesheet", s.handleSaveDraft)
		api.GET("/timesheet/drafts", s.handleListDrafts)
		api.PUT("/timesheet/:id", s.handleUpdateDraft)
		api.DELETE("/timesheet/:id", s.handleDeleteDraft)
		api.POST("/timesheet/submit", s.handleSubmit)
		api.POST("/timesheet/reset-failed", s.handleResetFailed)
		api.GET("/timesheet/export", s.handleExport)

		api.GET("/archive", s.handleArchive)
		api.GET("/failed", s.handleFailed)

		api.GET("/quarters", s.handleQuarters)
		api.GET("/quarters/resolve", s.handleResolveQuarter)
	}

	return engine
}

// requireSession validates the bearer token against the session
// store and stashes the session on the request context.
func (s Service) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		session, ok := s.auth.Validate(c.Request.Context(), parts[1])
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			c.Abort()
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

func currentSession(c *gin.Context) auth.Session {
	value, exists := c.Get(sessionContextKey)
	if !exists {
		return auth.Session{}
	}
	return value.(auth.Session)
}

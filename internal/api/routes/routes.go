package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cvitapilot/cvitapilot/internal/api/handlers"
	"github.com/cvitapilot/cvitapilot/internal/api/middleware"
)

type Deps struct {
	Auth       middleware.Authenticator
	Health     *handlers.HealthHandler
	AuthH      *handlers.AuthHandler
	Account    *handlers.AccountHandler
	CV         *handlers.CVHandler
	Sections   *handlers.SectionHandler
	Export     *handlers.ExportHandler
	Tutorial   *handlers.TutorialHandler
	Suggestion *handlers.SuggestionHandler
	Admin      *handlers.AdminHandler
	WS         *handlers.WSHandler // nil when Redis pub/sub is unavailable
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", d.Health.Ping)
	r.GET("/health", d.Health.Health)

	// signed links carry their own authorisation
	r.GET("/files/*object", d.Export.File)

	pub := r.Group("/auth")
	pub.POST("/register", d.AuthH.Register)
	pub.POST("/login", d.AuthH.Login)
	pub.POST("/refresh", d.AuthH.Refresh)
	pub.GET("/verify", d.AuthH.Verify)
	pub.POST("/verify", d.AuthH.Verify)
	pub.POST("/resend", d.AuthH.Resend)
	pub.POST("/password/forgot", d.AuthH.ForgotPassword)
	pub.POST("/password/reset", d.AuthH.ResetPassword)
	pub.GET("/google", d.AuthH.GoogleLogin)
	pub.GET("/google/callback", d.AuthH.GoogleCallback)
	pub.POST("/exchange", d.AuthH.Exchange)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	auth.POST("/auth/logout", d.AuthH.Logout)
	auth.GET("/auth/sessions", d.AuthH.ListSessions)
	auth.DELETE("/auth/sessions", d.AuthH.RevokeAll)
	auth.DELETE("/auth/sessions/:session_id", d.AuthH.RevokeSession)

	auth.GET("/account", d.Account.Me)
	auth.PATCH("/account", d.Account.Update)
	auth.DELETE("/account", d.Account.Delete)
	auth.PUT("/account/password", d.Account.ChangePassword)

	auth.GET("/cvs", d.CV.List)
	auth.POST("/cvs", d.CV.Create)
	auth.POST("/cvs/import", d.CV.Import)
	auth.GET("/cvs/:id", d.CV.Get)
	auth.PATCH("/cvs/:id", d.CV.Rename)
	auth.DELETE("/cvs/:id", d.CV.Delete)
	auth.POST("/cvs/:id/actions", d.CV.Apply)
	auth.POST("/cvs/:id/duplicate", d.CV.Duplicate)
	auth.GET("/cvs/:id/json", d.CV.ExportJSON)

	auth.POST("/cvs/:id/sections/:section", d.Sections.Add)
	auth.PUT("/cvs/:id/sections/:section/order", d.Sections.Reorder)
	auth.PUT("/cvs/:id/sections/:section/selected", d.Sections.SelectAll)
	auth.PUT("/cvs/:id/sections/:section/items/:item_id", d.Sections.Update)
	auth.DELETE("/cvs/:id/sections/:section/items/:item_id", d.Sections.Remove)
	auth.POST("/cvs/:id/sections/:section/items/:item_id/toggle", d.Sections.Toggle)

	auth.GET("/cvs/:id/preview", d.Export.Preview)
	auth.GET("/cvs/:id/export.pdf", d.Export.PDF)
	auth.POST("/cvs/:id/exports", d.Export.Enqueue)
	auth.GET("/cvs/:id/exports", d.Export.List)
	auth.GET("/exports/:export_id", d.Export.Get)
	auth.GET("/exports/:export_id/events", d.Export.Events)

	auth.POST("/cvs/:id/suggestions/summary", d.Suggestion.Summary)

	auth.GET("/tutorial", d.Tutorial.State)
	auth.POST("/tutorial/next", d.Tutorial.Next)
	auth.POST("/tutorial/back", d.Tutorial.Back)
	auth.POST("/tutorial/skip", d.Tutorial.Skip)
	auth.POST("/tutorial/complete", d.Tutorial.Complete)
	auth.POST("/tutorial/reset", d.Tutorial.Reset)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/cleanup", d.Admin.Cleanup)

	// WebSocket
	if d.WS != nil {
		auth.GET("/ws/exports/:export_id", d.WS.ExportProgress)
	}
}

// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/handler"
	"github.com/ngconnect/marketplace-api/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers account and token endpoints. Register, login,
// refresh and logout operate without a session; /api/users/me requires
// a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/api/users")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh-token", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/api/users", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterListings registers listing endpoints. Browsing is public and
// may be wrapped in a response cache; everything that writes requires
// a valid access token.
func RegisterListings(e *echo.Echo, h *handler.ListingHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	public := e.Group("/api")
	if cache != nil {
		public.Use(cache)
	}
	public.GET("/listings", h.List)
	public.GET("/listings/:id", h.GetByID)
	public.GET("/categories", h.ListCategories)

	auth := e.Group("/api", middleware.JWTAuth(jwtSecret))
	auth.POST("/create-listing", h.CreateListing)
	auth.PUT("/edit-listing/:id", h.EditListing)
	auth.GET("/my-listings", h.Mine)
	auth.POST("/create-job", h.CreateJob)
	auth.PUT("/edit-job/:id", h.EditJob)
}

// RegisterRequests registers listing request endpoints. Every route
// requires a valid access token; finer ownership checks live in the
// handlers.
func RegisterRequests(e *echo.Echo, h *handler.RequestHandler, jwtSecret string) {
	g := e.Group("/api/requests", middleware.JWTAuth(jwtSecret))
	g.POST("", h.Create)
	g.POST("/message", h.SendMessage)
	g.GET("/by-listing-id/:listingId", h.ByListing)
	g.GET("/by-user-id/:userId", h.ByUser)
	g.GET("/conversation/:requestId", h.Conversation)
	g.GET("/:id", h.GetByID)
}

// RegisterUploads registers the listing image upload endpoint.
func RegisterUploads(e *echo.Echo, h *handler.UploadHandler, jwtSecret string) {
	g := e.Group("/api", middleware.JWTAuth(jwtSecret))
	g.POST("/listings/:id/images", h.UploadImages)
}

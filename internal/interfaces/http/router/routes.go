package router

import (
	"github.com/krbiz/backend/internal/interfaces/http/handler"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
)

// Handlers bundles every API handler
type Handlers struct {
	Sessions *handler.SessionHandler
	Orders   *handler.OrderHandler
	Runs     *handler.RunHandler
	Settings *handler.SettingsHandler
}

// SessionRoutes serves everything scoped to one reconciliation session
func SessionRoutes(h Handlers) *DomainGroup {
	sessions := NewDomainGroup("sessions", "/sessions")
	sessions.POST("", h.Sessions.Create)

	session := sessions.Group("session", "/:"+middleware.SessionParam).Use(middleware.SessionScope())
	session.DELETE("", h.Sessions.Delete)

	session.GET("/orders", h.Orders.ListOrders)
	session.POST("/orders", h.Orders.UploadOrders)
	session.DELETE("/orders/:name", h.Orders.DeleteOrder)

	session.GET("/delivery", h.Orders.GetDelivery)
	session.PUT("/delivery", h.Orders.UploadDelivery)
	session.DELETE("/delivery", h.Orders.ClearDelivery)

	session.POST("/merge", h.Runs.Merge)
	session.POST("/delivery-form", h.Runs.DeliveryForm)
	session.POST("/reconcile", h.Runs.Reconcile)
	session.POST("/backfill", h.Runs.Backfill)
	session.POST("/run", h.Runs.Run)
	session.GET("/outputs/:name", h.Runs.Download)
	return sessions
}

// SettingsRoutes serves the user configuration
func SettingsRoutes(h *handler.SettingsHandler) *DomainGroup {
	settings := NewDomainGroup("settings", "/settings")
	settings.GET("/raw", h.ListRaw)
	settings.GET("/raw/:key", h.GetRaw)
	settings.DELETE("/raw/:key", h.Reset)
	settings.POST("/reset", h.ResetAll)

	settings.GET("/platforms", h.GetPlatforms)
	settings.GET("/platforms/export", h.ExportPlatforms)
	settings.POST("/platforms/import", h.ImportPlatforms)

	settings.GET("/match-keys", h.GetMatchKeys)
	settings.POST("/match-keys", h.AddMatchKey)
	settings.DELETE("/match-keys/:column", h.DeleteMatchKey)

	settings.GET("/report-schemas", h.GetReportSchemas)
	settings.PUT("/report-schemas", h.PutReportSchemas)

	settings.GET("/delivery-format", h.GetDeliveryFormat)
	settings.PUT("/delivery-format", h.PutDeliveryFormat)
	return settings
}

// RegisterAPI registers every API group on r
func RegisterAPI(r *Router, h Handlers) *Router {
	return r.Register(SessionRoutes(h)).Register(SettingsRoutes(h.Settings))
}

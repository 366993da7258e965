package routes

import (
	"meetclub_go/controllers"
	"meetclub_go/services"
	"meetclub_go/services/websocket"

	"github.com/gofiber/fiber/v2"
)

// Deps carries the shared service instances the routes are wired against.
type Deps struct {
	Store    *services.AttendanceStore
	Stats    *services.StatsService
	Importer *services.Importer
	LiveView *services.LiveView
	Health   *services.HealthService
	WSHub    *websocket.Hub
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Deps) {
	// Initialize controllers
	memberController := &controllers.MemberController{}
	sessionController := controllers.NewSessionController(deps.Store)
	checkinController := controllers.NewCheckinController(deps.Store)
	statisticsController := controllers.NewStatisticsController(deps.Stats)
	importController := controllers.NewAttendanceImportController(deps.Importer)
	liveController := controllers.NewLiveController(deps.LiveView, deps.Store)
	healthController := controllers.NewHealthController(deps.Health)
	wsController := controllers.NewWebSocketController(deps.WSHub)

	// API group
	api := app.Group("/api")

	// Health
	api.Get("/health", healthController.GetHealth)

	// Member management routes
	members := api.Group("/members")
	members.Get("/", memberController.GetMembers)
	members.Get("/:id", memberController.GetMember)
	members.Post("/", memberController.CreateMember)
	members.Put("/:id", memberController.UpdateMember)
	members.Delete("/:id", memberController.DeleteMember)

	// Session calendar routes
	sessions := api.Group("/sessions")
	sessions.Get("/", sessionController.GetSessions)
	sessions.Post("/", sessionController.CreateSession)
	sessions.Patch("/:id/status", sessionController.UpdateSessionStatus)
	sessions.Get("/:date/checkins", checkinController.ListByDate)

	// Check-in routes
	checkins := api.Group("/checkins")
	checkins.Post("/", checkinController.CreateOrUpdate)
	checkins.Get("/:date", checkinController.ListByDate)
	checkins.Get("/:date/export", checkinController.ExportLegacyCSV)
	checkins.Delete("/:member_id/:date", checkinController.Delete)

	// Statistics routes
	statistics := api.Group("/statistics")
	statistics.Get("/members/:id", statisticsController.GetMemberStats)
	statistics.Get("/export", statisticsController.ExportStatistics)

	// Bulk import routes
	importGroup := api.Group("/import")
	importGroup.Post("/attendance-summary", importController.Import)
	importGroup.Get("/jobs/:id", importController.GetJob)

	// Live dashboard routes (optimistic mutation layer)
	live := api.Group("/live")
	live.Put("/date", liveController.SetDate)
	live.Get("/checkins", liveController.GetCheckins)
	live.Post("/mark", liveController.Mark)
	live.Delete("/checkins/:member_id", liveController.Remove)
	live.Put("/visibility", liveController.SetVisibility)

	// WebSocket progress feed
	ws := api.Group("/ws")
	ws.Get("/stats", wsController.GetWebSocketStats)
	app.Get("/ws/progress", wsController.WebSocketHandler())
}

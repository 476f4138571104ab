// Package httptransport wires the HTTP surface: gin router, middleware
// chain, and every handler, grounded on the teacher's router.go shape —
// generalized from two webhook-CRUD route groups into the automation-core
// surface (connections, schedules, jobs, validation rules, history).
package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sparvidata/automation-core/internal/authn"
	"github.com/sparvidata/automation-core/internal/history"
	"github.com/sparvidata/automation-core/internal/orchestrator"
	"github.com/sparvidata/automation-core/internal/repository"
	"github.com/sparvidata/automation-core/internal/schedule"
	"github.com/sparvidata/automation-core/internal/statustracker"
	"github.com/sparvidata/automation-core/internal/transport/http/handler"
	"github.com/sparvidata/automation-core/internal/transport/http/middleware"
)

// Dependencies collects every collaborator the router's handlers need.
// The composition root builds one of these and passes it to NewRouter.
type Dependencies struct {
	Connections          repository.ConnectionRepository
	Schedules            *schedule.Manager
	Orchestrator         *orchestrator.Orchestrator
	Tracker              *statustracker.Tracker
	History              *history.Service
	ValidationRules      repository.ValidationRuleRepository
	NotificationSettings repository.NotificationSettingsRepository
	Verifier             *authn.Verifier
	Logger               *slog.Logger
}

func NewRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Security())

	connHandler := handler.NewConnectionHandler(deps.Connections, deps.Logger)
	scheduleHandler := handler.NewScheduleHandler(deps.Schedules, deps.Logger)
	jobHandler := handler.NewJobHandler(deps.Orchestrator, deps.Tracker, deps.Logger)
	validationHandler := handler.NewValidationHandler(deps.ValidationRules, deps.Logger)
	historyHandler := handler.NewHistoryHandler(deps.History, deps.Logger)
	notificationHandler := handler.NewNotificationHandler(deps.NotificationSettings, deps.Logger)

	api := r.Group("/v1", middleware.Auth(deps.Verifier))

	connections := api.Group("/connections")
	connections.POST("", connHandler.Create)
	connections.GET("", connHandler.List)
	connections.GET("/:id", connHandler.GetByID)
	connections.DELETE("/:id", connHandler.Delete)
	connections.POST("/:id/default", connHandler.SetDefault)

	connections.GET("/:id/schedule", scheduleHandler.Get)
	connections.PUT("/:id/schedule", scheduleHandler.Update)

	connections.POST("/:id/jobs", jobHandler.Trigger)
	connections.GET("/:id/jobs/summary", jobHandler.Summary)

	connections.GET("/:id/validation-rules", validationHandler.ListForConnection)

	connections.GET("/:id/freshness", historyHandler.Freshness)
	connections.GET("/:id/refresh-suggestion", historyHandler.RefreshSuggestion)

	jobs := api.Group("/jobs")
	jobs.POST("/:jobId/cancel", jobHandler.Cancel)

	rules := api.Group("/validation-rules")
	rules.POST("", validationHandler.Create)
	rules.DELETE("/:id", validationHandler.Delete)

	notifications := api.Group("/notification-settings")
	notifications.GET("", notificationHandler.Get)
	notifications.PUT("", notificationHandler.Update)

	return r
}

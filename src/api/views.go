package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"reportscheduler/src/api/controllers"
	"reportscheduler/src/api/handlers"
	"reportscheduler/src/clients/mail"
	"reportscheduler/src/config"
	"reportscheduler/src/database"
	"reportscheduler/src/repositories"
	"reportscheduler/src/services"
)

type Server struct {
	Router  *chi.Mux
	Handler *handlers.Handler
}

func NewServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	db, err := database.SetupDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	schedules := repositories.NewScheduledReportRepository(db)
	runs := repositories.NewScheduledReportRunRepository(db)
	savedReports := repositories.NewSavedReportRepository(db)

	recurrence := services.NewRecurrenceService()
	reports := services.NewReportService(db)
	mailClient := mail.NewClient(cfg)
	executor := services.NewExecutorService(schedules, runs, savedReports, reports, mailClient, recurrence)

	controller := controllers.NewScheduledReportsController(schedules, runs, savedReports, recurrence, executor)
	handler := handlers.NewHandler(cfg, controller, logger)

	server := &Server{
		Router:  chi.NewRouter(),
		Handler: handler,
	}
	server.InitRoutes()
	return server, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Get("/alive", handlers.Healthcheck)

	s.Router.Route("/api/schedules", func(r chi.Router) {
		r.Get("/", s.Handler.GetAllScheduledReports)
		r.Post("/", s.Handler.CreateScheduledReport)
		r.Get("/{id}", s.Handler.GetScheduledReportByID)
		r.Put("/{id}", s.Handler.UpdateScheduledReport)
		r.Delete("/{id}", s.Handler.DeleteScheduledReport)
		r.Post("/{id}/toggle", s.Handler.ToggleScheduledReport)
		r.Post("/{id}/run", s.Handler.RunScheduledReportNow)
		r.Get("/{id}/runs", s.Handler.GetScheduledReportRuns)
	})
}

func NewHTTPServer(server *Server, port string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		Handler:      server,
	}
}

package worker

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"reportscheduler/src/clients/mail"
	"reportscheduler/src/config"
	"reportscheduler/src/database"
	"reportscheduler/src/repositories"
	"reportscheduler/src/scheduler"
	"reportscheduler/src/services"
	"reportscheduler/src/utils"
	"reportscheduler/src/worker/controllers"
	"reportscheduler/src/worker/handlers"
)

type Server struct {
	Router  *chi.Mux
	Handler *handlers.Handler
	poller  *scheduler.ScheduledTask
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

	controller := controllers.NewSchedulerController(schedules, executor, cfg.Scheduler.StaleTimeout())
	handler := handlers.NewHandler(controller, logger, cfg.Scheduler.BatchSize)

	server := &Server{
		Router:  chi.NewRouter(),
		Handler: handler,
	}
	server.InitRoutes()

	// The periodic driver: every tick claims a batch and executes it. Other
	// worker instances may tick at the same time; the claim query keeps them
	// from overlapping.
	poller, err := scheduler.NewScheduledTask(cfg.Scheduler.PollSpec, func() {
		pollCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		pollCtx = utils.WithLogger(pollCtx, logger)

		result, err := controller.ProcessDueReports(pollCtx, cfg.Scheduler.BatchSize)
		if err != nil {
			logger.WithError(err).Error("scheduler poll failed")
			return
		}
		if result.Claimed > 0 {
			logger.WithFields(logrus.Fields{
				"claimed":   result.Claimed,
				"succeeded": result.Succeeded,
				"failed":    result.Failed,
			}).Info("processed due scheduled reports")
		}
	})
	if err != nil {
		return nil, err
	}
	server.poller = poller

	return server, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) InitRoutes() {
	s.Router.Get("/alive", handlers.Healthcheck)
	s.Router.Route("/api/scheduler", func(r chi.Router) {
		r.Post("/poll", s.Handler.Poll)
		r.Post("/schedules/{id}/run", s.Handler.RunSchedule)
	})
}

// Stop cancels the periodic poll driver.
func (s *Server) Stop() {
	if s.poller != nil {
		s.poller.Cancel()
	}
}

func NewHTTPServer(server *Server, port string) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 11 * time.Minute,
		Handler:      server,
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"reportscheduler/src/utils"
	"reportscheduler/src/worker/controllers"
)

type Handler struct {
	Controller controllers.SchedulerControllerI
	Logger     *logrus.Logger
	BatchSize  int
}

func NewHandler(controller controllers.SchedulerControllerI, logger *logrus.Logger, batchSize int) *Handler {
	return &Handler{
		Controller: controller,
		Logger:     logger,
		BatchSize:  batchSize,
	}
}

func (h *Handler) respond(w http.ResponseWriter, _ *http.Request, data interface{}, status int) {
	res, err := json.Marshal(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(res)
}

func (h *Handler) HandleErrors(w http.ResponseWriter, err error) {
	utils.WriteError(w, err)
}

func Healthcheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

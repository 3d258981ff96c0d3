package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth"
	"github.com/sirupsen/logrus"

	"reportscheduler/src/api/controllers"
	"reportscheduler/src/config"
	"reportscheduler/src/utils"
)

type Handler struct {
	Controller controllers.ScheduledReportsControllerI
	TokenAuth  *jwtauth.JWTAuth
	Logger     *logrus.Logger
}

func NewHandler(cfg *config.Config, controller controllers.ScheduledReportsControllerI, logger *logrus.Logger) *Handler {
	return &Handler{
		Controller: controller,
		TokenAuth:  jwtauth.New("HS256", []byte(cfg.Service.JWTSecret), nil),
		Logger:     logger,
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

// authenticate verifies the bearer token and extracts the caller's
// organization scope and subject. Every schedule operation is scoped by the
// organization_id claim.
func (h *Handler) authenticate(r *http.Request) (uint, string, error) {
	raw := jwtauth.TokenFromHeader(r)
	if raw == "" {
		return 0, "", utils.Unauthorized("auth token not detected")
	}

	token, err := h.TokenAuth.Decode(raw)
	if err != nil {
		return 0, "", utils.Unauthorized("invalid auth token")
	}

	claim, ok := token.Get("organization_id")
	if !ok {
		return 0, "", utils.Unauthorized("organization_id claim missing")
	}

	var organizationID uint
	switch v := claim.(type) {
	case float64:
		organizationID = uint(v)
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, "", utils.Unauthorized("invalid organization_id claim")
		}
		organizationID = uint(parsed)
	default:
		return 0, "", utils.Unauthorized("invalid organization_id claim")
	}

	return organizationID, token.Subject(), nil
}

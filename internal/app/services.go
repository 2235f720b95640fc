package app

import (
	"github.com/harentsoaR/dermacare-api/internal/config"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/metrics"
	"github.com/harentsoaR/dermacare-api/internal/services"
	"github.com/harentsoaR/dermacare-api/internal/store"
	"github.com/harentsoaR/dermacare-api/internal/utils"
)

// Services is the full service graph over one store.
type Services struct {
	Sessions      *services.SessionManager
	Profiles      *services.ProfileService
	Doctors       *services.DoctorService
	Reports       *services.ReportService
	Engine        *services.AppointmentEngine
	Dashboard     *services.Dashboard
	Notifications *services.NotificationService
}

func NewServices(cfg *config.Config, st store.Store, log *logger.Logger, m *metrics.Metrics) (*Services, error) {
	tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, nil)
	if err != nil {
		return nil, err
	}

	doctors := services.NewDoctorService(st)
	reports := services.NewReportService(st, log)
	notifications := services.NewNotificationService(cfg.NotifyWebhookURL, log, m)
	engine := services.NewAppointmentEngine(st, services.NewProfileGate(st), doctors, reports, notifications, log, m)

	return &Services{
		Sessions:      services.NewSessionManager(st, tokens, cfg.RefreshTokenTTL, log, m),
		Profiles:      services.NewProfileService(st, st, log),
		Doctors:       doctors,
		Reports:       reports,
		Engine:        engine,
		Dashboard:     services.NewDashboard(engine),
		Notifications: notifications,
	}, nil
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/metrics"
	"github.com/harentsoaR/dermacare-api/internal/models"
)

// Notifier tells the other party of an appointment that it changed.
type Notifier interface {
	AppointmentChanged(apt models.Appointment, recipientID string)
}

// AppointmentEvent is the webhook payload.
type AppointmentEvent struct {
	AppointmentID string                   `json:"appointmentId"`
	RecipientID   string                   `json:"recipientId"`
	Status        models.AppointmentStatus `json:"status"`
	Message       string                   `json:"message"`
	OccurredAt    time.Time                `json:"occurredAt"`
}

// NotificationService posts appointment events to a webhook. Delivery is
// fire-and-forget so it never blocks the API response.
type NotificationService struct {
	webhookURL string
	client     *http.Client
	log        *logrus.Entry
	metrics    *metrics.Metrics
	wg         sync.WaitGroup
}

func NewNotificationService(webhookURL string, log *logger.Logger, m *metrics.Metrics) *NotificationService {
	return &NotificationService{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log.WithComponent("notifications"),
		metrics:    m,
	}
}

func (s *NotificationService) AppointmentChanged(apt models.Appointment, recipientID string) {
	if s.webhookURL == "" {
		s.log.WithField("appointment_id", apt.ID).Debug("notification not sent: no webhook configured")
		return
	}

	ev := AppointmentEvent{
		AppointmentID: apt.ID,
		RecipientID:   recipientID,
		Status:        apt.Status,
		Message:       describe(apt),
		OccurredAt:    apt.UpdatedAt,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.post(ev); err != nil {
			s.metrics.RecordNotificationFailure()
			s.log.WithError(err).WithField("appointment_id", ev.AppointmentID).Warn("failed to deliver notification")
			return
		}
		s.log.WithField("appointment_id", ev.AppointmentID).Debug("notification delivered")
	}()
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (s *NotificationService) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *NotificationService) post(ev AppointmentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func describe(apt models.Appointment) string {
	switch apt.Status {
	case models.StatusPending:
		return "New appointment request received."
	case models.StatusConfirmed:
		return "Your appointment has been confirmed."
	case models.StatusCompleted:
		return "Your appointment has been marked as completed."
	case models.StatusCancelled:
		if apt.DeclineReason != "" {
			return "Your appointment was declined: " + apt.DeclineReason
		}
		return "Your appointment has been cancelled."
	}
	return "Your appointment was updated."
}

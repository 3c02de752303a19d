package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/metrics"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/notify"
	"github.com/iliyamo/workday-booking/internal/queue"
	"github.com/iliyamo/workday-booking/internal/repository"
)

// DeliveryParts is the number of materials a project delivery consists of:
// the site link, the ad creatives, the instructions and a final message.
const DeliveryParts = 4

var partTitles = [DeliveryParts]string{
	"🌐 <b>Your website link</b>",
	"📱 <b>Ad creatives</b>",
	"📄 <b>Instructions</b>",
	"💬 <b>Final message</b>",
}

var partHints = [DeliveryParts]string{
	"Waiting for the ad creatives.",
	"Waiting for the instructions.",
	"Waiting for the final message.",
	"",
}

// OperatorNotifier sends a text to the operator chat.
type OperatorNotifier interface {
	Notify(ctx context.Context, text string)
}

// DeliveryService forwards finished project materials to a client and
// completes the reservation once every part has been sent.
type DeliveryService struct {
	reservations ReservationStore
	jobs         JobStore
	mirror       Mirror
	events       EventPublisher
	notifier     notify.Notifier
	operator     OperatorNotifier
	now          func() time.Time
	log          *logrus.Entry
}

func NewDeliveryService(reservations ReservationStore, jobs JobStore, mirror Mirror, events EventPublisher,
	notifier notify.Notifier, operator OperatorNotifier, log *logrus.Entry) *DeliveryService {
	return &DeliveryService{
		reservations: reservations,
		jobs:         jobs,
		mirror:       mirror,
		events:       events,
		notifier:     notifier,
		operator:     operator,
		now:          time.Now,
		log:          log,
	}
}

// StartDelivery opens a delivery job for a fully paid reservation.
func (s *DeliveryService) StartDelivery(ctx context.Context, reservationID uint64) (*DeliveryJob, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, notFound(err, "reservation %d", reservationID)
	}
	if res.Status != model.StatusFinalConfirmed {
		return nil, fmt.Errorf("%w: delivery needs a fully paid reservation, this one is %s",
			model.ErrValidation, res.Status)
	}
	job := DeliveryJob{
		ID:            uuid.NewString(),
		ReservationID: res.ID,
		ClientID:      res.ClientID,
		SlotDate:      res.SlotDate,
		Total:         DeliveryParts,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save delivery job: %w", err)
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "reservation_id": res.ID}).Info("delivery started")
	return &job, nil
}

// DeliverResult reports the progress of a job after a part was sent.
type DeliverResult struct {
	Job       DeliveryJob `json:"job"`
	Delivered int         `json:"delivered"`
	Total     int         `json:"total"`
	Completed bool        `json:"completed"`
	Next      string      `json:"next,omitempty"`
}

// DeliverPart forwards one part to the client.  The fourth part completes
// the reservation and closes the job.
func (s *DeliveryService) DeliverPart(ctx context.Context, jobID string, c notify.Content) (*DeliverResult, error) {
	if err := validateContent(c); err != nil {
		return nil, err
	}
	job, err := s.jobs.Get(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		return nil, fmt.Errorf("%w: delivery job %s", model.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}

	n, err := s.jobs.Incr(ctx, jobID, 1)
	if err != nil {
		return nil, notFound(err, "delivery job %s", jobID)
	}
	if n > job.Total {
		_, _ = s.jobs.Incr(ctx, jobID, -1)
		return nil, fmt.Errorf("%w: all parts already delivered", model.ErrValidation)
	}
	if err := s.notifier.Deliver(ctx, job.ClientID, partContent(n, c)); err != nil {
		if _, derr := s.jobs.Incr(ctx, jobID, -1); derr != nil {
			s.log.WithError(derr).WithField("job_id", jobID).Error("cannot roll back delivery counter")
		}
		return nil, fmt.Errorf("forward part %d: %w", n, err)
	}
	metrics.DeliveryParts.Inc()
	job.Delivered = n

	out := &DeliverResult{Job: *job, Delivered: n, Total: job.Total}
	if n < job.Total {
		out.Next = partHints[n-1]
		return out, nil
	}
	if err := s.complete(ctx, job); err != nil {
		return nil, err
	}
	out.Completed = true
	return out, nil
}

func (s *DeliveryService) complete(ctx context.Context, job *DeliveryJob) error {
	ok, err := s.reservations.Complete(ctx, job.ReservationID)
	if err != nil {
		return fmt.Errorf("complete reservation %d: %w", job.ReservationID, err)
	}
	if err := s.jobs.Delete(ctx, job.ID); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Warn("delivery job not deleted")
	}
	if !ok {
		return nil
	}
	res, err := s.reservations.Get(ctx, job.ReservationID)
	if err != nil {
		return err
	}
	metrics.DeliveriesCompleted.Inc()
	metrics.ReservationTransitions.WithLabelValues(string(model.StatusCompleted)).Inc()
	s.mirror.PushStatus(res.ClientID, res.SlotDate, model.StatusCompleted)

	ev := eventFor(queue.EventReservationCompleted, res, nil, "", "")
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).Warn("event publish failed")
	}
	if err := s.notifier.Deliver(ctx, res.ClientID, notify.Text(
		"🎉 <b>Your project is fully delivered!</b>\n\n"+
			"All materials have been sent. If you have questions, contact support from the menu.")); err != nil {
		s.log.WithError(err).WithField("chat_id", res.ClientID).Warn("client notification failed")
	}
	s.operator.Notify(ctx, fmt.Sprintf("Project delivered to client %d\nDate: %s",
		res.ClientID, calendar.Label(res.SlotDate)))
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "reservation_id": res.ID}).Info("delivery completed")
	return nil
}

func validateContent(c notify.Content) error {
	switch c.Kind {
	case notify.KindText:
		if c.Text == "" {
			return fmt.Errorf("%w: text is required", model.ErrValidation)
		}
	case notify.KindPhoto, notify.KindDocument:
		if c.FileID == "" {
			return fmt.Errorf("%w: file_id is required", model.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown content kind %q", model.ErrValidation, c.Kind)
	}
	return nil
}

// partContent decorates the operator's content with the title of its
// position.  Files keep a caption naming what they are.
func partContent(n int, c notify.Content) notify.Content {
	switch c.Kind {
	case notify.KindPhoto:
		c.Caption = "📱 <b>Ad creative</b>"
	case notify.KindDocument:
		c.Caption = "📄 <b>Instructions</b>"
	default:
		c.Text = partTitles[n-1] + "\n\n" + c.Text
	}
	return c
}

// notFound maps a store miss to model.ErrNotFound and passes other errors
// through.
func notFound(err error, format string, args ...any) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: "+format, append([]any{model.ErrNotFound}, args...)...)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrJobNotFound)
}

package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"vetclinic/models"
	"vetclinic/monitoring"
	"vetclinic/utils"
)

const (
	ChannelSMS = "sms"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Sender delivers one text message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type twilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) Sender {
	return &twilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

func (s *twilioSender) Send(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}

// logSender only writes the message to the log. It stands in for Twilio
// when no credentials are configured.
type logSender struct{}

func NewLogSender() Sender { return logSender{} }

func (logSender) Send(ctx context.Context, to, body string) (string, error) {
	log.Printf("SMS to %s: %s", to, body)
	return "", nil
}

// ReminderService texts clients the day before a confirmed appointment.
type ReminderService struct {
	repo   models.Repository
	sender Sender
	loc    *time.Location
	now    func() time.Time
	cron   *cron.Cron
}

func NewReminderService(repo models.Repository, sender Sender, loc *time.Location) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		repo:   repo,
		sender: sender,
		loc:    loc,
		now:    time.Now,
	}
}

// StartScheduler runs SendDailyReminders on schedule, a standard five-field
// cron expression evaluated in the service's time zone.
func (s *ReminderService) StartScheduler(schedule string) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.SendDailyReminders(context.Background()); err != nil {
			log.Printf("Reminder run failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	log.Printf("Reminder scheduler started (%s)", schedule)
	return nil
}

func (s *ReminderService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// ReminderResult counts the outcome of one run.
type ReminderResult struct {
	Sent    int
	Failed  int
	Skipped int
}

// SendDailyReminders texts every client with a confirmed appointment for
// tomorrow and logs each attempt.
func (s *ReminderService) SendDailyReminders(ctx context.Context) (ReminderResult, error) {
	var result ReminderResult
	tomorrow := models.DateOf(utils.BeginningOfDay(s.now().In(s.loc))).AddDays(1)

	appointments, err := s.repo.AppointmentsOn(ctx, tomorrow, models.StatusConfirmed)
	if err != nil {
		return result, err
	}
	log.Printf("Sending reminders for %d appointment(s) on %s", len(appointments), tomorrow)

	for _, a := range appointments {
		entry := s.remind(ctx, a)
		switch entry.Status {
		case StatusSent:
			result.Sent++
		case StatusFailed:
			result.Failed++
		default:
			result.Skipped++
		}
		monitoring.RemindersSent.WithLabelValues(entry.Status).Inc()

		if err := s.repo.LogNotification(ctx, entry); err != nil {
			log.Printf("Failed to log reminder for appointment %d: %v", a.ID, err)
		}
	}
	return result, nil
}

func (s *ReminderService) remind(ctx context.Context, a models.Appointment) *models.NotificationLog {
	entry := &models.NotificationLog{
		AppointmentID: a.ID,
		Channel:       ChannelSMS,
		Message:       ReminderText(a),
		SentAt:        s.now().UTC(),
	}

	if !utils.ValidatePhone(a.Phone) {
		entry.Status = StatusSkipped
		entry.Error = fmt.Sprintf("invalid phone number %q", a.Phone)
		return entry
	}

	sid, err := s.sender.Send(ctx, utils.NormalizePhone(a.Phone), entry.Message)
	if err != nil {
		log.Printf("Failed to send reminder to %s: %v", a.Phone, err)
		entry.Status = StatusFailed
		entry.Error = err.Error()
		return entry
	}
	if sid != "" {
		log.Printf("Reminder sent to %s, SID: %s", a.Phone, sid)
	}
	entry.Status = StatusSent
	return entry
}

func ReminderText(a models.Appointment) string {
	service := "your appointment"
	if a.Service != nil {
		service = a.Service.Name
	}
	return fmt.Sprintf("Hello, %s! Reminder: %s for %s is booked for %s.",
		a.ClientName, service, a.PetName, a.DesiredDate)
}

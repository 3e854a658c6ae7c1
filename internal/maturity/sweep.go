// Package maturity runs the payment deadline sweep: it cancels registrations
// and subevent applications left unpaid past their maturity date and sends
// reminders shortly before the deadline.
package maturity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/config"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/notify"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/reminder"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/service"
	"github.com/google/uuid"
)

// Report summarises one pass.
type Report struct {
	Users                 int `json:"users"`
	RegistrationsCanceled int `json:"registrations_canceled"`
	ApplicationsCanceled  int `json:"applications_canceled"`
	RolesReduced          int `json:"roles_reduced"`
	RemindersSent         int `json:"reminders_sent"`
	RemindersSkipped      int `json:"reminders_skipped"`
	Failures              int `json:"failures"`
}

func (r *Report) add(o Report) {
	r.RegistrationsCanceled += o.RegistrationsCanceled
	r.ApplicationsCanceled += o.ApplicationsCanceled
	r.RolesReduced += o.RolesReduced
}

// Sweeper runs the maturity passes. Users are processed one at a time,
// each in its own unit of work; a failing user is logged and skipped.
type Sweeper struct {
	tx        repository.TxRunner
	workflow  *service.RegistrationService
	sender    notify.Sender
	reminders reminder.Log
	clock     clock.Clock
	logger    *slog.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(tx repository.TxRunner, workflow *service.RegistrationService, sender notify.Sender, reminders reminder.Log, clk clock.Clock, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		tx:        tx,
		workflow:  workflow,
		sender:    sender,
		reminders: reminders,
		clock:     clk,
		logger:    logger,
	}
}

func (s *Sweeper) waitingUsers(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		ids, err = uow.UsersWithWaitingApplication(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users waiting for payment: %w", err)
	}
	return ids, nil
}

// CancelOverdue cancels what stayed unpaid longer than
// CancelRegistrationAfterMaturityDays after its maturity date. A nil
// setting disables the pass.
//
// An overdue roles application cancels the whole registration and ends
// processing of that user. Otherwise overdue subevents applications are
// canceled one by one; a user left without subevents loses the roles priced
// by subevents, or the whole registration if no fixed-fee role remains.
func (s *Sweeper) CancelOverdue(ctx context.Context, settings config.Settings) (Report, error) {
	var rep Report
	if settings.CancelRegistrationAfterMaturityDays == nil {
		return rep, nil
	}
	cutoff := day(clock.AddDays(s.clock.Now(), -*settings.CancelRegistrationAfterMaturityDays))

	ids, err := s.waitingUsers(ctx)
	if err != nil {
		return rep, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Users++

		var (
			out    service.Outbox
			result Report
		)
		err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
			var err error
			result, err = s.cancelOverdueUser(ctx, uow, settings, id, cutoff, &out)
			return err
		})
		if err != nil {
			rep.Failures++
			s.logger.ErrorContext(ctx, "maturity cancel failed", "user_id", id, "err", err)
			continue
		}
		rep.add(result)
		s.workflow.Deliver(ctx, &out)
	}

	s.logger.InfoContext(ctx, "maturity cancel pass finished",
		"users", rep.Users,
		"registrations_canceled", rep.RegistrationsCanceled,
		"applications_canceled", rep.ApplicationsCanceled,
		"failures", rep.Failures,
	)
	return rep, nil
}

func (s *Sweeper) cancelOverdueUser(ctx context.Context, uow repository.UnitOfWork, settings config.Settings, userID uuid.UUID, cutoff time.Time, out *service.Outbox) (Report, error) {
	var res Report
	system := service.SystemActor()

	usr, err := uow.GetUser(ctx, userID)
	if err != nil {
		return res, err
	}

	for _, app := range usr.WaitingForPayment(model.KindRoles) {
		if overdue(app, cutoff) {
			if _, err := s.workflow.CancelRegistrationInTx(ctx, uow, settings, usr.ID, model.StateCanceledNotPaid, system, out); err != nil {
				return res, err
			}
			res.RegistrationsCanceled++
			return res, nil
		}
	}

	for _, app := range usr.WaitingForPayment(model.KindSubevents) {
		if !overdue(app, cutoff) {
			continue
		}
		usr, err = s.workflow.CancelSubeventsApplicationInTx(ctx, uow, settings, app.ID, model.StateCanceledNotPaid, system, out)
		if err != nil {
			return res, err
		}
		res.ApplicationsCanceled++
	}
	if res.ApplicationsCanceled == 0 || len(usr.Subevents) > 0 {
		return res, nil
	}

	roles, err := uow.Roles(ctx)
	if err != nil {
		return res, err
	}
	var fixed []uuid.UUID
	for _, r := range roles {
		if usr.HasRole(r.ID) && !r.FeeFromSubevents() {
			fixed = append(fixed, r.ID)
		}
	}
	if len(fixed) == 0 {
		if _, err := s.workflow.CancelRegistrationInTx(ctx, uow, settings, usr.ID, model.StateCanceledNotPaid, system, out); err != nil {
			return res, err
		}
		res.RegistrationsCanceled++
		return res, nil
	}
	if _, err := s.workflow.UpdateRolesInTx(ctx, uow, settings, usr.ID, fixed, system, out); err != nil {
		return res, err
	}
	res.RolesReduced++
	return res, nil
}

// SendReminders notifies users whose waiting application matures exactly
// MaturityReminderDays from today. A nil setting disables the pass.
// Reminders already sent today are skipped.
func (s *Sweeper) SendReminders(ctx context.Context, settings config.Settings) (Report, error) {
	var rep Report
	if settings.MaturityReminderDays == nil {
		return rep, nil
	}
	today := day(s.clock.Now())
	target := clock.AddDays(today, *settings.MaturityReminderDays)

	ids, err := s.waitingUsers(ctx)
	if err != nil {
		return rep, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Users++

		var usr *model.User
		err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
			var err error
			usr, err = uow.GetUser(ctx, id)
			return err
		})
		if err != nil {
			rep.Failures++
			s.logger.ErrorContext(ctx, "maturity reminder: load user failed", "user_id", id, "err", err)
			continue
		}

		for _, app := range usr.WaitingForPayment("") {
			if app.MaturityDate == nil || !day(*app.MaturityDate).Equal(target) {
				continue
			}
			s.remind(ctx, settings, usr, app, today, &rep)
		}
	}

	s.logger.InfoContext(ctx, "maturity reminder pass finished",
		"users", rep.Users,
		"sent", rep.RemindersSent,
		"skipped", rep.RemindersSkipped,
		"failures", rep.Failures,
	)
	return rep, nil
}

func (s *Sweeper) remind(ctx context.Context, settings config.Settings, usr *model.User, app model.Application, today time.Time, rep *Report) {
	claimed, err := s.reminders.Claim(ctx, app.ID, today)
	if err != nil {
		rep.Failures++
		s.logger.ErrorContext(ctx, "maturity reminder: claim failed", "application_id", app.ID, "err", err)
		return
	}
	if !claimed {
		rep.RemindersSkipped++
		return
	}

	msg := notify.Message{
		Recipient: usr.Email,
		Template:  notify.TemplateMaturityReminder,
		Variables: map[string]string{
			"name":          usr.DisplayName(),
			"seminar_name":  settings.SeminarName,
			"maturity_date": settings.FormatDate(*app.MaturityDate),
		},
	}
	if err := s.sender.SendTemplated(ctx, msg); err != nil {
		rep.Failures++
		s.logger.ErrorContext(ctx, "maturity reminder: send failed", "application_id", app.ID, "recipient", usr.Email, "err", err)
		if err := s.reminders.Release(ctx, app.ID, today); err != nil {
			s.logger.ErrorContext(ctx, "maturity reminder: release failed", "application_id", app.ID, "err", err)
		}
		return
	}
	rep.RemindersSent++
}

// day reduces t to its calendar date so that maturity dates stored as
// DATE compare equal regardless of time zone.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// overdue reports whether the maturity date lies strictly before cutoff.
func overdue(app model.Application, cutoff time.Time) bool {
	return app.MaturityDate != nil && day(*app.MaturityDate).Before(cutoff)
}

// Package lifecycle validates submissions, persists them and drives ledger
// effects when operators resolve them.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reviewcash/backend/internal/ledger"
	"github.com/reviewcash/backend/internal/models"
	"github.com/reviewcash/backend/internal/notify"
	"github.com/reviewcash/backend/internal/ratelimit"
	"github.com/reviewcash/backend/internal/store"
)

// Limiter is the cooldown contract used for work submissions.
type Limiter interface {
	CheckAndRecord(ctx context.Context, userID string, platform models.Platform) (ratelimit.Decision, error)
	Release(ctx context.Context, userID string, platform models.Platform, claimedAt time.Time) error
	Last(ctx context.Context, userID string) (map[models.Platform]time.Time, error)
}

// Recorder counts lifecycle outcomes.
type Recorder interface {
	ObserveSubmission(kind, outcome string)
	ObserveResolution(kind, resolution, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string, string)          {}
func (nopRecorder) ObserveResolution(string, string, string) {}

// Deps wires a Service.
type Deps struct {
	Store    store.Store
	Limiter  Limiter
	Notifier notify.Dispatcher
	Policy   Policy
	Metrics  Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

type Service struct {
	store    store.Store
	limiter  Limiter
	notifier notify.Dispatcher
	policy   Policy
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		limiter:  d.Limiter,
		notifier: d.Notifier,
		policy:   d.Policy,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      d.Now,
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submitter identifies the end user behind an inbound action.
type Submitter struct {
	ID       string
	Username string
}

type TopUpInput struct {
	User   Submitter
	Amount int64
	// Code is the payment reference; generated when empty.
	Code  string
	Phone string
}

type WithdrawalInput struct {
	User   Submitter
	Amount int64
	Bank   string
	Card   string
	Name   string
}

type WorkInput struct {
	User   Submitter
	TaskID string
	// Platform defaults to the task's type.
	Platform models.Platform
	Text     string
	Link     string
}

type TaskInput struct {
	User   Submitter
	Title  string
	Link   string
	Type   models.Platform
	Budget int64
}

// SubmitTopUp records a pending top-up awaiting payment confirmation.
func (s *Service) SubmitTopUp(ctx context.Context, in TopUpInput) (*models.Request, error) {
	if err := checkUser(in.User); err != nil {
		return nil, s.rejected(models.KindTopUp, err)
	}
	if in.Amount < s.policy.MinTopUp {
		return nil, s.rejected(models.KindTopUp, invalid("amount", "minimum top-up is %d", s.policy.MinTopUp))
	}
	if err := s.policy.checkMax("amount", in.Amount); err != nil {
		return nil, s.rejected(models.KindTopUp, err)
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = paymentCode()
	}
	req := &models.Request{
		Kind:     models.KindTopUp,
		UserID:   in.User.ID,
		Username: in.User.Username,
		Amount:   in.Amount,
		Details:  models.Details{Code: code, Phone: strings.TrimSpace(in.Phone)},
	}
	err := s.store.WithinTx(ctx, func(r store.Repos) error {
		if _, err := r.Users().Ensure(ctx, in.User.ID, in.User.Username); err != nil {
			return err
		}
		return r.Requests().Append(ctx, req)
	})
	if err != nil {
		return nil, s.failed(models.KindTopUp, fmt.Errorf("submit top-up: %w", err))
	}
	s.accepted(ctx, req, notify.EventTopUpSubmitted, "code: "+code)
	return req, nil
}

// ConfirmTopUp re-notifies operators that the user reports having paid a
// pending top-up. A top-up of another user reads as not found.
func (s *Service) ConfirmTopUp(ctx context.Context, user Submitter, id string) (*models.Request, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, invalid("topup_id", "required")
	}
	req, err := s.store.Requests().FindByID(ctx, models.KindTopUp, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != user.ID {
		return nil, fmt.Errorf("%s %s: %w", models.KindTopUp, id, ErrNotFound)
	}
	if req.Status != models.StatusPending {
		return nil, &store.AlreadyHandledError{Kind: models.KindTopUp, ID: id, Status: req.Status}
	}
	s.metrics.ObserveSubmission(string(models.KindTopUp), "confirmed")
	s.logger.Info("top-up payment reported", "request_id", req.ID, "user_id", req.UserID)
	s.notify(ctx, notify.Event{
		Kind:      notify.EventTopUpConfirmed,
		RequestID: req.ID,
		UserID:    req.UserID,
		Username:  req.Username,
		Amount:    req.Amount,
		Detail:    "code: " + req.Details.Code,
	})
	return req, nil
}

// SubmitWithdrawal records a pending withdrawal and holds its amount by
// debiting the balance in the same transaction.
func (s *Service) SubmitWithdrawal(ctx context.Context, in WithdrawalInput) (*models.Request, error) {
	if err := checkUser(in.User); err != nil {
		return nil, s.rejected(models.KindWithdrawal, err)
	}
	if in.Amount < s.policy.MinWithdraw {
		return nil, s.rejected(models.KindWithdrawal, invalid("amount", "minimum withdrawal is %d", s.policy.MinWithdraw))
	}
	if err := s.policy.checkMax("amount", in.Amount); err != nil {
		return nil, s.rejected(models.KindWithdrawal, err)
	}
	if !s.policy.bankAllowed(in.Bank) {
		return nil, s.rejected(models.KindWithdrawal, invalid("bank", "unsupported bank %q", in.Bank))
	}
	if strings.TrimSpace(in.Card) == "" {
		return nil, s.rejected(models.KindWithdrawal, invalid("card", "required"))
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, s.rejected(models.KindWithdrawal, invalid("name", "required"))
	}
	req := &models.Request{
		Kind:     models.KindWithdrawal,
		UserID:   in.User.ID,
		Username: in.User.Username,
		Amount:   in.Amount,
		Details: models.Details{
			Bank: strings.TrimSpace(in.Bank),
			Card: strings.TrimSpace(in.Card),
			Name: strings.TrimSpace(in.Name),
		},
	}
	err := s.store.WithinTx(ctx, func(r store.Repos) error {
		u, err := r.Users().Ensure(ctx, in.User.ID, in.User.Username)
		if err != nil {
			return err
		}
		if s.policy.StrictWithdraw && u.Balance < in.Amount {
			return invalid("amount", "insufficient balance")
		}
		if err := r.Requests().Append(ctx, req); err != nil {
			return err
		}
		_, err = ledger.New(r.Users()).Debit(ctx, in.User.ID, in.Amount)
		return err
	})
	if err != nil {
		if isValidation(err) {
			return nil, s.rejected(models.KindWithdrawal, err)
		}
		return nil, s.failed(models.KindWithdrawal, fmt.Errorf("submit withdrawal: %w", err))
	}
	s.accepted(ctx, req, notify.EventWithdrawalSubmitted, "bank: "+req.Details.Bank)
	return req, nil
}

// SubmitWork records a pending work submission for an active task. The
// amount is the task budget at this moment.
func (s *Service) SubmitWork(ctx context.Context, in WorkInput) (*models.Request, error) {
	if err := checkUser(in.User); err != nil {
		return nil, s.rejected(models.KindWork, err)
	}
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.Link) == "" {
		return nil, s.rejected(models.KindWork, invalid("proof", "text or link required"))
	}
	task, err := s.store.Tasks().Get(ctx, in.TaskID)
	if err != nil {
		return nil, s.rejected(models.KindWork, err)
	}
	if !task.Active() {
		return nil, s.rejected(models.KindWork, invalid("task_id", "task %s is %s", task.ID, task.Status))
	}
	platform := in.Platform
	if platform == "" {
		platform = task.Type
	}
	if _, err := models.ParsePlatform(string(platform)); err != nil {
		return nil, s.rejected(models.KindWork, invalid("platform", "%v", err))
	}

	decision, err := s.limiter.CheckAndRecord(ctx, in.User.ID, platform)
	if err != nil {
		return nil, s.failed(models.KindWork, err)
	}
	if !decision.Allowed {
		s.metrics.ObserveSubmission(string(models.KindWork), "rate_limited")
		return nil, &RateLimitedError{Platform: platform, RetryAfter: decision.RetryAfter}
	}

	req := &models.Request{
		Kind:      models.KindWork,
		UserID:    in.User.ID,
		Username:  in.User.Username,
		Amount:    task.Budget,
		CreatedAt: decision.At.UTC(),
		Details: models.Details{
			TaskID:   task.ID,
			Platform: platform,
			Text:     strings.TrimSpace(in.Text),
			Link:     strings.TrimSpace(in.Link),
		},
	}
	err = s.store.WithinTx(ctx, func(r store.Repos) error {
		if _, err := r.Users().Ensure(ctx, in.User.ID, in.User.Username); err != nil {
			return err
		}
		return r.Requests().Append(ctx, req)
	})
	if err != nil {
		if relErr := s.limiter.Release(ctx, in.User.ID, platform, decision.At); relErr != nil {
			s.logger.Error("release cooldown after failed append", "user_id", in.User.ID, "platform", platform, "error", relErr)
		}
		return nil, s.failed(models.KindWork, fmt.Errorf("submit work: %w", err))
	}
	s.accepted(ctx, req, notify.EventWorkSubmitted, fmt.Sprintf("task: %s (%s)\n%s", task.Title, platform, strings.TrimSpace(req.Details.Text+" "+req.Details.Link)))
	return req, nil
}

// PublishTask creates an active task owned by the submitter.
func (s *Service) PublishTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	if err := checkUser(in.User); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "required")
	}
	if strings.TrimSpace(in.Link) == "" {
		return nil, invalid("link", "required")
	}
	if _, err := models.ParsePlatform(string(in.Type)); err != nil {
		return nil, invalid("type", "%v", err)
	}
	if in.Budget <= 0 {
		return nil, invalid("budget", "must be positive")
	}
	if err := s.policy.checkMax("budget", in.Budget); err != nil {
		return nil, err
	}
	task := &models.Task{
		OwnerID: in.User.ID,
		Title:   strings.TrimSpace(in.Title),
		Link:    strings.TrimSpace(in.Link),
		Type:    in.Type,
		Budget:  in.Budget,
	}
	err := s.store.WithinTx(ctx, func(r store.Repos) error {
		if _, err := r.Users().Ensure(ctx, in.User.ID, in.User.Username); err != nil {
			return err
		}
		return r.Tasks().Create(ctx, task)
	})
	if err != nil {
		return nil, fmt.Errorf("publish task: %w", err)
	}
	s.notify(ctx, notify.Event{
		Kind:      notify.EventTaskPublished,
		RequestID: task.ID,
		UserID:    in.User.ID,
		Username:  in.User.Username,
		Amount:    task.Budget,
		Detail:    task.Title + "\n" + task.Link,
	})
	return task, nil
}

// TaskEdit lists the fields an operator may change. Nil fields are kept.
type TaskEdit struct {
	Title  *string
	Link   *string
	Budget *int64
}

// UpdateTask edits a task. Work already submitted keeps its amount.
func (s *Service) UpdateTask(ctx context.Context, id string, edit TaskEdit) (*models.Task, error) {
	task, err := s.store.Tasks().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if edit.Title != nil {
		if strings.TrimSpace(*edit.Title) == "" {
			return nil, invalid("title", "required")
		}
		task.Title = strings.TrimSpace(*edit.Title)
	}
	if edit.Link != nil {
		if strings.TrimSpace(*edit.Link) == "" {
			return nil, invalid("link", "required")
		}
		task.Link = strings.TrimSpace(*edit.Link)
	}
	if edit.Budget != nil {
		if *edit.Budget <= 0 {
			return nil, invalid("budget", "must be positive")
		}
		if err := s.policy.checkMax("budget", *edit.Budget); err != nil {
			return nil, err
		}
		task.Budget = *edit.Budget
	}
	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CloseTask stops a task from accepting work. Pending submissions stay
// resolvable. Closing a closed task is a no-op.
func (s *Service) CloseTask(ctx context.Context, id, admin string) (*models.Task, error) {
	task, err := s.store.Tasks().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status == models.TaskStatusClosed {
		return task, nil
	}
	task.Status = models.TaskStatusClosed
	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task closed", "task_id", id, "admin", admin)
	return task, nil
}

func (s *Service) accepted(ctx context.Context, req *models.Request, kind notify.EventKind, detail string) {
	s.metrics.ObserveSubmission(string(req.Kind), "accepted")
	s.logger.Info("request submitted", "kind", req.Kind, "request_id", req.ID, "user_id", req.UserID, "amount", req.Amount)
	s.notify(ctx, notify.Event{
		Kind:      kind,
		RequestID: req.ID,
		UserID:    req.UserID,
		Username:  req.Username,
		Amount:    req.Amount,
		Detail:    detail,
	})
}

func (s *Service) rejected(kind models.Kind, err error) error {
	s.metrics.ObserveSubmission(string(kind), "rejected")
	return err
}

func (s *Service) failed(kind models.Kind, err error) error {
	s.metrics.ObserveSubmission(string(kind), "error")
	return err
}

// notify never fails the caller.
func (s *Service) notify(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("notification dispatch failed", "event", ev.Kind, "request_id", ev.RequestID, "error", err)
	}
}

func checkUser(u Submitter) error {
	if strings.TrimSpace(u.ID) == "" {
		return invalid("user.id", "required")
	}
	return nil
}

// paymentCode returns the reference a user quotes in the payment comment.
func paymentCode() string {
	return "RC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

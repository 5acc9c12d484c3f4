package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fleet/internal/dispatch"
	"fleet/internal/domain"
	"fleet/internal/metrics"
	"fleet/internal/redis"
	"fleet/internal/repository"
)

// ApplicationService drives the onboarding state machine and admin status actions.
type ApplicationService struct {
	drivers   repository.DriverRepository
	ledger    repository.LedgerStore
	dispatch  dispatch.Client
	locks     redis.LockStoreInterface
	notifier  *NotificationService
	metrics   *metrics.Metrics
	logger    *slog.Logger
	debtLimit decimal.Decimal
	lockTTL   time.Duration
	now       func() time.Time
}

// ApplicationConfig holds the tunables of ApplicationService.
type ApplicationConfig struct {
	DefaultDebtLimit decimal.Decimal
	ApprovalLockTTL  time.Duration
}

// NewApplicationService creates a new ApplicationService. locks may be nil, in
// which case concurrent approvals rely on the status re-check alone.
func NewApplicationService(
	drivers repository.DriverRepository,
	ledger repository.LedgerStore,
	client dispatch.Client,
	locks redis.LockStoreInterface,
	notifier *NotificationService,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg ApplicationConfig,
) *ApplicationService {
	if cfg.ApprovalLockTTL <= 0 {
		cfg.ApprovalLockTTL = 30 * time.Second
	}
	return &ApplicationService{
		drivers:   drivers,
		ledger:    ledger,
		dispatch:  client,
		locks:     locks,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		debtLimit: cfg.DefaultDebtLimit,
		lockTTL:   cfg.ApprovalLockTTL,
		now:       time.Now,
	}
}

// RegistrationRequest is sent by the identity provider when an account is created.
type RegistrationRequest struct {
	Email    string
	FullName string
	Phone    string
	UID      string
}

// RegisterDriver creates the driver record for a new account.
func (s *ApplicationService) RegisterDriver(ctx context.Context, req RegistrationRequest) (*domain.Driver, error) {
	key := domain.NormalizeKey(req.Email)
	if key == "" || !strings.Contains(key, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidRegistration)
	}

	driver := domain.NewDriver(key, req.FullName, req.Phone, req.UID, s.debtLimit, s.now().UTC())
	if err := s.drivers.Create(ctx, driver); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("driver registered", "driver_key", key)
	return driver, nil
}

// SubmitApplication records the caller's onboarding application and moves them
// to pending_validation.
func (s *ApplicationService) SubmitApplication(ctx context.Context, actor domain.Principal, app domain.Application) (*domain.Driver, error) {
	key := domain.NormalizeKey(actor.Subject)
	if err := RequireDriverSelf(actor, key); err != nil {
		return nil, err
	}
	if err := validateApplication(app); err != nil {
		return nil, err
	}

	submitted := s.now().UTC()
	documents := make(map[string]string, len(app.Documents))
	for name, url := range app.Documents {
		documents[name] = url
	}
	app.Documents = documents

	var before, after domain.Driver
	err := s.ledger.WithDriverTransaction(ctx, key, func(tx repository.DriverTx) error {
		before = tx.Driver()
		if !domain.CanTransition(before.OperationalStatus, domain.StatusPendingValidation) {
			return ErrInvalidTransition
		}
		tx.Update(func(d *domain.Driver) {
			d.Application = app
			d.FullName = strings.TrimSpace(app.PersonalInfo.FullName)
			d.Phone = strings.TrimSpace(app.PersonalInfo.Phone)
			d.ApplicationStatus = domain.ApplicationPendingReview
			d.ApplicationSubmittedAt = submitted
		})
		tx.SetOperationalStatus(domain.StatusPendingValidation)
		after = tx.Driver()
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.statusChanged(ctx, before, after, actor)
	return &after, nil
}

// Approve registers the driver with the dispatch provider and activates them.
// Nothing changes locally unless the provider returned an id.
func (s *ApplicationService) Approve(ctx context.Context, actor domain.Principal, driverKey string) (*domain.Driver, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(driverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}

	if s.locks != nil {
		token, locked, err := s.locks.AcquireApprovalLock(ctx, key, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire approval lock: %w", err)
		}
		if !locked {
			s.metrics.Approval("in_progress")
			return nil, ErrApprovalInProgress
		}
		defer func() {
			if err := s.locks.ReleaseApprovalLock(context.WithoutCancel(ctx), key, token); err != nil {
				s.logger.Warn("failed to release approval lock", "driver_key", key, "error", err)
			}
		}()
	}

	driver, err := s.drivers.GetByKey(ctx, key)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if driver.OperationalStatus != domain.StatusPendingValidation {
		s.metrics.Approval("invalid_state")
		return nil, ErrInvalidTransition
	}

	externalID := driver.ExternalDispatchID
	if externalID == "" {
		externalID, err = s.dispatch.RegisterDriver(ctx, dispatch.DriverRegistration{
			Name:  driver.FullName,
			Email: driver.Key,
			Phone: driver.Phone,
		})
		if err != nil {
			s.metrics.Approval("dispatch_failed")
			s.logger.Error("dispatch registration failed, driver left pending", "driver_key", key, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrExternalDependency, err)
		}
	}

	approvedAt := s.now().UTC()
	var before, after domain.Driver
	err = s.ledger.WithDriverTransaction(ctx, key, func(tx repository.DriverTx) error {
		before = tx.Driver()
		if before.OperationalStatus != domain.StatusPendingValidation {
			return ErrInvalidTransition
		}
		tx.Update(func(d *domain.Driver) {
			d.ExternalDispatchID = externalID
			d.ApplicationStatus = domain.ApplicationApproved
			d.ApprovedAt = approvedAt
		})
		tx.SetOperationalStatus(domain.StatusActive)
		after = tx.Driver()
		return nil
	})
	if err != nil {
		s.metrics.Approval("commit_failed")
		s.logger.Error("approval not committed after dispatch registration",
			"driver_key", key,
			"external_dispatch_id", externalID,
			"error", err,
		)
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrDispatchIDInUse, externalID)
		}
		return nil, mapStoreError(err)
	}

	s.metrics.Approval("approved")
	s.statusChanged(ctx, before, after, actor)
	return &after, nil
}

// Reject closes a pending application.
func (s *ApplicationService) Reject(ctx context.Context, actor domain.Principal, driverKey string) (*domain.Driver, error) {
	return s.transition(ctx, actor, driverKey, domain.StatusRejected, func(d *domain.Driver) {
		d.ApplicationStatus = domain.ApplicationRejected
	})
}

// Suspend takes a working driver off the road.
func (s *ApplicationService) Suspend(ctx context.Context, actor domain.Principal, driverKey string) (*domain.Driver, error) {
	return s.transition(ctx, actor, driverKey, domain.StatusSuspended, nil)
}

// Restrict blocks an active driver as if they had crossed the debt limit.
func (s *ApplicationService) Restrict(ctx context.Context, actor domain.Principal, driverKey string) (*domain.Driver, error) {
	return s.transition(ctx, actor, driverKey, domain.StatusRestrictedDebt, nil)
}

// Reactivate lifts a debt restriction regardless of the balance.
// Suspended drivers cannot be reactivated.
func (s *ApplicationService) Reactivate(ctx context.Context, actor domain.Principal, driverKey string) (*domain.Driver, error) {
	return s.transition(ctx, actor, driverKey, domain.StatusActive, nil)
}

func (s *ApplicationService) transition(
	ctx context.Context,
	actor domain.Principal,
	driverKey string,
	to domain.OperationalStatus,
	mutate func(d *domain.Driver),
) (*domain.Driver, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	key := domain.NormalizeKey(driverKey)
	if key == "" {
		return nil, ErrInvalidDriverKey
	}

	var before, after domain.Driver
	err := s.ledger.WithDriverTransaction(ctx, key, func(tx repository.DriverTx) error {
		before = tx.Driver()
		// Activation from pending goes through Approve only.
		if before.OperationalStatus == domain.StatusPendingValidation && to == domain.StatusActive {
			return ErrInvalidTransition
		}
		if !domain.CanTransition(before.OperationalStatus, to) {
			return ErrInvalidTransition
		}
		if mutate != nil {
			tx.Update(mutate)
		}
		tx.SetOperationalStatus(to)
		after = tx.Driver()
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.statusChanged(ctx, before, after, actor)
	return &after, nil
}

func (s *ApplicationService) statusChanged(ctx context.Context, before, after domain.Driver, actor domain.Principal) {
	s.metrics.Transition(string(before.OperationalStatus), string(after.OperationalStatus))
	s.logger.Info("driver status changed",
		"driver_key", after.Key,
		"from", before.OperationalStatus,
		"to", after.OperationalStatus,
		"actor", actor.Subject,
	)
	s.notifier.NotifyStatusChanged(ctx, after, before.OperationalStatus)
}

// SyncResult summarizes a dispatch driver sync.
type SyncResult struct {
	Linked        int `json:"linked"`
	AlreadyLinked int `json:"alreadyLinked"`
	Unmatched     int `json:"unmatched"`
	Skipped       int `json:"skipped"`
}

// SyncDispatchDrivers links provider driver ids onto local drivers with the
// same email that have no id yet.
func (s *ApplicationService) SyncDispatchDrivers(ctx context.Context, actor domain.Principal) (*SyncResult, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	remote, err := s.dispatch.ListDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalDependency, err)
	}

	result := &SyncResult{}
	for _, rd := range remote {
		key := domain.NormalizeKey(rd.Email)
		if key == "" || rd.ID == "" {
			result.Skipped++
			continue
		}

		linked := false
		err := s.ledger.WithDriverTransaction(ctx, key, func(tx repository.DriverTx) error {
			current := tx.Driver().ExternalDispatchID
			if current != "" {
				if current != rd.ID {
					return errSkipSync
				}
				return nil
			}
			tx.Update(func(d *domain.Driver) { d.ExternalDispatchID = rd.ID })
			linked = true
			return nil
		})

		switch {
		case err == nil && linked:
			result.Linked++
		case err == nil:
			result.AlreadyLinked++
		case errors.Is(err, repository.ErrNotFound):
			result.Unmatched++
		case errors.Is(err, errSkipSync), errors.Is(err, repository.ErrAlreadyExists):
			s.logger.Warn("dispatch id not linked", "driver_key", key, "external_dispatch_id", rd.ID)
			result.Skipped++
		default:
			return nil, mapStoreError(err)
		}
	}

	s.logger.Info("dispatch drivers synced",
		"actor", actor.Subject,
		"linked", result.Linked,
		"already_linked", result.AlreadyLinked,
		"unmatched", result.Unmatched,
		"skipped", result.Skipped,
	)
	return result, nil
}

var errSkipSync = errors.New("driver linked to a different dispatch id")

func validateApplication(app domain.Application) error {
	switch {
	case strings.TrimSpace(app.PersonalInfo.FullName) == "":
		return fmt.Errorf("%w: full name is required", ErrInvalidApplication)
	case strings.TrimSpace(app.PersonalInfo.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidApplication)
	case strings.TrimSpace(app.Legal.ContractVersion) == "":
		return fmt.Errorf("%w: contract acceptance is required", ErrInvalidApplication)
	}
	return nil
}

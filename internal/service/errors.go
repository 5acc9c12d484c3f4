package service

import "errors"

var (
	// ErrPermissionDenied is returned when the caller lacks the role an operation requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidDriverKey is returned when the driver key is empty.
	ErrInvalidDriverKey = errors.New("invalid driver key")

	// ErrInvalidAmount is returned when a monetary amount is out of range.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidEvent is returned when a dispatch event is missing required fields.
	ErrInvalidEvent = errors.New("invalid dispatch event")

	// ErrInvalidApplication is returned when an onboarding application is incomplete.
	ErrInvalidApplication = errors.New("invalid application")

	// ErrInvalidRegistration is returned when a registration lacks an email.
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrInvalidSettings is returned when a settings update carries invalid values.
	ErrInvalidSettings = errors.New("invalid operational settings")

	// ErrInvalidOrderID is returned when an order ID is empty.
	ErrInvalidOrderID = errors.New("invalid order id")

	// ErrInvalidStatus is returned when a status filter is not a known operational status.
	ErrInvalidStatus = errors.New("invalid operational status")

	// ErrDriverNotFound is returned when no driver matches the key or dispatch id.
	ErrDriverNotFound = errors.New("driver not found")

	// ErrDriverExists is returned when registering a key that is already taken.
	ErrDriverExists = errors.New("driver already registered")

	// ErrDispatchIDInUse is returned when the provider id is already linked to another driver.
	ErrDispatchIDInUse = errors.New("dispatch id already linked to another driver")

	// ErrInvalidTransition is returned when the driver's status does not allow the action.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDriverNotSettleable is returned when a delivery arrives for a driver that is not working.
	ErrDriverNotSettleable = errors.New("driver cannot receive settlements in current status")

	// ErrAlreadySettled is returned when a delivery event was already booked.
	ErrAlreadySettled = errors.New("order already settled")

	// ErrIncentiveNotFound is returned when an incentive is unknown or inactive.
	ErrIncentiveNotFound = errors.New("incentive not found or inactive")

	// ErrApprovalInProgress is returned when another approval for the driver holds the lock.
	ErrApprovalInProgress = errors.New("approval already in progress")

	// ErrExternalDependency is returned when the dispatch provider call fails.
	ErrExternalDependency = errors.New("dispatch provider unavailable")

	// ErrConcurrencyConflict is returned when a write lost its race after all retries.
	ErrConcurrencyConflict = errors.New("concurrent modification, retries exhausted")
)

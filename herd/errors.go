/*
errors.go - Centralized error types for the breeding core

PURPOSE:
  One place for every error the domain can surface. Sentinels are matched
  with errors.Is(); structured types carry the ids a caller needs to build a
  useful failure message, and Unwrap() back to their sentinel.

PROPAGATION:
  Precondition and validation failures (quota, inventory, assignment state)
  become a success=false envelope at the HTTP boundary. Anything else rolls
  back the transaction and surfaces as a 500. The aging job's missing-config
  error is logged and swallowed - the scheduler has no caller to answer to.
*/
package herd

import (
	"errors"
	"fmt"

	"github.com/manfad/cowcard/ledger"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotFound is the base of every missing-entity failure.
	ErrNotFound = errors.New("entity not found")

	// ErrQuotaExceeded is returned when a dam already has the maximum number
	// of non-bull AI records.
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrInsufficientInventory is returned when a semen batch has no straws left.
	ErrInsufficientInventory = errors.New("insufficient straw inventory")

	// ErrConfigurationMissing is returned (internally) when an aging threshold
	// setting is absent or non-numeric. Never propagated past the job.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrInvalidStatus is returned when a request carries an unknown or
	// inconsistent status/role/gender code.
	ErrInvalidStatus = errors.New("invalid status code")

	// ErrRunInProgress is returned when an aging run is requested while the
	// previous one has not finished.
	ErrRunInProgress = errors.New("aging run already in progress")
)

// NonBullAiLimit is the per-dam quota of non-bull AI attempts.
const NonBullAiLimit = 3

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError identifies the missing entity by kind and id.
type NotFoundError struct {
	Kind string // "cow", "semen", "ai record", ...
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// QuotaExceededError carries the dam and the limit that was hit.
type QuotaExceededError struct {
	DamID int64
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("dam %d already has %d AI records with non-bull semen; only bull semen can be used", e.DamID, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// InsufficientInventoryError carries the exhausted batch id.
type InsufficientInventoryError struct {
	SemenID int64
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("no straws remaining for semen %d", e.SemenID)
}

func (e *InsufficientInventoryError) Unwrap() error { return ErrInsufficientInventory }

// ConfigurationMissingError names the absent or malformed setting.
type ConfigurationMissingError struct {
	Name   string
	Reason string // "not found" or "not a number"
}

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("system setting %q %s", e.Name, e.Reason)
}

func (e *ConfigurationMissingError) Unwrap() error { return ErrConfigurationMissing }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError reports whether err is a precondition/validation failure that
// should surface as a success=false envelope rather than a 500.
func IsClientError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ledger.ErrAlreadyAssigned) ||
		errors.Is(err, ledger.ErrNotAssigned) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNotFound)
}

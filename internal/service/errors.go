package service

import (
	"errors"
	"fmt"

	"github.com/oraclewalid/discoveo/internal/store"
)

var (
	ErrProjectNotFound   = fmt.Errorf("project %w", store.ErrNotFound)
	ErrConnectorNotFound = fmt.Errorf("connector %w", store.ErrNotFound)
	ErrReportNotFound    = fmt.Errorf("report %w", store.ErrNotFound)
	// ErrNoGA4Connector is returned when a project has no GA4 connector to audit.
	ErrNoGA4Connector = fmt.Errorf("GA4 connector %w", store.ErrNotFound)

	ErrNotGA4Connector = errors.New("connector is not a GA4 connector")
	ErrQueueDisabled   = errors.New("background jobs are not configured")
	ErrInvalidInput    = errors.New("invalid input")
)

// notFound maps store.ErrNotFound to the more specific sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}

package core

import (
	"errors"
	"fmt"

	"github.com/gustavlindstroms/parkmalmokontor/internal/db"
)

// The messages are shown to users verbatim.
var (
	ErrAlreadyBookedToday     = errors.New("Du har redan en bokning denna dag. Du kan bara boka en plats per dag.")
	ErrSpotTaken              = errors.New("Platsen är redan bokad. Vänligen välj en annan plats.")
	ErrBookingNotFound        = errors.New("Bokning hittades inte")
	ErrCreatePermissionDenied = errors.New("Du har inte behörighet att skapa bokningen.")
	ErrCreateFailed           = errors.New("Kunde inte spara bokningen. Försök igen.")
	ErrCancelPermissionDenied = errors.New("Du har inte behörighet att avboka.")
	ErrCancelFailed           = errors.New("Kunde inte avboka. Försök igen.")
	ErrInvalidDate            = errors.New("Ogiltigt datum. Använd formatet ÅÅÅÅ-MM-DD.")
	ErrUnknownSpot            = errors.New("Platsen finns inte.")

	ErrCarExists           = errors.New("Denna bil finns redan i listan")
	ErrAddPermissionDenied = errors.New("Du har inte behörighet att lägga till bil")
	ErrAddCarFailed        = errors.New("Kunde inte lägga till bil. Försök igen.")
	ErrRemovePermission    = errors.New("Du har inte behörighet att ta bort bil")
	ErrRemoveCarFailed     = errors.New("Kunde inte ta bort bil. Försök igen.")

	ErrMissingIdentity   = errors.New("a signed-in user id is required")
	ErrMissingRepository = errors.New("repository is required")
)

const (
	loadBookingsFailed = "Kunde inte ladda bokningar"
	loadCarsFailed     = "Kunde inte ladda bilar"
)

// classifyWrite maps a store write failure onto the user-facing sentinel.
// The store error stays in the chain for logging.
func classifyWrite(err, denied, failed error) error {
	if db.IsPermissionDenied(err) {
		return fmt.Errorf("%w: %w", denied, err)
	}
	return fmt.Errorf("%w: %w", failed, err)
}

// UserMessage returns the user-facing text of err: the message of the first known
// sentinel in its chain, or err.Error() for anything else.
func UserMessage(err error) string {
	for _, sentinel := range userFacing {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

var userFacing = []error{
	ErrAlreadyBookedToday, ErrSpotTaken, ErrBookingNotFound,
	ErrCreatePermissionDenied, ErrCreateFailed,
	ErrCancelPermissionDenied, ErrCancelFailed,
	ErrInvalidDate, ErrUnknownSpot,
	ErrCarExists, ErrAddPermissionDenied, ErrAddCarFailed,
	ErrRemovePermission, ErrRemoveCarFailed,
}

package debate

import (
	"errors"
	"fmt"

	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
	"github.com/suPer8Hu/ai-debate/internal/usage"
)

var (
	ErrNotSignedIn     = errors.New("not signed in")
	ErrNoActiveSession = errors.New("no active session")
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrNoParticipants  = errors.New("no participant is available on this tier")
	// ErrInProgress is returned while another operation of the same family
	// is outstanding. Sends within a session are serial.
	ErrInProgress = errors.New("operation already in progress")
)

// UpgradeRequiredError is the client-side quota refusal. The backend is not
// called when this is returned; the caller should offer an upgrade.
type UpgradeRequiredError struct {
	Action string
	Tier   tokenstore.Tier
	Limit  int
}

func (e *UpgradeRequiredError) Error() string {
	return fmt.Sprintf("%s: %s tier limit of %d reached, upgrade to continue", e.Action, e.Tier, e.Limit)
}

func (e *UpgradeRequiredError) Unwrap() error { return usage.ErrQuotaExceeded }

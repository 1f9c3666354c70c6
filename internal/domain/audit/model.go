package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one recorded consent lifecycle action. Events are append-only;
// the trail is the gateway's local record of what it asked the registry
// to do and how the registry answered.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Action        string    `json:"action"`
	ConsentID     string    `json:"consentId,omitempty"`
	SubjectID     string    `json:"patientId,omitempty"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	ConsentStatus string    `json:"consentStatus,omitempty"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail,omitempty"`
	ActorID       string    `json:"actorId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

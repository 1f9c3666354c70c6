package registry

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a consent record.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusRevoked:
		return true
	}
	return false
}

// ParseStatus converts a wire/CLI string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid consent status: %q", s)
	}
	return st, nil
}

// CanTransition reports whether a consent record may move from one status
// to another. Revoked is terminal; a pending record may be approved
// (active) or rejected (revoked); an active record may only be revoked.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusActive || to == StatusRevoked
	case StatusActive:
		return to == StatusRevoked
	}
	return false
}

// Purpose is an authorized consent purpose. The values are display strings
// because they are embedded verbatim in the signed consent statement.
type Purpose string

const (
	PurposeResearchStudy    Purpose = "Research Study Participation"
	PurposeDataSharing      Purpose = "Data Sharing with Research Institution"
	PurposeThirdPartyAccess Purpose = "Third-Party Analytics Access"
	PurposeInsuranceAccess  Purpose = "Insurance Provider Access"
)

// Purposes lists the closed set of authorized purposes.
var Purposes = []Purpose{
	PurposeResearchStudy,
	PurposeDataSharing,
	PurposeThirdPartyAccess,
	PurposeInsuranceAccess,
}

func (p Purpose) Valid() bool {
	for _, known := range Purposes {
		if p == known {
			return true
		}
	}
	return false
}

// ConsentRecord is a single recorded patient authorization. JSON field
// names follow the registry wire contract. The signature/message/wallet
// triple is immutable once persisted; corrections require a new record.
type ConsentRecord struct {
	ID               string    `json:"id"`
	SubjectID        string    `json:"patientId"`
	Purpose          Purpose   `json:"purpose"`
	WalletAddress    string    `json:"walletAddress"`
	Message          string    `json:"message"`
	Signature        string    `json:"signature"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	BlockchainTxHash string    `json:"blockchainTxHash,omitempty"`
}

// Scope identifies which records a load targets. An empty SubjectID means
// no subject restriction; a nil Status means all statuses.
type Scope struct {
	SubjectID string
	Status    *Status
}

func (sc Scope) String() string {
	status := "all"
	if sc.Status != nil {
		status = string(*sc.Status)
	}
	subject := sc.SubjectID
	if subject == "" {
		subject = "*"
	}
	return fmt.Sprintf("subject=%s status=%s", subject, status)
}

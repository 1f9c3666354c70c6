package registry

import (
	"context"
	"errors"
	"fmt"
)

// Signer is the external signing capability bound to a wallet identity.
// Sign must be safe to call repeatedly with the same message.
type Signer interface {
	Sign(ctx context.Context, message, identity string) (string, error)
}

// SignedStatement is the output of binding: the canonical message and the
// signature over it.
type SignedStatement struct {
	Message   string
	Signature string
}

// consentMessageTemplate is the canonical consent statement. Verifiers
// reconstruct the message from purpose and subject id independently, so
// the template must never change.
const consentMessageTemplate = "I consent to: %s for patient: %s"

// ConsentMessage builds the canonical statement that gets signed.
func ConsentMessage(purpose Purpose, subjectID string) string {
	return fmt.Sprintf(consentMessageTemplate, purpose, subjectID)
}

// Binder builds canonical consent statements and obtains signatures over
// them. It persists nothing.
type Binder struct {
	signer Signer
}

func NewBinder(signer Signer) *Binder {
	return &Binder{signer: signer}
}

// Bind constructs the canonical message for (purpose, subjectID) and asks
// the signing capability bound to walletAddress to sign it. Signer faults
// outside the known taxonomy are wrapped into ErrSigningUnavailable.
func (b *Binder) Bind(ctx context.Context, subjectID string, purpose Purpose, walletAddress string) (SignedStatement, error) {
	if b.signer == nil {
		return SignedStatement{}, ErrNoSigningIdentity
	}

	message := ConsentMessage(purpose, subjectID)
	signature, err := b.signer.Sign(ctx, message, walletAddress)
	if err != nil {
		if errors.Is(err, ErrNoSigningIdentity) || errors.Is(err, ErrSigningRejected) {
			return SignedStatement{}, err
		}
		return SignedStatement{}, fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}

	return SignedStatement{Message: message, Signature: signature}, nil
}

package domain

import "context"

// Conversation states, in required order. Payment confirmation is only legal
// from StateAwaitingPayment; every other handler checks its own state the
// same way.
const (
	StateSelectingService = "selecting_service"
	StateAwaitingContract = "awaiting_contract"
	StateSelectingPackage = "selecting_package"
	StateAwaitingPayment  = "awaiting_payment"
	StateViewingAccount   = "viewing_account"
	StateViewingReferral  = "viewing_referral"
)

// Session is the in-process conversation state for one user. It is created
// on first contact, reset on /start and discarded on cancel or on reaching a
// terminal outcome. ServiceKey/PackageKey and the price fields are set once
// at their step and never mutated afterwards.
type Session struct {
	State           string
	ServiceKey      string
	PackageKey      string
	ContractAddress string

	// Set at the pricing step; FinalLamports is the amount the verifier
	// must match.
	BaseLamports  int64
	FinalLamports int64
	PointsUsed    int64

	// Verification bookkeeping. CancelVerify stops the in-flight polling
	// loop; it is nil unless Verifying is true.
	Verifying    bool
	CancelVerify context.CancelFunc
}

// NewSession returns a fresh session at the top of the flow.
func NewSession() *Session {
	return &Session{State: StateSelectingService}
}

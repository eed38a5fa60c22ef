package wallet

// State is the client's reconciled view of server authentication versus the connected wallet.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticatedNoWallet
	StateAuthenticatedMatched
	StateAuthenticatedMismatched
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedNoWallet:
		return "authenticated_no_wallet"
	case StateAuthenticatedMatched:
		return "authenticated_matched"
	case StateAuthenticatedMismatched:
		return "authenticated_mismatched"
	default:
		return "unknown"
	}
}

// IdentitySnapshot is derived after every change and never stored.
type IdentitySnapshot struct {
	AuthenticatedAddress string
	ActiveAddress        string
	Mismatch             bool
	State                State
}

// Mismatch reports whether a signed-in wallet and a connected wallet are both known and differ.
func Mismatch(authenticated, active string) bool {
	return authenticated != "" && active != "" && authenticated != active
}

func deriveState(authenticated, active string) State {
	switch {
	case authenticated == "":
		return StateUnauthenticated
	case active == "":
		return StateAuthenticatedNoWallet
	case authenticated == active:
		return StateAuthenticatedMatched
	default:
		return StateAuthenticatedMismatched
	}
}

func newSnapshot(authenticated, active string) IdentitySnapshot {
	return IdentitySnapshot{
		AuthenticatedAddress: authenticated,
		ActiveAddress:        active,
		Mismatch:             Mismatch(authenticated, active),
		State:                deriveState(authenticated, active),
	}
}

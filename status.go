package auth

// Status is the outcome of a token or credential check
type Status string

const (
	StatusOK              Status = "OK"
	StatusInvalid         Status = "INVALID"
	StatusExpired         Status = "EXPIRED"
	StatusDead            Status = "DEAD"
	StatusBadLogin        Status = "BAD_LOGIN"
	StatusBadRequest      Status = "BAD_REQUEST"
	StatusInactivatedUser Status = "INACTIVATED_USER"
	StatusInvalidPassword Status = "INVALID_PASSWORD"
)

// Statuses lists every known status
var Statuses = []Status{
	StatusOK,
	StatusInvalid,
	StatusExpired,
	StatusDead,
	StatusBadLogin,
	StatusBadRequest,
	StatusInactivatedUser,
	StatusInvalidPassword,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsOK() bool {
	return s == StatusOK
}

// IsInvalid is true for INVALID and its INACTIVATED_USER sub case
func (s Status) IsInvalid() bool {
	return s == StatusInvalid || s == StatusInactivatedUser
}

// IsRenewable reports whether a fresh token may be minted from a
// token in this state
func (s Status) IsRenewable() bool {
	return s == StatusOK || s == StatusExpired
}

// Outcome is the result of validating a token. Record is nil when
// the token did not resolve to a stored record.
type Outcome struct {
	Record  *TokenRecord
	Account *Account
	Status  Status
}

func invalidOutcome() Outcome {
	return Outcome{Status: StatusInvalid}
}

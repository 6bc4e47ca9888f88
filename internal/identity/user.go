package identity

// User is the remote-owned account record cached locally alongside the
// bearer token.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	MembershipLevel string `json:"membership_level"`
	// Credits is the spendable balance. The remote service is the sole
	// authority on it; this is a cached copy.
	Credits      int    `json:"credits"`
	ReferralCode string `json:"referral_code"`
}

// Equal reports whether two user records carry the same data. Used to
// suppress redundant updates when a refresh returns an unchanged record.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return *u == *other
}

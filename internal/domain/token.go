package domain

// TokenPair is the credential pair handed out after a successful login,
// registration, or refresh. The access token is short-lived and never
// individually revocable; the refresh token carries a unique ID that can be
// added to the revocation ledger.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

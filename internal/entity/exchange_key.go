package entity

// ExchangeKey is one stored credential pair for (userID, exchangeID).
// Token and Secret hold plaintext only when the caller was allowed to
// decrypt; Last4 fields are always available without decryption.
type ExchangeKey struct {
	ExchangeID  string `json:"exchangeID"`
	TokenLast4  string `json:"tokenLast4"`
	SecretLast4 string `json:"secretLast4"`
	Token       string `json:"token,omitempty"`
	Secret      string `json:"secret,omitempty"`
}

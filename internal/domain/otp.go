package domain

import "time"

// OtpCode is one issued verification code for an email address.
// PK: email, SK: otp_id (ULID). ULIDs sort by creation time, so the newest
// record for an address is the last one in key order and the trailing-window
// issuance count is a key-range query.
//
// CodeHash holds a bcrypt hash; the raw code is never stored or logged.
// Records are kept after use or expiry for rate-limit accounting; PurgeAt is a
// DynamoDB TTL attribute set well past the verification window so the table
// eventually evicts them out of band.
type OtpCode struct {
	Email     string    `json:"email" dynamodbav:"email"`
	OtpID     string    `json:"otp_id" dynamodbav:"otp_id"`
	CodeHash  string    `json:"-" dynamodbav:"code_hash"`
	Used      bool      `json:"used" dynamodbav:"used"`
	Attempts  int       `json:"attempts" dynamodbav:"attempts"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	PurgeAt   int64     `json:"-" dynamodbav:"purge_at"`            // DynamoDB TTL (Unix seconds)
}

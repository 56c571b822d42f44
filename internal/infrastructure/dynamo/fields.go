package dynamo

// DynamoDB attribute names used in update and condition expressions across
// all repos. Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldFullName     = "full_name"
	fieldPasswordHash = "password_hash"
	fieldVerified     = "verified"
	fieldUpdatedAt    = "updated_at"

	fieldOtpID    = "otp_id"
	fieldUsed     = "used"
	fieldAttempts = "attempts"
	fieldPurgeAt  = "purge_at"
)

package dynamo

// DynamoDB attribute names used in key, update and condition expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID              = "user_id"
	fieldOwnerID             = "owner_id"
	fieldVerified            = "verified"
	fieldPasswordHash        = "password_hash"
	fieldPasswordUpdatedAt   = "password_updated_at"
	fieldOTP                 = "otp"
	fieldOTPExpiresAt        = "otp_expires_at"
	fieldResetToken          = "reset_token"
	fieldResetTokenExpiresAt = "reset_token_expires_at"
	fieldUpdatedAt           = "updated_at"
	fieldSessionID           = "session_id"
	fieldEmail               = "email"
	fieldExpiresAt           = "expires_at"

	indexResetToken = "reset_token-index"
	indexEmail      = "email-index"

	// emailLockPrefix keys the per-address item that enforces unique e-mails
	// in the users table.
	emailLockPrefix = "email#"
)

package dynamo

// DynamoDB attribute names used in update and condition expressions across all repos.
const (
	fieldAccountID        = "account_id"
	fieldEmail            = "email"
	fieldDisplayName      = "display_name"
	fieldPasswordHash     = "password_hash"
	fieldIsActive         = "is_active"
	fieldActiveOTPID      = "active_otp_id"
	fieldUsed             = "used"
	fieldExpiresAt        = "expires_at"
	fieldEnable           = "enable"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldUpdatedAt        = "updated_at"
	fieldRatingSum        = "rating_sum"
	fieldReviewCount      = "review_count"
)

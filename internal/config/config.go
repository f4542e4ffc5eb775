package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort       string
	AppEnv        string
	LogLevel      string
	ProductName   string
	PublicBaseURL string // absolute base used in emailed verification links
	AppRootURL    string // redirect target after a successful verification
	CookieSecure  bool

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string
	MediaBaseURL   string // public URL prefix for uploaded objects; empty falls back to s3:// URIs

	JWTPrivateKeyPath  string
	JWTPublicKeyPath   string
	JWTExpiry          time.Duration
	RefreshTokenExpiry time.Duration
	PendingTokenTTL    time.Duration

	OTPTTL time.Duration

	RecaptchaSecretKey string
	RecaptchaSiteKey   string
	RecaptchaThreshold float64
	RecaptchaVerifyURL string
	RecaptchaAction    string

	MailProvider        string // "smtp" | "postmark"
	MailFrom            string
	MailTimeout         time.Duration
	SMTPHost            string
	SMTPPort            string
	SMTPUsername        string
	SMTPPassword        string
	PostmarkServerToken string

	GoogleClientID string

	AllowedOrigins []string // CORS allowed origins
	TrustedProxies []string // CIDRs whose X-Forwarded-For / X-Real-Ip headers are believed
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string
	AccountEmails string
	Passcodes     string
	Sessions      string
	Categories    string
	Books         string
	Leaves        string
	Reviews       string
	SavedBooks    string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:       getEnv("APP_PORT", "3000"),
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ProductName:   getEnv("PRODUCT_NAME", "Book"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		AppRootURL:    getEnv("APP_ROOT_URL", "/"),
		CookieSecure:  getEnvBool("COOKIE_SECURE", false),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			AccountEmails: getEnv("DYNAMO_TABLE_ACCOUNT_EMAILS", "account_emails"),
			Passcodes:     getEnv("DYNAMO_TABLE_PASSCODES", "one_time_passcodes"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Categories:    getEnv("DYNAMO_TABLE_CATEGORIES", "categories"),
			Books:         getEnv("DYNAMO_TABLE_BOOKS", "books"),
			Leaves:        getEnv("DYNAMO_TABLE_LEAVES", "leaves"),
			Reviews:       getEnv("DYNAMO_TABLE_REVIEWS", "reviews"),
			SavedBooks:    getEnv("DYNAMO_TABLE_SAVED_BOOKS", "saved_books"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "leafbook-media"),
		MediaBaseURL: strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/"),

		JWTPrivateKeyPath:  getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:   getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:          time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		RefreshTokenExpiry: time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,
		PendingTokenTTL:    time.Duration(getEnvInt("PENDING_TOKEN_TTL_MINUTES", 60)) * time.Minute,

		OTPTTL: time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,

		RecaptchaSecretKey: getEnv("RECAPTCHA_SECRET_KEY", ""),
		RecaptchaSiteKey:   getEnv("RECAPTCHA_SITE_KEY", ""),
		RecaptchaThreshold: getEnvFloat("RECAPTCHA_THRESHOLD", 0.5),
		RecaptchaVerifyURL: getEnv("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		RecaptchaAction:    getEnv("RECAPTCHA_ACTION", "signup"),

		MailProvider:        strings.ToLower(getEnv("MAIL_PROVIDER", "smtp")),
		MailFrom:            getEnv("MAIL_FROM", getEnv("SMTP_FROM", "noreply@example.com")),
		MailTimeout:         time.Duration(getEnvInt("MAIL_TIMEOUT_SECONDS", 10)) * time.Second,
		SMTPHost:            getEnv("SMTP_HOST", "localhost"),
		SMTPPort:            getEnv("SMTP_PORT", "1025"),
		SMTPUsername:        getEnv("SMTP_USERNAME", ""),
		SMTPPassword:        getEnv("SMTP_PASSWORD", ""),
		PostmarkServerToken: getEnv("POSTMARK_SERVER_TOKEN", ""),

		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

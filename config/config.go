package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go-storefront/utils"
)

const (
	zarinpalBaseURL        = "https://payment.zarinpal.com"
	zarinpalSandboxBaseURL = "https://sandbox.zarinpal.com"
)

type Config struct {
	Port string
	Env  string

	DBDriver string // mysql, postgres or sqlite
	DBDSN    string

	JWTSecret string
	AdminKey  string

	// ZarinPal
	MerchantID     string
	Sandbox        bool
	GatewayBaseURL string
	StartPayURL    string
	Currency       string // IRR or IRT, empty means gateway default
	GatewayTimeout time.Duration

	PendingTTL time.Duration

	// notifications
	AdminPanelURL string
	AdminEmail    string
	AMQPURL       string
	SMTP          SMTP

	CORSAllowOrigins   []string
	RateLimitPerMinute int
}

type SMTP struct {
	Server   string
	Port     string
	User     string
	Pass     string
	FromAddr string
	FromName string
}

func (s SMTP) Enabled() bool {
	return s.Server != "" && s.Port != "" && s.FromAddr != ""
}

// Load reads the process environment (and .env when present) once.
func Load() Config {
	utils.LoadEnv()

	sandbox := parseBool(os.Getenv("ZARINPAL_SANDBOX"))
	base := zarinpalBaseURL
	if sandbox {
		base = zarinpalSandboxBaseURL
	}

	return Config{
		Port: getenv("PORT", "8080"),
		Env:  getenv("APP_ENV", "development"),

		DBDriver: getenv("DB_DRIVER", "mysql"),
		DBDSN:    os.Getenv("DB"),

		JWTSecret: os.Getenv("SECRET"),
		AdminKey:  os.Getenv("ADMIN_KEY"),

		MerchantID:     strings.TrimSpace(os.Getenv("ZARINPAL_MERCHANT_ID")),
		Sandbox:        sandbox,
		GatewayBaseURL: strings.TrimRight(getenv("ZARINPAL_BASE_URL", base), "/"),
		StartPayURL:    strings.TrimRight(getenv("ZARINPAL_STARTPAY_URL", base), "/"),
		Currency:       os.Getenv("ZARINPAL_CURRENCY"),
		GatewayTimeout: parseDuration(os.Getenv("GATEWAY_TIMEOUT"), 10*time.Second),

		PendingTTL: parseDuration(os.Getenv("PENDING_TTL"), 24*time.Hour),

		AdminPanelURL: strings.TrimRight(os.Getenv("ADMIN_PANEL_URL"), "/"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		SMTP: SMTP{
			Server:   os.Getenv("SMTP_SERVER"),
			Port:     os.Getenv("SMTP_PORT"),
			User:     os.Getenv("SMTP_USER"),
			Pass:     os.Getenv("SMTP_PASS"),
			FromAddr: os.Getenv("FROM_ADDR"),
			FromName: os.Getenv("FROM_NAME"),
		},

		CORSAllowOrigins:   splitCSV(getenv("CORS_ALLOW_ORIGINS", "*")),
		RateLimitPerMinute: parseInt(os.Getenv("RATE_LIMIT_PER_MIN"), 30),
	}
}

// Validate checks the settings the server cannot start without. The merchant
// id is not among them: a bad merchant id only disables the payment endpoints.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("SECRET is not set"))
	}
	if c.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

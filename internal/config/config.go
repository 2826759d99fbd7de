package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"controle/internal/core"
	"controle/internal/sheets"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	TrustedProxies     string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	QueueWrites  bool

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Ranges
	IncomeRange     string
	FixedRange      string
	PurchaseRange   string
	CardsRange      string
	FixedTypesRange string

	// Ledger rules
	CutoverDay           int
	DefaultClosingDay    int
	CardClosingDays      string
	CardPriority         string
	SharedCardBrands     string
	OverviewMonths       int
	InstallmentRemainder string

	// Cache
	CacheTTL  time.Duration
	CacheSize int

	// Rollover
	RolloverInterval time.Duration

	// Memory backend seed files
	DataDirectory string

	LogLevel string
}

func Load() *Config {
	defaults := sheets.DefaultRanges()
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnv("TRUSTED_PROXIES", ""),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/controle.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "controle"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_commands"),
		QueueWrites:  getEnvBool("QUEUE_WRITES", false),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		IncomeRange:     getEnv("INCOME_RANGE", defaults[sheets.Income]),
		FixedRange:      getEnv("FIXED_RANGE", defaults[sheets.Fixed]),
		PurchaseRange:   getEnv("PURCHASE_RANGE", defaults[sheets.Purchases]),
		CardsRange:      getEnv("CARDS_RANGE", defaults[sheets.Cards]),
		FixedTypesRange: getEnv("FIXED_TYPES_RANGE", defaults[sheets.FixedTypes]),

		CutoverDay:           getEnvInt("CUTOVER_DAY", core.DefaultCutoverDay),
		DefaultClosingDay:    getEnvInt("DEFAULT_CLOSING_DAY", core.DefaultClosingDay),
		CardClosingDays:      getEnv("CARD_CLOSING_DAYS", ""),
		CardPriority:         getEnv("CARD_PRIORITY", ""),
		SharedCardBrands:     getEnv("SHARED_CARD_BRANDS", ""),
		OverviewMonths:       getEnvInt("OVERVIEW_MONTHS", 6),
		InstallmentRemainder: getEnv("INSTALLMENT_REMAINDER", string(core.RemainderNone)),

		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 32),

		RolloverInterval: getEnvDuration("ROLLOVER_INTERVAL", time.Hour),

		DataDirectory: getEnv("DATA_DIRECTORY", "data"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// TrustedProxyList returns the extra proxy networks allowed to set
// forwarding headers.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

// Ranges returns the configured A1 ranges.
func (c *Config) Ranges() sheets.Ranges {
	return sheets.Ranges{
		sheets.Income:     c.IncomeRange,
		sheets.Fixed:      c.FixedRange,
		sheets.Purchases:  c.PurchaseRange,
		sheets.Cards:      c.CardsRange,
		sheets.FixedTypes: c.FixedTypesRange,
	}
}

// CardRules starts from the built-in card table and applies the configured
// overrides. CARD_CLOSING_DAYS entries replace or add brands; an explicit
// priority or shared list replaces the default one.
func (c *Config) CardRules() (core.CardRules, error) {
	rules := core.DefaultCardRules()
	if c.DefaultClosingDay != 0 {
		rules.DefaultClosingDay = c.DefaultClosingDay
	}
	days, err := parseClosingDays(c.CardClosingDays)
	if err != nil {
		return core.CardRules{}, err
	}
	for brand, day := range days {
		for existing := range rules.ClosingDays {
			if core.Fold(existing) == core.Fold(brand) {
				delete(rules.ClosingDays, existing)
			}
		}
		rules.ClosingDays[brand] = day
	}
	if list := splitList(c.CardPriority); len(list) > 0 {
		rules.Priority = list
	}
	if list := splitList(c.SharedCardBrands); len(list) > 0 {
		rules.SharedBrands = list
	}
	return rules, nil
}

// Remainder returns the installment remainder policy.
func (c *Config) Remainder() (core.RemainderPolicy, error) {
	return core.ParseRemainderPolicy(c.InstallmentRemainder)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sheets", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	} else if c.QueueWrites {
		errors = append(errors, "QUEUE_WRITES requires AMQP_URL")
	}

	// Validate Google Sheets configuration if backend is sheets
	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if c.GoogleServiceAccountJSON == "" && !hasFile && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if err := c.Ranges().Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ranges: %v", err))
	}

	// Validate ledger rules
	if c.CutoverDay < 1 || c.CutoverDay > 28 {
		errors = append(errors, fmt.Sprintf("invalid cutover day %d: must be between 1 and 28", c.CutoverDay))
	}
	if c.DefaultClosingDay < 1 || c.DefaultClosingDay > 31 {
		errors = append(errors, fmt.Sprintf("invalid default closing day %d: must be between 1 and 31", c.DefaultClosingDay))
	}
	if _, err := c.CardRules(); err != nil {
		errors = append(errors, err.Error())
	}
	if c.OverviewMonths < 0 || c.OverviewMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid overview months %d: must be between 0 and 24", c.OverviewMonths))
	}
	if _, err := c.Remainder(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid installment remainder '%s': must be none, first or last", c.InstallmentRemainder))
	}

	// Validate cache and jobs
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.RolloverInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at least 1 minute", c.RolloverInterval))
	} else if c.RolloverInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at most 24 hours", c.RolloverInterval))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxyList() {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// parseClosingDays reads "Itaú=8,Bradesco=4".
func parseClosingDays(s string) (map[string]int, error) {
	out := make(map[string]int)
	seen := make(map[string]string)
	for _, item := range splitList(s) {
		brand, day, ok := strings.Cut(item, "=")
		brand = strings.TrimSpace(brand)
		if !ok || brand == "" {
			return nil, fmt.Errorf("invalid card closing day '%s': expected Brand=day", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(day))
		if err != nil || n < 1 || n > 31 {
			return nil, fmt.Errorf("invalid card closing day '%s': day must be between 1 and 31", item)
		}
		if prev, dup := seen[core.Fold(brand)]; dup {
			return nil, fmt.Errorf("invalid card closing day '%s': brand already set by '%s'", item, prev)
		}
		seen[core.Fold(brand)] = item
		out[brand] = n
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

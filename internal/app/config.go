package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/cemention/internal/domain/invoice"
	"github.com/xenking/cemention/internal/domain/notify"
	"github.com/xenking/cemention/internal/domain/pricing"
	"github.com/xenking/cemention/internal/domain/quantity"
	"github.com/xenking/cemention/internal/domain/user"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the complete application configuration, loadable from
// environment variables (CEMENTION_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Auth      AuthConfig
	Pricing   PricingConfig
	Company   CompanyConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and locates the database.
type StorageConfig struct {
	Driver        string `default:"postgres" usage:"Storage backend: postgres or mongo"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (CEMENTION_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `usage:"MongoDB connection URI" flag:"mongo-uri"`
	MongoDatabase string `default:"cemention" usage:"MongoDB database name" flag:"mongo-database"`
}

// AuthConfig controls bearer tokens.
type AuthConfig struct {
	JWTSecret  string        `usage:"HMAC secret for signing access tokens" flag:"jwt-secret"`
	TokenTTL   time.Duration `default:"24h" usage:"Access token lifetime" flag:"token-ttl"`
	BcryptCost int           `default:"0" usage:"bcrypt cost, 0 for the library default"`
}

// PricingConfig holds the pricing and quantity rules. Rates and multipliers
// are decimal strings so they are never rounded through float64.
type PricingConfig struct {
	TaxRate            string `default:"0.18" usage:"GST rate for tax registered buyers"`
	SurchargeRate      string `default:"0.02" usage:"Card payment surcharge rate"`
	MinOrderQty        int    `default:"100" usage:"Minimum bags per order line"`
	AllowedMultiples   []int  `default:"50,100" usage:"Quantities must be a multiple of one of these"`
	RetailerMultiplier string `default:"1.0167" usage:"Price multiplier for retailers"`
	CustomerMultiplier string `default:"1.025" usage:"Price multiplier for customers"`
}

// CompanyConfig is the selling company quoted on invoices and messages.
type CompanyConfig struct {
	Name        string `default:"Cemention Traders" usage:"Company name"`
	Address     string `usage:"Registered address printed on invoices"`
	TaxID       string `usage:"Company GSTIN"`
	Phone       string `usage:"Support phone"`
	Email       string `usage:"Support email"`
	Website     string `usage:"Website"`
	UPIID       string `usage:"UPI id for payment instructions"`
	BankName    string `usage:"Bank name for transfers"`
	BankAccount string `usage:"Bank account number for transfers"`
	BankIFSC    string `usage:"Bank IFSC for transfers"`
}

// NotifyConfig controls outgoing order notifications.
type NotifyConfig struct {
	CountryCode string `default:"91" usage:"Country calling code prefixed to local phone numbers"`
	Kafka       KafkaConfig
}

// KafkaConfig enables publishing notifications to Kafka. Without brokers
// notifications are only logged.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses"`
	Topic   string   `default:"order-notifications" usage:"Kafka topic for notifications"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CEMENTION",
		Files:     []string{"config.yaml", "/etc/cemention/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = os.Getenv("MONGODB_URI")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set CEMENTION_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set CEMENTION_STORAGE_MONGO_URI or MONGODB_URI")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT secret is required: set CEMENTION_AUTH_JWT_SECRET")
	}
	if _, err := c.Pricing.Rates(); err != nil {
		return err
	}
	return nil
}

// Rates builds the pricing configuration.
func (p PricingConfig) Rates() (pricing.Config, error) {
	cfg := pricing.DefaultConfig()
	for _, f := range []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{name: "tax rate", value: p.TaxRate, dst: &cfg.TaxRate},
		{name: "surcharge rate", value: p.SurchargeRate, dst: &cfg.SurchargeRate},
	} {
		d, err := parseRate(f.name, f.value)
		if err != nil {
			return pricing.Config{}, err
		}
		*f.dst = d
	}

	for role, value := range map[user.Role]string{
		user.RoleRetailer: p.RetailerMultiplier,
		user.RoleCustomer: p.CustomerMultiplier,
	} {
		d, err := parseRate(string(role)+" multiplier", value)
		if err != nil {
			return pricing.Config{}, err
		}
		if !d.IsPositive() {
			return pricing.Config{}, errors.Errorf("%s multiplier must be positive", role)
		}
		cfg.Multipliers[role] = d
	}
	return cfg, nil
}

// Policy builds the quantity policy.
func (p PricingConfig) Policy() quantity.Policy {
	return quantity.NewPolicy(p.MinOrderQty, p.AllowedMultiples)
}

func parseRate(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %s %q", name, value)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errors.Errorf("%s must not be negative", name)
	}
	return d, nil
}

// Issuer is the invoice issuer block.
func (c CompanyConfig) Issuer() invoice.Issuer {
	return invoice.Issuer{
		Name:    c.Name,
		Address: c.Address,
		TaxID:   c.TaxID,
		Phone:   c.Phone,
		Email:   c.Email,
		Website: c.Website,
	}
}

// Identity is the company block quoted in notifications.
func (c CompanyConfig) Identity() notify.Company {
	return notify.Company{
		Name:        c.Name,
		Phone:       c.Phone,
		Email:       c.Email,
		Website:     c.Website,
		UPIID:       c.UPIID,
		BankAccount: c.BankAccount,
		BankIFSC:    c.BankIFSC,
		BankName:    c.BankName,
	}
}

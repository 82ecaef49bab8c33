package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Payment provider configuration
	PaystackSecretKey    string
	PaymentWebhookSecret string

	// Notification gateway configuration
	WhatsappToken         string
	WhatsappPhoneNumberID string

	// Webhook server
	ListenAddr string

	// Collection account shown to members in payment instructions
	CollectionBankName      string
	CollectionAccountNumber string
	CollectionAccountName   string

	// Engine settings
	PaymentExpiry    time.Duration // window a member has to complete a pending payment
	ReminderInterval time.Duration // cadence of the reminder sweep
	MaxGroupMembers  int           // hard cap on group size

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from the environment, with .env as a fallback
func load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PaystackSecretKey:    os.Getenv("PAYSTACK_SECRET_KEY"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		WhatsappToken:         os.Getenv("WHATSAPP_TOKEN"),
		WhatsappPhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),

		ListenAddr: os.Getenv("LISTEN_ADDR"),

		CollectionBankName:      os.Getenv("COLLECTION_BANK_NAME"),
		CollectionAccountNumber: os.Getenv("COLLECTION_ACCOUNT_NUMBER"),
		CollectionAccountName:   os.Getenv("COLLECTION_ACCOUNT_NAME"),

		// Defaults
		PaymentExpiry:    30 * time.Minute,
		ReminderInterval: time.Hour,
		MaxGroupMembers:  20,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.CollectionBankName == "" {
		config.CollectionBankName = "First Bank of Nigeria"
	}
	if config.CollectionAccountName == "" {
		config.CollectionAccountName = "THRIFT BOT COLLECTIONS"
	}

	// Override defaults if environment variables are set
	if expiry := os.Getenv("PAYMENT_EXPIRY_MINUTES"); expiry != "" {
		if minutes, err := strconv.Atoi(expiry); err == nil && minutes > 0 {
			config.PaymentExpiry = time.Duration(minutes) * time.Minute
		}
	}
	if interval := os.Getenv("REMINDER_INTERVAL_MINUTES"); interval != "" {
		if minutes, err := strconv.Atoi(interval); err == nil && minutes > 0 {
			config.ReminderInterval = time.Duration(minutes) * time.Minute
		}
	}
	if maxMembers := os.Getenv("MAX_GROUP_MEMBERS"); maxMembers != "" {
		if parsed, err := strconv.Atoi(maxMembers); err == nil && parsed > 0 {
			config.MaxGroupMembers = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.PaystackSecretKey == "" {
			return nil, fmt.Errorf("PAYSTACK_SECRET_KEY is required")
		}
		if config.PaymentWebhookSecret == "" {
			return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
		}
	}

	return config, nil
}

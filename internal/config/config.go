// Package config loads everything from the environment, following twelve-factor
// convention. Optional integrations (calendar, CRM, email, bucket knowledge)
// switch themselves on when their credentials are present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	timezone := os.Getenv("TZ")
	if timezone == "" {
		timezone = "UTC"
	}

	llmConfig, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	twilioConfig, err := loadTwilioConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:         port,
		BaseURL:      os.Getenv("PUBLIC_BASE_URL"),
		Timezone:     timezone,
		BehaviorFile: os.Getenv("BEHAVIOR_FILE"),
		LLM:          llmConfig,
		Twilio:       twilioConfig,
		Knowledge:    loadKnowledgeConfig(),
		Calendar:     loadCalendarConfig(),
		CRM:          loadCRMConfig(),
		Email:        loadEmailConfig(),
		Booking:      loadBookingConfig(),
		Housekeeping: loadHousekeepingConfig(),
	}, nil
}

func loadLLMConfig() (LLMConfig, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = "claude"
	}

	apiKey, err := getAPIKey(provider)
	if err != nil {
		return LLMConfig{}, err
	}

	return LLMConfig{
		Provider: provider,
		APIKey:   apiKey,
		Model:    os.Getenv("LLM_MODEL"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
	}, nil
}

func getAPIKey(provider string) (string, error) {
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		return key, nil
	}

	switch provider {
	case "claude":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return key, nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		return key, nil
	default:
		key := os.Getenv("LLM_API_KEY")
		if key == "" {
			return "", fmt.Errorf("LLM_API_KEY not set for provider %s", provider)
		}
		return key, nil
	}
}

func loadTwilioConfig() (TwilioConfig, error) {
	accountSID := os.Getenv("TWILIO_ACCOUNT_SID")
	if accountSID == "" {
		return TwilioConfig{}, fmt.Errorf("TWILIO_ACCOUNT_SID not set")
	}

	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if authToken == "" {
		return TwilioConfig{}, fmt.Errorf("TWILIO_AUTH_TOKEN not set")
	}

	fromNumber := os.Getenv("TWILIO_FROM_NUMBER")
	if fromNumber == "" {
		return TwilioConfig{}, fmt.Errorf("TWILIO_FROM_NUMBER not set")
	}

	return TwilioConfig{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
	}, nil
}

func loadKnowledgeConfig() KnowledgeConfig {
	dir := os.Getenv("KNOWLEDGE_DIR")
	if dir == "" {
		dir = "knowledge"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	bucket := os.Getenv("KNOWLEDGE_BUCKET")

	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	return KnowledgeConfig{
		Dir:            dir,
		BucketEnabled:  accessKey != "" && secretKey != "" && bucket != "",
		MinioEndpoint:  endpoint,
		MinioAccessKey: accessKey,
		MinioSecretKey: secretKey,
		MinioUseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:         bucket,
	}
}

func loadCalendarConfig() CalendarConfig {
	credentialsFile := os.Getenv("GOOGLE_CREDENTIALS_FILE")
	calendarID := os.Getenv("GOOGLE_CALENDAR_ID")

	return CalendarConfig{
		Enabled:         credentialsFile != "" && calendarID != "",
		CredentialsFile: credentialsFile,
		CalendarID:      calendarID,
	}
}

func loadCRMConfig() CRMConfig {
	baseURL := os.Getenv("CRM_BASE_URL")

	return CRMConfig{
		Enabled: baseURL != "",
		BaseURL: baseURL,
		APIKey:  os.Getenv("CRM_API_KEY"),
	}
}

func loadEmailConfig() EmailConfig {
	host := os.Getenv("EMAIL_HOST")
	to := os.Getenv("EMAIL_TO")

	port := 587
	if p, err := strconv.Atoi(os.Getenv("EMAIL_PORT")); err == nil && p > 0 {
		port = p
	}

	return EmailConfig{
		Enabled:  host != "" && to != "",
		Host:     host,
		Port:     port,
		Username: os.Getenv("EMAIL_USERNAME"),
		Password: os.Getenv("EMAIL_PASSWORD"),
		From:     os.Getenv("EMAIL_FROM"),
		To:       to,
	}
}

func loadBookingConfig() BookingConfig {
	return BookingConfig{
		OwnerNumber:        os.Getenv("OWNER_NUMBER"),
		DefaultPaymentLink: os.Getenv("PAYMENT_LINK"),
		Terms:              os.Getenv("BOOKING_TERMS"),
	}
}

func loadHousekeepingConfig() HousekeepingConfig {
	sessionTTL := 2 * time.Hour
	if d, err := time.ParseDuration(os.Getenv("SESSION_TTL")); err == nil && d > 0 {
		sessionTTL = d
	}

	taskTTL := 10 * time.Minute
	if d, err := time.ParseDuration(os.Getenv("TASK_TTL")); err == nil && d > 0 {
		taskTTL = d
	}

	minHold := 2 * time.Second
	if d, err := time.ParseDuration(os.Getenv("MIN_HOLD")); err == nil && d > 0 {
		minHold = d
	}

	sweepEvery := os.Getenv("SWEEP_EVERY")
	if sweepEvery == "" {
		sweepEvery = "@every 10m"
	}

	return HousekeepingConfig{
		SessionTTL: sessionTTL,
		TaskTTL:    taskTTL,
		MinHold:    minHold,
		SweepEvery: sweepEvery,
	}
}

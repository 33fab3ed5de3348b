package config

import "time"

type Config struct {
	Port         string
	BaseURL      string
	Timezone     string
	BehaviorFile string
	LLM          LLMConfig
	Twilio       TwilioConfig
	Knowledge    KnowledgeConfig
	Calendar     CalendarConfig
	CRM          CRMConfig
	Email        EmailConfig
	Booking      BookingConfig
	Housekeeping HousekeepingConfig
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// KnowledgeConfig selects the knowledge-base source: a local directory or an
// object-store bucket. The bucket wins when both are configured.
type KnowledgeConfig struct {
	Dir            string
	BucketEnabled  bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	Bucket         string
}

type CalendarConfig struct {
	Enabled         bool
	CredentialsFile string
	CalendarID      string
}

type CRMConfig struct {
	Enabled bool
	BaseURL string
	APIKey  string
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type BookingConfig struct {
	OwnerNumber        string
	DefaultPaymentLink string
	Terms              string
}

// HousekeepingConfig tunes the background sweeps and the hold floor.
type HousekeepingConfig struct {
	SessionTTL time.Duration
	TaskTTL    time.Duration
	MinHold    time.Duration
	SweepEvery string
}

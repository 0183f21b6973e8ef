package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// App holds everything read from the environment at startup. Loaded once in
// main and passed explicitly; nothing reads the environment at send time.
type App struct {
	Port  string `envconfig:"PORT" default:"8080"`
	DBURL string `envconfig:"DB_URL" required:"true"`

	// Cal.com webhook
	CalSecret string `envconfig:"CAL_SECRET" default:"changeme"`

	// Notion sync
	NotionToken string `envconfig:"NOTION_TOKEN"`
	NotionDB    string `envconfig:"NOTION_DB"`

	// Twilio WhatsApp gateway
	TwilioAccountSID     string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppNumber string `envconfig:"TWILIO_WHATSAPP_NUMBER"`

	// Comma-separated E.164 numbers that receive every reminder.
	AdminPhones string `envconfig:"ADMIN_PHONES"`

	// Display timezone for bookings that arrive without one.
	Timezone string `envconfig:"TZ" default:"America/Sao_Paulo"`

	// Scheduler tuning
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
	GraceWindow  time.Duration `envconfig:"GRACE_WINDOW" default:"15m"`
	SendTimeout  time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	BackoffBase  time.Duration `envconfig:"BACKOFF_BASE" default:"5m"`
	BackoffCap   time.Duration `envconfig:"BACKOFF_CAP" default:"1h"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"5"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}

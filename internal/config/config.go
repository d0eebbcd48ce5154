package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env              string
	Port             string
	DatabaseURL      string
	RedisURL         string
	SiteBaseURL      string // Base URL for invitation entry links (e.g. https://davetjet.com)
	LinkSecret       string // HMAC key for secure invitation links
	TemplateDir      string // Directory holding invitation HTML templates
	DispatchDebounce time.Duration
	HealthAdminKey   string
	CORSSuffix       string // allowed Origin suffix, e.g. .davetjet.com

	NetgsmUsername string
	NetgsmPassword string
	NetgsmHeader   string // registered SMS sender name (msgheader)

	ResendAPIKey string
	MailFrom     string // MAIL_FROM sender email (default noreply@davetjet.com)

	WhatsAppToken   string
	WhatsAppPhoneID string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = viper.GetString("DATABASE_URL")
	}

	debounce := viper.GetDuration("DISPATCH_DEBOUNCE")
	if debounce <= 0 {
		debounce = 10 * time.Second
	}

	return &Config{
		Env:              env,
		Port:             port,
		DatabaseURL:      dbURL,
		RedisURL:         viper.GetString("REDIS_URL"),
		SiteBaseURL:      siteBaseURL(viper.GetString("SITE_BASE_URL")),
		LinkSecret:       viper.GetString("LINK_SECRET"),
		TemplateDir:      viper.GetString("TEMPLATE_DIR"),
		DispatchDebounce: debounce,
		HealthAdminKey:   viper.GetString("HEALTH_ADMIN_KEY"),
		CORSSuffix:       corsSuffix(viper.GetString("CORS_SUFFIX")),
		NetgsmUsername:   viper.GetString("NETGSM_USERNAME"),
		NetgsmPassword:   viper.GetString("NETGSM_PASSWORD"),
		NetgsmHeader:     viper.GetString("NETGSM_HEADER"),
		ResendAPIKey:     viper.GetString("RESEND_API_KEY"),
		MailFrom:         mailFrom(viper.GetString("MAIL_FROM")),
		WhatsAppToken:    viper.GetString("WHATSAPP_TOKEN"),
		WhatsAppPhoneID:  viper.GetString("WHATSAPP_PHONE_ID"),
	}, nil
}

func siteBaseURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "https://davetjet.com"
	}
	return strings.TrimRight(s, "/")
}

func corsSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ".davetjet.com"
	}
	return s
}

func mailFrom(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "noreply@davetjet.com"
	}
	return s
}

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig     *AppConfig
	BotConfig     *BotConfig
	BrowserConfig *BrowserConfig
	BookingConfig *BookingConfig
	HealthConfig  *HealthConfig
	ProfileConfig *ProfileConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

// BotConfig configures the chat transport. With an empty token the bot runs
// a local console session instead of polling Telegram.
type BotConfig struct {
	TelegramToken  string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	PollTimeout    int    `envconfig:"BOT_POLL_TIMEOUT" default:"30"`
	SessionTimeout int    `envconfig:"BOT_SESSION_TIMEOUT_MINUTES" default:"15"`
}

type BrowserConfig struct {
	Headless         bool `envconfig:"BROWSER_HEADLESS" default:"true"`
	SlowMo           int  `envconfig:"BROWSER_SLOW_MO" default:"0"`
	NavTimeout       int  `envconfig:"BROWSER_NAV_TIMEOUT" default:"30000"`
	WaitTimeout      int  `envconfig:"BROWSER_WAIT_TIMEOUT" default:"12000"`
	CandidateTimeout int  `envconfig:"BROWSER_CANDIDATE_TIMEOUT" default:"5000"`
	SettleDelay      int  `envconfig:"BROWSER_SETTLE_DELAY" default:"3000"`
}

type BookingConfig struct {
	URL          string `envconfig:"BOOKING_URL" default:"https://outlook.office365.com/book/CaversamParkVillageAssociationMilestoneCentre@cpva.org.uk/?ismsaljsauthenabled=true"`
	ResourceName string `envconfig:"BOOKING_RESOURCE_NAME" default:"Squash Court"`
}

type HealthConfig struct {
	Port int `envconfig:"HEALTH_PORT" default:"8081"`
}

type ProfileConfig struct {
	FullName         string `envconfig:"PROFILE_FULL_NAME" default:"Squash Player"`
	Email            string `envconfig:"PROFILE_EMAIL" default:"player@example.com"`
	Address          string `envconfig:"PROFILE_ADDRESS" default:""`
	Phone            string `envconfig:"PROFILE_PHONE" default:""`
	SpecialRequests  string `envconfig:"PROFILE_SPECIAL_REQUESTS" default:"Automated booking via chat bot"`
	MembershipNumber string `envconfig:"PROFILE_MEMBERSHIP_NUMBER" default:""`
	OpponentName     string `envconfig:"PROFILE_OPPONENT_NAME" default:"-"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	return &conf, nil
}

package internal

import (
	"fmt"
	"strings"
	"time"
	"whirl/domain"
)

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8667"`
	GrpcHealthPort int    `env:"GRPC_HEALTH_PORT,default=0"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	HistoryLimit    int    `env:"HISTORY_LIMIT,default=50"`
	DefaultChannels string `env:"DEFAULT_CHANNELS,default=general"`

	SendBufferSize     int     `env:"SEND_BUFFER_SIZE,default=256"`
	MaxFrameSize       int64   `env:"MAX_FRAME_SIZE,default=8192"`
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND,default=5"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=10"`
	AllowedOrigins     string  `env:"ALLOWED_ORIGINS,default=*"`

	SessionSecret   string        `env:"SESSION_SECRET,required=true"`
	SessionDuration time.Duration `env:"SESSION_DURATION,default=24h"`
	SessionCookie   string        `env:"SESSION_COOKIE,default=whirl_session"`

	CensoredWordsFile string `env:"CENSORED_WORDS_FILE"`
	CensorCharacter   string `env:"CENSOR_CHARACTER,default=*"`
	SanitizeHTML      bool   `env:"SANITIZE_HTML,default=false"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSOR_CHARACTER must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

// SplitList turns a comma separated setting into its non-empty items.
func SplitList(str string) []string {
	var items []string
	for _, item := range strings.Split(str, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// DefaultChannelNames parses DEFAULT_CHANNELS the way clients address
// channels: a leading '#' is dropped and every name must be joinable.
func (c Config) DefaultChannelNames() ([]string, error) {
	items := SplitList(c.DefaultChannels)
	channels := make([]string, 0, len(items))
	for _, item := range items {
		channel := domain.NormalizeChannel(item)
		if err := domain.ValidateChannel(channel); err != nil {
			return nil, fmt.Errorf("DEFAULT_CHANNELS: %q: %w", item, err)
		}
		channels = append(channels, channel)
	}
	return channels, nil
}

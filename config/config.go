package config

import (
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	ListenAddress      string `env:"LISTEN_ADDRESS,default=0.0.0.0:8080"`
	SQLiteDirPath      string `env:"SQLITE_DIR_PATH,default=db"`
	PgDatabaseUrl      string `env:"DATABASE_URL"`
	PollTimeoutSeconds int    `env:"POLL_TIMEOUT_SECONDS,default=25"`
	SocketSendBuffer   int    `env:"SOCKET_SEND_BUFFER,default=16"`
}

func NewConfig() (*Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// PollTimeout is how long a long-poll wait is held open before completing
// empty.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

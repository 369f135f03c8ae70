package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Servers     []string      `env:"BEANSTALK_SERVERS,default=127.0.0.1:11300"`
	Tube        string        `env:"BEANSTALK_TUBE,default=default"`
	DialTimeout time.Duration `env:"BEANSTALK_DIAL_TIMEOUT,default=5s"`
	LogLevel    string        `env:"BEANSTALK_LOG_LEVEL,default=info"`
}

// LoadConfig reads the environment, after loading .env.local when present.
func LoadConfig(ctx context.Context) (*Config, error) {
	return loadConfig(ctx, ".env.local")
}

func loadConfig(ctx context.Context, dotenvFile string) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(dotenvFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

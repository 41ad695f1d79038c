package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		S3              S3
		KMS             KMS
		Kafka           Kafka
		KafkaController KafkaController
		Keycloak        Keycloak
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Bucket         string        `env:"S3_BUCKET,required"`
		PublicBaseURL  string        `env:"S3_PUBLIC_BASE_URL,required"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	KMS struct {
		KeyID          string        `env:"KMS_KEY_ID,required"`
		AccessKey      string        `env:"KMS_ACCESS_KEY,required"`
		SecretKey      string        `env:"KMS_SECRET_KEY,required"`
		Region         string        `env:"KMS_REGION" envDefault:"us-east-1"`
		CfgLoadTimeout time.Duration `env:"KMS_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Brokers      []string `env:"KAFKA_BROKERS,required"`
		GroupID      string   `env:"KAFKA_GROUP_ID,required"`
		EventsTopic  string   `env:"KAFKA_EVENTS_TOPIC,required"`
		UploadsTopic string   `env:"KAFKA_UPLOADS_TOPIC,required"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Keycloak struct {
		ServerURL    string `env:"KEYCLOAK_SERVER_URL,required"`
		Realm        string `env:"KEYCLOAK_REALM,required"`
		ClientID     string `env:"KEYCLOAK_CLIENT_ID,required"`
		ClientSecret string `env:"KEYCLOAK_CLIENT_SECRET,required"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

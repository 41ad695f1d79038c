package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/traderhub/account-service/config"
	"github.com/traderhub/account-service/internal/controller/graphqlapi"
	kafkactrl "github.com/traderhub/account-service/internal/controller/kafka"
	infrakafka "github.com/traderhub/account-service/internal/infrastructure/kafka"
	"github.com/traderhub/account-service/internal/infrastructure/keycloak"
	"github.com/traderhub/account-service/internal/infrastructure/kms"
	"github.com/traderhub/account-service/internal/infrastructure/processor"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/internal/repo/persistent"
	"github.com/traderhub/account-service/internal/usecase/accountdata"
	"github.com/traderhub/account-service/internal/usecase/exchangekeys"
	"github.com/traderhub/account-service/internal/usecase/signupload"
	"github.com/traderhub/account-service/pkg/httpserver"
	"github.com/traderhub/account-service/pkg/kafka/consumer"
	"github.com/traderhub/account-service/pkg/kafka/producer"
	"github.com/traderhub/account-service/pkg/kmsclient"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/traderhub/account-service/pkg/postgres"
	"github.com/traderhub/account-service/pkg/s3client"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Repository

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	// kms
	kmsCtx, kmsCancel := context.WithTimeout(ctx, cfg.KMS.CfgLoadTimeout)
	defer kmsCancel()
	kmsc, err := kmsclient.New(kmsCtx, cfg.KMS.KeyID, cfg.KMS.AccessKey, cfg.KMS.SecretKey, kmsclient.Region(cfg.KMS.Region))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kmsclient.New: %w", err))
	}

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}

	eventEmitter := infrakafka.NewEventEmitter(kafkaProducer, cfg.Kafka.EventsTopic)
	defer eventEmitter.Close()

	// Attribute registry
	reg := registry.Default()

	// Use-Case

	// account data use-case
	accountDataUseCase := accountdata.New(
		reg,
		persistent.NewAccountDataRepo(pg),
		persistent.NewFileStore(s3c, cfg.S3.Bucket, cfg.S3.PublicBaseURL),
		processor.New(),
		l,
	)

	// exchange keys use-case
	exchangeKeysUseCase := exchangekeys.New(
		persistent.NewExchangeKeysRepo(pg, kms.NewEncrypter(kmsc), l),
		eventEmitter,
		l,
	)

	// upload signing use-case
	signUploadUseCase := signupload.New(reg, persistent.NewS3UploadSigner(s3c, cfg.S3.Bucket))

	// Keycloak
	authService := keycloak.NewAuthService(cfg.Keycloak.ServerURL, cfg.Keycloak.Realm)
	identityService := keycloak.NewIdentityService(
		cfg.Keycloak.ServerURL,
		cfg.Keycloak.Realm,
		cfg.Keycloak.ClientID,
		cfg.Keycloak.ClientSecret,
		l,
	)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.UploadsTopic)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}

	// Kafka as Controller
	kafkaController := kafkactrl.New(
		accountDataUseCase,
		infrakafka.NewUploadEventConsumer(kafkaConsumer),
		l,
		cfg.KafkaController.CommitTimeout,
		cfg.KafkaController.ProcessTimeout,
		runtime.NumCPU(),
	)

	// GraphQL Schema
	schema, err := graphqlapi.NewSchema(reg, accountDataUseCase, exchangeKeysUseCase, signUploadUseCase, identityService, l)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - graphqlapi.NewSchema: %w", err))
	}

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	graphqlapi.NewRouter(httpServer.App, schema, authService, l)

	// Start Components
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}
}

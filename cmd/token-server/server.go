package main

import (
	"crypto/ed25519"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/jmoiron/sqlx"
	"github.com/mitchellh/mapstructure"
	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/code-payments/token-lifecycle/pkg/app"
	"github.com/code-payments/token-lifecycle/pkg/data/operation"
	operation_memory_client "github.com/code-payments/token-lifecycle/pkg/data/operation/memory"
	operation_postgres_client "github.com/code-payments/token-lifecycle/pkg/data/operation/postgres"
	pg "github.com/code-payments/token-lifecycle/pkg/database/postgres"
	"github.com/code-payments/token-lifecycle/pkg/lifecycle"
	"github.com/code-payments/token-lifecycle/pkg/notify"
	notify_log "github.com/code-payments/token-lifecycle/pkg/notify/log"
	notify_memory "github.com/code-payments/token-lifecycle/pkg/notify/memory"
	rate_limiter "github.com/code-payments/token-lifecycle/pkg/rate"
	token_web "github.com/code-payments/token-lifecycle/pkg/server/web/token"
	"github.com/code-payments/token-lifecycle/pkg/solana"
	solana_memory_client "github.com/code-payments/token-lifecycle/pkg/solana/memory"
	"github.com/code-payments/token-lifecycle/pkg/wallet/local"
)

// Runs against an in process ledger instead of a cluster.
const memoryLedgerEndpoint = "memory"

const (
	postgresAuthPassword = "password"
	postgresAuthAwsIam   = "aws_iam"
)

type appConfig struct {
	// A cluster name, an RPC URL or "memory".
	SolanaEndpoint string `mapstructure:"solana_endpoint"`
	KeypairPath    string `mapstructure:"keypair_path"`

	// Airdrops allowed per second for each owner.
	AirdropRateLimit float64 `mapstructure:"airdrop_rate_limit"`

	NotificationCapacity int `mapstructure:"notification_capacity"`

	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDbName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Either "password" or "aws_iam". IAM auth reads credentials from the
	// default AWS chain, with AwsRegion overriding its region.
	PostgresAuth string `mapstructure:"postgres_auth"`
	AwsRegion    string `mapstructure:"aws_region"`
}

var defaultAppConfig = appConfig{
	SolanaEndpoint:       "devnet",
	AirdropRateLimit:     1.0 / 60,
	NotificationCapacity: notify_memory.DefaultCapacity,
	PostgresPort:         5432,
	PostgresAuth:         postgresAuthPassword,
}

type tokenApp struct {
	log *logrus.Entry

	db       *sqlx.DB
	handlers map[string]http.HandlerFunc

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newTokenApp() *tokenApp {
	return &tokenApp{
		log:        logrus.StandardLogger().WithField("type", "token-server"),
		shutdownCh: make(chan struct{}),
	}
}

func parseAppConfig(config app.Config) (appConfig, error) {
	res := defaultAppConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &res,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return res, err
	}

	if err := decoder.Decode(map[string]interface{}(config)); err != nil {
		return res, errors.Wrap(err, "invalid app config")
	}
	return res, nil
}

// Init implements app.App.Init
func (a *tokenApp) Init(config app.Config, _ *newrelic.Application) error {
	conf, err := parseAppConfig(config)
	if err != nil {
		return err
	}

	sc, env, err := a.newSolanaClient(conf.SolanaEndpoint)
	if err != nil {
		return err
	}

	w, err := a.loadWallet(conf.KeypairPath)
	if err != nil {
		return err
	}

	history, err := a.openHistory(conf)
	if err != nil {
		return err
	}

	recent := notify_memory.New(conf.NotificationCapacity)
	notifier := notify.Tee(recent, notify_log.New())

	var limiter rate_limiter.Limiter = &rate_limiter.NoLimiter{}
	if conf.AirdropRateLimit > 0 {
		limiter = rate_limiter.NewLocalRateLimiter(rate.Limit(conf.AirdropRateLimit))
	}

	orchestrator := lifecycle.New(
		sc,
		w,
		notifier,
		history,
		env,
		limiter,
		lifecycle.WithEnvConfigs(),
	)

	a.handlers = token_web.NewTokenServer(orchestrator, w, recent, history).GetHandlers()

	a.log.WithField("environment", string(env)).Info("token server initialized")
	return nil
}

func (a *tokenApp) newSolanaClient(endpoint string) (solana.Client, solana.Environment, error) {
	if strings.EqualFold(strings.TrimSpace(endpoint), memoryLedgerEndpoint) {
		a.log.Warn("using an in memory ledger, nothing will be persisted on chain")
		return solana_memory_client.NewClient(), solana.EnvironmentLocal, nil
	}

	env, err := solana.ParseEnvironment(endpoint)
	if err != nil {
		return nil, "", err
	}
	return solana.New(env), env, nil
}

func (a *tokenApp) loadWallet(path string) (*local.Wallet, error) {
	if len(path) > 0 {
		return local.Load(path)
	}

	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate keypair")
	}

	a.log.
		WithField("wallet", base58.Encode(key.Public().(ed25519.PublicKey))).
		Warn("no keypair configured, using an ephemeral one")
	return local.New(key), nil
}

func (a *tokenApp) openHistory(conf appConfig) (operation.Store, error) {
	if len(conf.PostgresHost) == 0 {
		return operation_memory_client.New(), nil
	}

	pgConfig := pg.Config{
		User:     conf.PostgresUser,
		Password: conf.PostgresPassword,
		Host:     conf.PostgresHost,
		Port:     conf.PostgresPort,
		DbName:   conf.PostgresDbName,
		SSLMode:  conf.PostgresSSLMode,
	}

	var db *sqlx.DB
	switch conf.PostgresAuth {
	case "", postgresAuthPassword:
		var err error
		db, err = pg.NewWithUsernameAndPassword(pgConfig)
		if err != nil {
			return nil, err
		}
	case postgresAuthAwsIam:
		awsConfig, err := external.LoadDefaultAWSConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load aws config")
		}
		if len(conf.AwsRegion) > 0 {
			awsConfig.Region = conf.AwsRegion
		}

		db, err = pg.NewWithAwsIam(pgConfig, awsConfig)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown postgres auth mode: %q", conf.PostgresAuth)
	}

	a.db = db
	return operation_postgres_client.NewFromSqlx(db), nil
}

// Handlers implements app.App.Handlers
func (a *tokenApp) Handlers() map[string]http.HandlerFunc {
	return a.handlers
}

// ShutdownChan implements app.App.ShutdownChan
func (a *tokenApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *tokenApp) Stop() {
	a.shutdownOnce.Do(func() {
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failed to close database")
			}
		}
		close(a.shutdownCh)
	})
}

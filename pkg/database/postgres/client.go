package pg

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	// Registers the "nrpgx" driver, which is pgx instrumented with New Relic
	// datastore segments.
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

const driverName = "nrpgx"

type Config struct {
	User               string
	Password           string
	Host               string
	Port               int
	DbName             string
	SSLMode            string
	MaxOpenConnections int
	MaxIdleConnections int
}

// DSN returns the connection URL for c. SSL is disabled unless set.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if len(sslMode) == 0 {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.DbName,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

// NewWithUsernameAndPassword opens and pings a connection pool using
// username and password credentials.
func NewWithUsernameAndPassword(c Config) (*sqlx.DB, error) {
	return open(c)
}

// NewWithAwsIam opens and pings a connection pool authenticated with an RDS
// IAM token in place of a password. SSL is required unless set.
//
// https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func NewWithAwsIam(c Config, awsConfig aws.Config) (*sqlx.DB, error) {
	rdsClient := rds.New(awsConfig)

	endpoint := fmt.Sprintf("%s:%d", c.Host, c.Port)
	token, err := rdsutils.BuildAuthToken(endpoint, rdsClient.Region, c.User, rdsClient.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build rds auth token")
	}

	// TODO: tokens expire after 15 minutes, so connections opened later need a
	// fresh token from a pgx BeforeConnect hook.
	c.Password = token
	if len(c.SSLMode) == 0 {
		c.SSLMode = "require"
	}
	return open(c)
}

func open(c Config) (*sqlx.DB, error) {
	db, err := sql.Open(driverName, c.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if c.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(c.MaxOpenConnections)
	}
	if c.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(c.MaxIdleConnections)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s:%d", c.Host, c.Port)
	}

	// nrpgx wraps pgx, so queries use pgx's dollar bind vars.
	return sqlx.NewDb(db, "pgx"), nil
}

package dbhelper

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DBOpener opens a database handle for a lib/pq connection string.
type DBOpener func(dataSourceName string) (*sql.DB, error)

// OpenPostgres is the production DBOpener.
func OpenPostgres(dataSourceName string) (*sql.DB, error) {
	return sql.Open("postgres", dataSourceName)
}

// DBConfig describes the master connection to the target database
type DBConfig struct {
	Host           string
	Port           string
	Database       string
	Username       string
	Password       string
	SSLMode        string
	ConnectTimeout int
}

// DataSourceName renders the config as a lib/pq key/value connection string.
// Every value is quoted so spaces and quotes in it cannot break the parse.
func (c DBConfig) DataSourceName() string {
	options := []string{
		"host=" + quoteOption(c.Host),
		"port=" + quoteOption(c.Port),
		"dbname=" + quoteOption(c.Database),
		"user=" + quoteOption(c.Username),
		"password=" + quoteOption(c.Password),
	}
	if c.SSLMode != "" {
		options = append(options, "sslmode="+quoteOption(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		options = append(options, "connect_timeout="+quoteOption(strconv.Itoa(c.ConnectTimeout)))
	}
	return strings.Join(options, " ")
}

var optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quoteOption(value string) string {
	return "'" + optionEscaper.Replace(value) + "'"
}

// SQLClient ...
type SQLClient struct {
	conn   *sql.DB
	logger *zap.Logger
}

func createSQLClient(ctx context.Context, open DBOpener, config DBConfig, logger *zap.Logger) (*SQLClient, error) {
	conn, err := open(config.DataSourceName())
	if err != nil {
		return nil, errors.Wrap(err, "unable to open database")
	}
	// sql.Open is lazy; connect now so bad credentials fail before any statement.
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "unable to connect to %s:%s/%s", config.Host, config.Port, config.Database)
	}
	return &SQLClient{conn: conn, logger: logger}, nil
}

// Close ...
func (client *SQLClient) Close() error {
	return client.conn.Close()
}

func (client *SQLClient) run(ctx context.Context, statements []string) error {
	client.logger.Debug("Begin Tx")
	tx, err := client.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin transaction")
	}
	for i, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			client.logger.Debug("Fail Tx", zap.Int("statement", i))
			if rbErr := tx.Rollback(); rbErr != nil {
				client.logger.Warn("rollback failed", zap.Error(rbErr))
			}
			return errors.Wrapf(err, "statement %d of %d failed", i+1, len(statements))
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "unable to commit transaction")
	}
	client.logger.Debug("End Tx")
	return nil
}

// grantStatements creates appUser and grants it the database and the public schema.
// CREATE USER takes no bind parameters, so names and the password are quoted instead.
// Names are folded to lower case first, as PostgreSQL does for unquoted identifiers.
func grantStatements(appUser, appPassword, database string) []string {
	user := pq.QuoteIdentifier(foldIdentifier(appUser))
	return []string{
		fmt.Sprintf("CREATE USER %s WITH PASSWORD %s", user, pq.QuoteLiteral(appPassword)),
		fmt.Sprintf("GRANT ALL ON DATABASE %s TO %s", pq.QuoteIdentifier(foldIdentifier(database)), user),
		fmt.Sprintf("GRANT ALL ON SCHEMA public TO %s", user),
	}
}

// foldIdentifier lowercases ASCII letters only.
func foldIdentifier(name string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, name)
}

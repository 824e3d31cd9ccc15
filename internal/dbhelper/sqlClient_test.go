package dbhelper

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDataSourceName(t *testing.T) {
	config := DBConfig{
		Host:           "airflow-db.abc123.eu-west-1.rds.amazonaws.com",
		Port:           "5432",
		Database:       "airflow",
		Username:       "postgres",
		Password:       "p@ss:w/rd secret",
		SSLMode:        "require",
		ConnectTimeout: 5,
	}

	assert.Equal(t,
		"host='airflow-db.abc123.eu-west-1.rds.amazonaws.com' port='5432' dbname='airflow' user='postgres' password='p@ss:w/rd secret' sslmode='require' connect_timeout='5'",
		config.DataSourceName())
}

func TestDataSourceNameWithoutOptions(t *testing.T) {
	config := DBConfig{Host: "localhost", Port: "5432", Database: "airflow", Username: "postgres", Password: "pw"}
	assert.Equal(t, "host='localhost' port='5432' dbname='airflow' user='postgres' password='pw'", config.DataSourceName())
}

func TestDataSourceNameQuoting(t *testing.T) {
	var tests = []struct {
		name     string
		config   DBConfig
		expected string
	}{
		{"space in host", DBConfig{Host: "db host.example", Port: "5432", Database: "airflow", Username: "postgres", Password: "master-pass"},
			`host='db host.example' port='5432' dbname='airflow' user='postgres' password='master-pass'`},
		{"quote and backslash", DBConfig{Host: "h", Port: "5432", Database: "d", Username: "postgres", Password: `it's a \ secret`},
			`host='h' port='5432' dbname='d' user='postgres' password='it\'s a \\ secret'`},
		{"percent and hash", DBConfig{Host: "h", Port: "5432", Database: "d", Username: "postgres", Password: "Sup3r#Secret%zz=Token"},
			`host='h' port='5432' dbname='d' user='postgres' password='Sup3r#Secret%zz=Token'`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dsn := test.config.DataSourceName()
			assert.Equal(t, test.expected, dsn)

			_, err := pq.NewConnector(dsn)
			assert.NoError(t, err)
		})
	}
}

func TestGrantStatements(t *testing.T) {
	var tests = []struct {
		user     string
		password string
		database string
		expected []string
	}{
		{"airflow", "airflow-pass", "airflow", []string{
			`CREATE USER "airflow" WITH PASSWORD 'airflow-pass'`,
			`GRANT ALL ON DATABASE "airflow" TO "airflow"`,
			`GRANT ALL ON SCHEMA public TO "airflow"`,
		}},
		{`airflow"; DROP ROLE postgres; --`, `it's`, "prod-db", []string{
			`CREATE USER "airflow""; DROP ROLE postgres; --" WITH PASSWORD 'it''s'`,
			`GRANT ALL ON DATABASE "prod-db" TO "airflow""; DROP ROLE postgres; --"`,
			`GRANT ALL ON SCHEMA public TO "airflow""; DROP ROLE postgres; --"`,
		}},
		{"Airflow_User", "pw", "AirflowDB", []string{
			`CREATE USER "airflow_user" WITH PASSWORD 'pw'`,
			`GRANT ALL ON DATABASE "airflowdb" TO "airflow_user"`,
			`GRANT ALL ON SCHEMA public TO "airflow_user"`,
		}},
		{"airflow", `back\slash`, "airflow", []string{
			`CREATE USER "airflow" WITH PASSWORD  E'back\\slash'`,
			`GRANT ALL ON DATABASE "airflow" TO "airflow"`,
			`GRANT ALL ON SCHEMA public TO "airflow"`,
		}},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, grantStatements(test.user, test.password, test.database))
	}
}

func newMockClient(t *testing.T) (*SQLClient, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return &SQLClient{conn: db, logger: zap.NewNop()}, mock
}

func TestRunCommits(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE a (id int)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b (id int)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := client.run(context.Background(), []string{"CREATE TABLE a (id int)", "CREATE TABLE b (id int)"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBack(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE a (id int)").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b (id int)").WillReturnError(errors.New("Wrong sql"))
	mock.ExpectRollback()

	err := client.run(context.Background(), []string{"CREATE TABLE a (id int)", "CREATE TABLE b (id int)", "CREATE TABLE c (id int)"})

	assert.EqualError(t, err, "statement 2 of 3 failed: Wrong sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunBeginAndCommitErrors(t *testing.T) {
	client, mock := newMockClient(t)
	mock.ExpectBegin().WillReturnError(errors.New("bad connection"))

	err := client.run(context.Background(), []string{"SELECT 1"})
	assert.EqualError(t, err, "unable to begin transaction: bad connection")
	assert.NoError(t, mock.ExpectationsWereMet())

	client, mock = newMockClient(t)
	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

	err = client.run(context.Background(), []string{"SELECT 1"})
	assert.EqualError(t, err, "unable to commit transaction: could not serialize access")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSQLClient(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("password authentication failed for user \"postgres\""))
	mock.ExpectClose()

	var dsn string
	open := func(dataSourceName string) (*sql.DB, error) {
		dsn = dataSourceName
		return db, nil
	}

	_, err = createSQLClient(context.Background(), open, DBConfig{
		Host: "h", Port: "5432", Database: "d", Username: "postgres", Password: "wrong",
	}, zap.NewNop())

	assert.EqualError(t, err, `unable to connect to h:5432/d: password authentication failed for user "postgres"`)
	assert.Equal(t, "host='h' port='5432' dbname='d' user='postgres' password='wrong'", dsn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package airflowconfig

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Placeholder tokens of the airflow.cfg template
const (
	FernetKeyToken   = "#{FERNET_KEY}"
	SecretKeyToken   = "#{SECRET_KEY}"
	PostgresURIToken = "#{POSTGRES_URI}"
	RedisURIToken    = "#{REDIS_URI}"
)

// Values resolved for one rendering
type Values struct {
	FernetKey   string
	SecretKey   string
	PostgresURI string
	RedisURI    string
}

// DatabaseURI builds the SQLAlchemy connection string used by Airflow's metadata database.
// Parts are inserted verbatim.
func DatabaseURI(user, password, host, port, dbName string) string {
	return fmt.Sprintf("postgresql+psycopg2://%s:%s@%s:%s/%s", user, password, host, port, dbName)
}

// CacheURI builds the Celery broker URL on database 0.
// The password is inserted verbatim, without URL escaping.
func CacheURI(password, host, port string) string {
	return fmt.Sprintf("redis://:%s@%s:%s/0", password, host, port)
}

// checkCacheEndpoint makes sure a redis client can parse the broker host and port.
// Only host and port are parsed; the password never appears in the error.
func checkCacheEndpoint(host, port string) error {
	if _, err := redis.ParseURL("redis://" + net.JoinHostPort(host, port) + "/0"); err != nil {
		return errors.Wrap(err, "invalid redis endpoint")
	}
	return nil
}

// Render replaces every occurrence of each token, one token after the other.
// A template without tokens is returned unchanged.
func Render(template string, values Values) string {
	replacements := []struct{ token, value string }{
		{FernetKeyToken, values.FernetKey},
		{SecretKeyToken, values.SecretKey},
		{PostgresURIToken, values.PostgresURI},
		{RedisURIToken, values.RedisURI},
	}
	for _, r := range replacements {
		template = strings.ReplaceAll(template, r.token, r.value)
	}
	return template
}

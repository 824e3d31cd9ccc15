package airflowconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURIs(t *testing.T) {
	assert.Equal(t, "postgresql+psycopg2://u:p@h:5432/d", DatabaseURI("u", "p", "h", "5432", "d"))
	assert.Equal(t, "redis://:cp@ch:6379/0", CacheURI("cp", "ch", "6379"))
}

func TestRenderAllTokens(t *testing.T) {
	rendered := Render("a=#{FERNET_KEY} b=#{SECRET_KEY} c=#{POSTGRES_URI} d=#{REDIS_URI}", Values{
		FernetKey:   "F1",
		SecretKey:   "S1",
		PostgresURI: DatabaseURI("u", "p", "h", "5432", "d"),
		RedisURI:    CacheURI("cp", "ch", "6379"),
	})

	assert.Equal(t, "a=F1 b=S1 c=postgresql+psycopg2://u:p@h:5432/d d=redis://:cp@ch:6379/0", rendered)
}

func TestRender(t *testing.T) {
	values := Values{FernetKey: "F1", SecretKey: "S1", PostgresURI: "pg", RedisURI: "rd"}

	var tests = []struct {
		name     string
		template string
		expected string
	}{
		{"no tokens", "[core]\nexecutor = CeleryExecutor\n# #{UNKNOWN} stays\n", "[core]\nexecutor = CeleryExecutor\n# #{UNKNOWN} stays\n"},
		{"empty", "", ""},
		{"every occurrence", "#{FERNET_KEY}#{FERNET_KEY} #{REDIS_URI}\n#{REDIS_URI}", "F1F1 rd\nrd"},
		{"unicode kept", "été=#{SECRET_KEY} ✓", "été=S1 ✓"},
		{"partial token", "#{FERNET_KEY #{SECRET_KEY}}", "#{FERNET_KEY S1}"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Render(test.template, values))
		})
	}
}

func TestRenderIsSequential(t *testing.T) {
	// a value containing a later token is itself substituted
	rendered := Render("#{FERNET_KEY}", Values{FernetKey: "#{SECRET_KEY}", SecretKey: "S1"})
	assert.Equal(t, "S1", rendered)

	// but never an earlier one
	rendered = Render("#{SECRET_KEY}", Values{FernetKey: "F1", SecretKey: "#{FERNET_KEY}"})
	assert.Equal(t, "#{FERNET_KEY}", rendered)
}

func TestCheckCacheEndpoint(t *testing.T) {
	assert.NoError(t, checkCacheEndpoint("airflow-redis.abc.cache.amazonaws.com", "6379"))

	err := checkCacheEndpoint("ch", "not-a-port")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "invalid redis endpoint")
	}
}

func TestCacheURIKeepsPasswordVerbatim(t *testing.T) {
	for _, password := range []string{"Sup3rSecret%zzToken", "Sup3r#Secret%Token", "a?b/c"} {
		assert.Equal(t, "redis://:"+password+"@ch:6379/0", CacheURI(password, "ch", "6379"))
	}
}

package config

import (
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable read by the handlers.
const EnvPrefix = "AIRFLOW_HELPER_"

// Config holds the runtime configuration shared by both custom resource handlers
type Config struct {
	// Region is taken from the Lambda environment; empty means the SDK default chain.
	Region   string         `koanf:"region"`
	Log      LogConfig      `koanf:"log"`
	DBHelper DBHelperConfig `koanf:"dbhelper"`
	Airflow  AirflowConfig  `koanf:"airflow"`
}

// LogConfig ...
type LogConfig struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// DBHelperConfig configures the database user provisioner
type DBHelperConfig struct {
	MasterUserParam     string `koanf:"master_user_param"`
	MasterPasswordParam string `koanf:"master_password_param"`
	AppUserParam        string `koanf:"app_user_param"`
	AppPasswordParam    string `koanf:"app_password_param"`
	// MasterSecretID switches the master credentials to a Secrets Manager secret.
	MasterSecretID string `koanf:"master_secret_id"`
	SSLMode        string `koanf:"ssl_mode"`
	ConnectTimeout int    `koanf:"connect_timeout"` // seconds
}

// AirflowConfig configures the airflow.cfg renderer
type AirflowConfig struct {
	TemplateKey        string `koanf:"template_key"`
	DestinationKey     string `koanf:"destination_key"`
	PhysicalResourceID string `koanf:"physical_resource_id"`
}

var envKeys = map[string]string{
	"log_level":             "log.level",
	"log_development":       "log.development",
	"master_user_param":     "dbhelper.master_user_param",
	"master_password_param": "dbhelper.master_password_param",
	"app_user_param":        "dbhelper.app_user_param",
	"app_password_param":    "dbhelper.app_password_param",
	"master_secret_id":      "dbhelper.master_secret_id",
	"ssl_mode":              "dbhelper.ssl_mode",
	"connect_timeout":       "dbhelper.connect_timeout",
	"template_key":          "airflow.template_key",
	"destination_key":       "airflow.destination_key",
	"physical_resource_id":  "airflow.physical_resource_id",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"region":          "",
		"log.level":       "info",
		"log.development": false,

		"dbhelper.master_user_param":     "/airflow/postgres/masteruser",
		"dbhelper.master_password_param": "/airflow/postgres/masterpassword",
		"dbhelper.app_user_param":        "/airflow/postgres/userairflow",
		"dbhelper.app_password_param":    "/airflow/postgres/passwordairflow",
		"dbhelper.master_secret_id":      "",
		"dbhelper.ssl_mode":              "require",
		"dbhelper.connect_timeout":       10,

		"airflow.template_key":         "config-templates/airflow.cfg",
		"airflow.destination_key":      "config/airflow.cfg",
		"airflow.physical_resource_id": "AirflowConfigCreator",
	}
}

// Load reads the configuration from defaults and environment variables.
// Priority: Environment variables > Defaults
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	// AWS_REGION is set by the Lambda runtime, AWS_DEFAULT_REGION by older tooling.
	if err := k.Load(env.Provider("AWS_", ".", func(s string) string {
		switch s {
		case "AWS_REGION":
			return "region"
		case "AWS_DEFAULT_REGION":
			return "default_region"
		}
		return ""
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load region")
	}

	// AIRFLOW_HELPER_LOG_LEVEL=debug -> log.level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
		},
	}); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if cfg.Region == "" {
		cfg.Region = k.String("default_region")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks values that would otherwise only fail mid-invocation
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.Errorf("unknown log level %q", c.Log.Level)
	}

	switch c.DBHelper.SSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		return errors.Errorf("unsupported ssl mode %q", c.DBHelper.SSLMode)
	}
	if c.DBHelper.ConnectTimeout < 0 {
		return errors.New("connect timeout must not be negative")
	}
	if c.DBHelper.MasterSecretID == "" && (c.DBHelper.MasterUserParam == "" || c.DBHelper.MasterPasswordParam == "") {
		return errors.New("master credentials need either a secret id or both parameter names")
	}
	if c.DBHelper.AppUserParam == "" || c.DBHelper.AppPasswordParam == "" {
		return errors.New("app user and password parameter names are required")
	}

	if c.Airflow.TemplateKey == "" || c.Airflow.DestinationKey == "" {
		return errors.New("template and destination keys are required")
	}
	if c.Airflow.TemplateKey == c.Airflow.DestinationKey {
		return errors.New("template and destination keys must differ")
	}
	if c.Airflow.PhysicalResourceID == "" {
		return errors.New("physical resource id is required")
	}
	return nil
}

package credentials

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-secretsmanager-caching-go/secretcache"
	"github.com/pkg/errors"

	"airflowResources/internal/params"
)

// Credentials of the database master user
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Source resolves the master credentials used to provision the application user.
type Source interface {
	MasterCredentials(ctx context.Context) (Credentials, error)
}

// ParameterSource reads the user name and password from two SSM parameters.
type ParameterSource struct {
	Store         params.Store
	UserParam     string
	PasswordParam string
}

// MasterCredentials ...
func (s *ParameterSource) MasterCredentials(ctx context.Context) (Credentials, error) {
	user, err := s.Store.GetParameter(ctx, s.UserParam, false)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "unable to resolve master user")
	}
	password, err := s.Store.GetParameter(ctx, s.PasswordParam, true)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "unable to resolve master password")
	}
	return Credentials{Username: user, Password: password}, nil
}

// SecretSource reads a Secrets Manager secret in the RDS master secret format:
// {"username": "...", "password": "...", ...}
type SecretSource struct {
	cache    *secretcache.Cache
	secretID string
}

// NewSecretSource ...
func NewSecretSource(cache *secretcache.Cache, secretID string) *SecretSource {
	return &SecretSource{cache: cache, secretID: secretID}
}

// MasterCredentials returns the AWSCURRENT version of the secret.
func (s *SecretSource) MasterCredentials(ctx context.Context) (Credentials, error) {
	if s.secretID == "" {
		return Credentials{}, errors.New("Missing master secret id")
	}

	secretString, err := s.cache.GetSecretString(s.secretID)
	if err != nil {
		return Credentials{}, errors.Wrapf(err, "unable to get secret %q", s.secretID)
	}
	if secretString == "" {
		return Credentials{}, errors.Errorf("secret %q is empty", s.secretID)
	}

	creds := Credentials{}
	if err := json.Unmarshal([]byte(secretString), &creds); err != nil {
		return Credentials{}, errors.Wrapf(err, "unable to parse secret %q", s.secretID)
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, errors.Errorf("secret %q has no username or password", s.secretID)
	}
	return creds, nil
}

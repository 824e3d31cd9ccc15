package params

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/pkg/errors"
)

// Store resolves secret references held in SSM Parameter Store.
type Store interface {
	GetParameter(ctx context.Context, name string, decrypt bool) (string, error)
}

// SSMStore ...
type SSMStore struct {
	client ssmiface.SSMAPI
}

// NewSSMStore ...
func NewSSMStore(client ssmiface.SSMAPI) *SSMStore {
	return &SSMStore{client: client}
}

// GetParameter returns the current value of name. SecureString parameters need decrypt.
func (s *SSMStore) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	if name == "" {
		return "", errors.New("Missing parameter name")
	}

	input := &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(decrypt),
	}
	result, err := s.client.GetParameterWithContext(ctx, input)
	if err != nil {
		return "", errors.Wrapf(err, "unable to get parameter %q", name)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", errors.Errorf("parameter %q has no value", name)
	}
	return *result.Parameter.Value, nil
}

package testutil

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/stretchr/testify/mock"
)

// MockResponder records every response a handler sends.
type MockResponder struct {
	mock.Mock
}

func (m *MockResponder) Send(ctx context.Context, event cfn.Event, status cfn.StatusType, data map[string]interface{}, physicalResourceID string, reason string) error {
	args := m.Called(ctx, event, status, data, physicalResourceID, reason)
	return args.Error(0)
}

// MockParameterStore answers lookups registered with On or Expect.
type MockParameterStore struct {
	mock.Mock
}

func (m *MockParameterStore) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	args := m.Called(ctx, name, decrypt)
	return args.String(0), args.Error(1)
}

// Expect registers a successful lookup of name.
func (m *MockParameterStore) Expect(name string, decrypt bool, value string) *mock.Call {
	return m.On("GetParameter", mock.Anything, name, decrypt).Return(value, nil).Once()
}

// MockObjectStore stands in for the S3 bucket holding the templates.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Download(ctx context.Context, bucket, key, versionID string) ([]byte, error) {
	args := m.Called(ctx, bucket, key, versionID)
	content, _ := args.Get(0).([]byte)
	return content, args.Error(1)
}

func (m *MockObjectStore) Upload(ctx context.Context, bucket, key string, body []byte) error {
	args := m.Called(ctx, bucket, key, body)
	return args.Error(0)
}

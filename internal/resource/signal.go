package resource

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/pkg/errors"
)

// ErrAlreadySignaled is returned when a second terminal status is attempted for one event.
var ErrAlreadySignaled = errors.New("a response was already sent for this request")

// ErrPanicked is the failure reported when the handler panics before responding.
var ErrPanicked = errors.New("function panicked, see log stream for details")

// Signal sends at most one response per custom resource event.
type Signal struct {
	responder Responder
	event     cfn.Event
	sent      bool
}

// NewSignal ...
func NewSignal(responder Responder, event cfn.Event) *Signal {
	return &Signal{responder: responder, event: event}
}

// Succeed reports SUCCESS with data. An empty physicalResourceID keeps the existing one.
func (s *Signal) Succeed(ctx context.Context, data map[string]interface{}, physicalResourceID string) error {
	return s.send(ctx, cfn.StatusSuccess, data, physicalResourceID, "")
}

// Fail reports FAILED with empty data and the error message as reason.
func (s *Signal) Fail(ctx context.Context, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return s.send(ctx, cfn.StatusFailed, nil, "", reason)
}

// Sent reports whether a response has been handed to the responder.
func (s *Signal) Sent() bool {
	return s.sent
}

func (s *Signal) send(ctx context.Context, status cfn.StatusType, data map[string]interface{}, physicalResourceID string, reason string) error {
	if s.sent {
		return ErrAlreadySignaled
	}
	// marked before delivery: a failed send is never repeated
	s.sent = true

	if data == nil {
		data = map[string]interface{}{}
	}
	return s.responder.Send(ctx, s.event, status, data, physicalResourceID, reason)
}

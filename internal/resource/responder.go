package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/pkg/errors"
)

// Responder delivers the terminal status of a custom resource request to CloudFormation.
type Responder interface {
	Send(ctx context.Context, event cfn.Event, status cfn.StatusType, data map[string]interface{}, physicalResourceID string, reason string) error
}

// DefaultResponseTimeout bounds a single PUT to the ResponseURL.
const DefaultResponseTimeout = 30 * time.Second

// CfnResponder PUTs the response document to the pre-signed ResponseURL of the event.
type CfnResponder struct {
	client *http.Client
}

// NewResponder ...
func NewResponder() *CfnResponder {
	return &CfnResponder{client: &http.Client{Timeout: DefaultResponseTimeout}}
}

// Send builds the cfn.Response for event. Without an explicit physicalResourceID the
// event's own id is kept, and the log stream name is used when that is empty too.
func (r *CfnResponder) Send(ctx context.Context, event cfn.Event, status cfn.StatusType, data map[string]interface{}, physicalResourceID string, reason string) error {
	response := cfn.NewResponse(&event)
	response.Status = status
	response.Data = data
	if physicalResourceID != "" {
		response.PhysicalResourceID = physicalResourceID
	}
	if response.PhysicalResourceID == "" {
		response.PhysicalResourceID = lambdacontext.LogStreamName
	}

	details := fmt.Sprintf("See the details in CloudWatch Log Stream: %s", lambdacontext.LogStreamName)
	if reason != "" {
		response.Reason = reason + ". " + details
	} else {
		response.Reason = details
	}

	if err := r.put(ctx, event.ResponseURL, response); err != nil {
		return errors.Wrapf(err, "unable to send %s response", status)
	}
	return nil
}

// put mirrors cfn.Response.Send with the request bound to ctx.
// The pre-signed URL expects no Content-Type header.
func (r *CfnResponder) put(ctx context.Context, url string, response *cfn.Response) error {
	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	res, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusOK {
		return errors.Errorf("invalid status code. got: %d", res.StatusCode)
	}
	return nil
}

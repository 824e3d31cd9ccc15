package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"airflowResources/internal/config"
)

// New creates a zap logger for the Lambda log stream
func New(cfg config.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level(cfg.Level))
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapConfig.Build()
}

func level(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ForInvocation scopes the base logger to a single custom resource request.
func ForInvocation(ctx context.Context, base *zap.Logger, event cfn.Event) *zap.Logger {
	fields := []zap.Field{
		zap.String("request_type", string(event.RequestType)),
		zap.String("logical_resource_id", event.LogicalResourceID),
		zap.String("stack_id", event.StackID),
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		fields = append(fields, zap.String("aws_request_id", lc.AwsRequestID))
	}
	return base.With(fields...)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ErrorFields describes err as errorType, errorMessage and stackTrace fields.
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	return []zap.Field{
		zap.String("errorType", errorType(err)),
		zap.String("errorMessage", err.Error()),
		zap.Strings("stackTrace", stackTrace(err)),
	}
}

func errorType(err error) string {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code()
	}
	return fmt.Sprintf("%T", errors.Cause(err))
}

// stackTrace returns the frames recorded by the innermost pkg/errors wrapper.
func stackTrace(err error) []string {
	var deepest stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			deepest = st
		}
	}
	if deepest == nil {
		return []string{}
	}

	trace := deepest.StackTrace()
	lines := make([]string, 0, len(trace))
	for _, frame := range trace {
		lines = append(lines, strings.ReplaceAll(fmt.Sprintf("%+v", frame), "\n\t", " "))
	}
	return lines
}

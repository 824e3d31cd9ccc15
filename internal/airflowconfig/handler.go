package airflowconfig

import (
	"context"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"airflowResources/internal/config"
	"airflowResources/internal/logging"
	"airflowResources/internal/params"
	"airflowResources/internal/resource"
)

// ErrTemplateNotText is returned when the downloaded template is not valid UTF-8.
var ErrTemplateNotText = errors.New("template is not valid UTF-8 text")

// Properties of the airflow.cfg custom resource
type Properties struct {
	BucketName string `mapstructure:"BucketName" validate:"required"`
	Airflow    struct {
		ConfigVersion string `mapstructure:"ConfigVersion"`
		FernetKey     string `mapstructure:"FernetKey" validate:"required"`
		SecretKey     string `mapstructure:"SecretKey" validate:"required"`
	} `mapstructure:"Airflow"`
	Database struct {
		User     string `mapstructure:"User" validate:"required"`
		Password string `mapstructure:"Password" validate:"required"`
		Address  string `mapstructure:"Address" validate:"required"`
		Port     string `mapstructure:"Port" validate:"required,numeric"`
		DbName   string `mapstructure:"DbName" validate:"required"`
	} `mapstructure:"RDSUri"`
	Cache struct {
		Password string `mapstructure:"Password" validate:"required"`
		Address  string `mapstructure:"Address" validate:"required"`
		Port     string `mapstructure:"Port" validate:"required,numeric"`
	} `mapstructure:"RedisUri"`
}

// ObjectStore reads the template and writes the rendered configuration.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key, versionID string) ([]byte, error)
	Upload(ctx context.Context, bucket, key string, body []byte) error
}

// LambdaHandler renders airflow.cfg from its template and the deployment secrets.
type LambdaHandler struct {
	params    params.Store
	objects   ObjectStore
	responder resource.Responder
	config    config.AirflowConfig
	logger    *zap.Logger
}

// CreateLambdaHandler ...
func CreateLambdaHandler(store params.Store, objects ObjectStore, responder resource.Responder, cfg config.AirflowConfig, logger *zap.Logger) *LambdaHandler {
	return &LambdaHandler{
		params:    store,
		objects:   objects,
		responder: responder,
		config:    cfg,
		logger:    logger,
	}
}

// Handle processes one CloudFormation request and sends exactly one response.
// The returned error is only set when the response could not be delivered.
func (h *LambdaHandler) Handle(ctx context.Context, event cfn.Event) error {
	logger := logging.ForInvocation(ctx, h.logger, event)
	signal := resource.NewSignal(h.responder, event)
	logger.Info("received event")

	defer func() {
		if r := recover(); r != nil {
			if !signal.Sent() {
				if err := signal.Fail(ctx, resource.ErrPanicked); err != nil {
					logger.Error("unable to report panic", zap.Error(err))
				}
			}
			logger.Error("panic while rendering airflow configuration", zap.Any("panic", r), zap.Stack("stack"))
			panic(r)
		}
	}()

	if event.RequestType == cfn.RequestDelete {
		return signal.Succeed(ctx, nil, "")
	}

	bucket, err := h.render(ctx, event, logger)
	if err != nil {
		sendErr := signal.Fail(ctx, err)
		logger.Error("unable to render airflow configuration", logging.ErrorFields(err)...)
		return sendErr
	}
	return signal.Succeed(ctx, map[string]interface{}{"BucketName": bucket}, h.config.PhysicalResourceID)
}

func (h *LambdaHandler) render(ctx context.Context, event cfn.Event, logger *zap.Logger) (string, error) {
	props := Properties{}
	if err := resource.DecodeProperties(event.ResourceProperties, &props); err != nil {
		return "", err
	}
	version := props.Airflow.ConfigVersion

	dbPassword, err := h.params.GetParameter(ctx, props.Database.Password, true)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve database password")
	}
	values := Values{
		PostgresURI: DatabaseURI(props.Database.User, dbPassword, props.Database.Address, props.Database.Port, props.Database.DbName),
	}

	cachePassword, err := h.params.GetParameter(ctx, props.Cache.Password, true)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve redis password")
	}
	if err := checkCacheEndpoint(props.Cache.Address, props.Cache.Port); err != nil {
		return "", err
	}
	values.RedisURI = CacheURI(cachePassword, props.Cache.Address, props.Cache.Port)

	if values.FernetKey, err = h.params.GetParameter(ctx, props.Airflow.FernetKey, true); err != nil {
		return "", errors.Wrap(err, "unable to resolve fernet key")
	}
	if values.SecretKey, err = h.params.GetParameter(ctx, props.Airflow.SecretKey, true); err != nil {
		return "", errors.Wrap(err, "unable to resolve secret key")
	}

	template, err := h.objects.Download(ctx, props.BucketName, h.config.TemplateKey, version)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(template) {
		return "", errors.Wrapf(ErrTemplateNotText, "s3://%s/%s", props.BucketName, h.config.TemplateKey)
	}
	logger.Info("Template downloaded",
		zap.String("bucket", props.BucketName),
		zap.String("key", h.config.TemplateKey),
		zap.String("version", version),
		zap.Int("size", len(template)))

	rendered := Render(string(template), values)
	if err := h.objects.Upload(ctx, props.BucketName, h.config.DestinationKey, []byte(rendered)); err != nil {
		return "", err
	}
	logger.Info("Configuration uploaded", zap.String("bucket", props.BucketName), zap.String("key", h.config.DestinationKey))
	return props.BucketName, nil
}

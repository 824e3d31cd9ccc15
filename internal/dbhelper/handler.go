package dbhelper

import (
	"context"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"airflowResources/internal/config"
	"airflowResources/internal/credentials"
	"airflowResources/internal/logging"
	"airflowResources/internal/params"
	"airflowResources/internal/resource"
)

// Properties of the database user custom resource
type Properties struct {
	Database struct {
		DbName  string `mapstructure:"DbName" validate:"required"`
		Address string `mapstructure:"Address" validate:"required"`
		Port    string `mapstructure:"Port" validate:"required,numeric"`
	} `mapstructure:"RDSUri"`
}

// LambdaHandler creates the Airflow application user on the RDS database.
type LambdaHandler struct {
	params    params.Store
	master    credentials.Source
	openDB    DBOpener
	responder resource.Responder
	config    config.DBHelperConfig
	logger    *zap.Logger
}

// CreateLambdaHandler ...
func CreateLambdaHandler(store params.Store, master credentials.Source, openDB DBOpener, responder resource.Responder, cfg config.DBHelperConfig, logger *zap.Logger) *LambdaHandler {
	return &LambdaHandler{
		params:    store,
		master:    master,
		openDB:    openDB,
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
			logger.Error("panic while creating database user", zap.Any("panic", r), zap.Stack("stack"))
			if !signal.Sent() {
				if err := signal.Fail(ctx, resource.ErrPanicked); err != nil {
					logger.Error("unable to report panic", zap.Error(err))
				}
			}
			panic(r)
		}
	}()

	if event.RequestType == cfn.RequestDelete {
		// the user is kept on delete
		return signal.Succeed(ctx, nil, "")
	}

	if err := h.provision(ctx, event, logger); err != nil {
		logger.Error("unable to create database user", logging.ErrorFields(err)...)
		return signal.Fail(ctx, err)
	}
	return signal.Succeed(ctx, nil, event.LogicalResourceID)
}

func (h *LambdaHandler) provision(ctx context.Context, event cfn.Event, logger *zap.Logger) error {
	props := Properties{}
	if err := resource.DecodeProperties(event.ResourceProperties, &props); err != nil {
		return err
	}

	master, err := h.master.MasterCredentials(ctx)
	if err != nil {
		return err
	}
	appUser, err := h.params.GetParameter(ctx, h.config.AppUserParam, false)
	if err != nil {
		return errors.Wrap(err, "unable to resolve application user")
	}
	appPassword, err := h.params.GetParameter(ctx, h.config.AppPasswordParam, true)
	if err != nil {
		return errors.Wrap(err, "unable to resolve application password")
	}
	// postgres truncates identifiers to 63 bytes
	if err := resource.ValidateVar("application user", appUser, "required,max=63"); err != nil {
		return err
	}
	logger.Info("Creating user", zap.String("user", appUser), zap.String("database", props.Database.DbName))

	client, err := createSQLClient(ctx, h.openDB, DBConfig{
		Host:           props.Database.Address,
		Port:           props.Database.Port,
		Database:       props.Database.DbName,
		Username:       master.Username,
		Password:       master.Password,
		SSLMode:        h.config.SSLMode,
		ConnectTimeout: h.config.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.run(ctx, grantStatements(appUser, appPassword, props.Database.DbName)); err != nil {
		return err
	}
	logger.Info("User created successfully", zap.String("user", appUser))
	return nil
}

package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-secretsmanager-caching-go/secretcache"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"airflowResources/internal/config"
	"airflowResources/internal/credentials"
	"airflowResources/internal/dbhelper"
	"airflowResources/internal/logging"
	"airflowResources/internal/params"
	"airflowResources/internal/resource"
)

var handler *dbhelper.LambdaHandler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("unable to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("unable to create logger: %v", err)
	}

	awsConfig := aws.NewConfig()
	if cfg.Region != "" {
		awsConfig = awsConfig.WithRegion(cfg.Region)
	}
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		SharedConfigState: session.SharedConfigEnable,
	}))
	store := params.NewSSMStore(ssm.New(sess))

	var master credentials.Source = &credentials.ParameterSource{
		Store:         store,
		UserParam:     cfg.DBHelper.MasterUserParam,
		PasswordParam: cfg.DBHelper.MasterPasswordParam,
	}
	if cfg.DBHelper.MasterSecretID != "" {
		cache, err := secretcache.New(func(c *secretcache.Cache) {
			c.Client = secretsmanager.New(sess)
		})
		if err != nil {
			logger.Fatal("unable to create secret cache", zap.Error(err))
		}
		master = credentials.NewSecretSource(cache, cfg.DBHelper.MasterSecretID)
		logger.Info("master credentials from Secrets Manager", zap.String("secret_id", cfg.DBHelper.MasterSecretID))
	}

	handler = dbhelper.CreateLambdaHandler(store, master, dbhelper.OpenPostgres, resource.NewResponder(), cfg.DBHelper, logger)
}

func main() {
	lambda.Start(handler.Handle)
}

package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/ssm"

	"airflowResources/internal/airflowconfig"
	"airflowResources/internal/config"
	"airflowResources/internal/logging"
	"airflowResources/internal/objectstore"
	"airflowResources/internal/params"
	"airflowResources/internal/resource"
)

var handler *airflowconfig.LambdaHandler

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

	handler = airflowconfig.CreateLambdaHandler(
		params.NewSSMStore(ssm.New(sess)),
		objectstore.NewS3Store(s3.New(sess)),
		resource.NewResponder(),
		cfg.Airflow,
		logger,
	)
}

func main() {
	lambda.Start(handler.Handle)
}

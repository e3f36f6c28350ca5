package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Elyes-Bali/UniProfs-UI/app"
	"github.com/Elyes-Bali/UniProfs-UI/app/config"
	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Style: "json", Level: cfg.Logs.Level})
	gin.SetMode(gin.ReleaseMode)

	// Connections live for the container's lifetime, so cleanup is never called.
	srv, _, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}

	ginLambda = ginadapter.New(srv.NewRouter())
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}

package main

import (
	"context"
	"log"

	"github.com/Skibfizz/studydrop-backend/app"
	"github.com/Skibfizz/studydrop-backend/app/config"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	billing := app.NewStripeBilling(cfg.Stripe.SecretKey)

	gen, err := app.NewGeminiGenerator(context.Background(), cfg.Gemini)
	if err != nil {
		log.Fatalf("failed to initialize Gemini: %v", err)
	}

	api := app.NewAPI(store, billing, gen, cfg, nil)
	router, err := api.NewRouter()
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}

	ginLambda = ginadapter.New(router)
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}

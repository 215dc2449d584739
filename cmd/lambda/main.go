// Package main provides the AWS Lambda entry point for the shopping list API.
package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bac-dam-1991/shopping-list/internal/di"
)

func main() {
	injector := di.NewLambdaContainer()

	handler, err := di.BootstrapLambda(injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap lambda: %v\n", err)
		_ = injector.Shutdown()
		os.Exit(1)
	}

	// The runtime reuses this process across invocations; the store
	// connection stays open until the sandbox is frozen or recycled.
	lambda.Start(handler.Handle)
}

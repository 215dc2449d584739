package providers

import (
	"github.com/samber/do/v2"

	"github.com/bac-dam-1991/shopping-list/internal/api"
	"github.com/bac-dam-1991/shopping-list/internal/lambdaproxy"
	"github.com/bac-dam-1991/shopping-list/internal/logger"
)

// ProvideLambdaHandler provides the API Gateway entry point.
func ProvideLambdaHandler(i do.Injector) (*lambdaproxy.Handler, error) {
	log := do.MustInvoke[*logger.Logger](i)
	server := do.MustInvoke[*api.Server](i)

	return lambdaproxy.New(server, log.Logger), nil
}

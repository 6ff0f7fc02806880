package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/routesales_device/appctx"
)

// Correlation ids tie a commit's outbox records to the UI action that
// produced them; the app shell sets one per user action.
func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

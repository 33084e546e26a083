package requestdata

import (
	"context"

	"github.com/reelpost/reelpost-backend/internal/types"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// GetIdentity returns the caller identity from the request context, or a zero
// Identity when the request is unauthenticated.
func GetIdentity(ctx context.Context) types.Identity {
	rd := GetRequestData(ctx)
	if rd == nil {
		return types.Identity{}
	}
	return rd.Identity
}

type RequestData struct {
	TokenString string
	Identity    types.Identity
}

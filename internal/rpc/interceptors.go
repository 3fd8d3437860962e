package rpc

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"go.uber.org/zap"

	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/middleware"
)

// AuthConfig holds control plane authentication
type AuthConfig struct {
	// APIKey is the key every caller must present
	APIKey string
	// DevMode disables authentication (for development only)
	DevMode bool
}

var errUnauthenticated = errors.New("missing or invalid api key")

// healthCheckProcedures are served without a key
var healthCheckProcedures = map[string]bool{
	HealthCheckProcedure: true,
}

// authInterceptor validates API key authentication
type authInterceptor struct {
	config AuthConfig
}

func newAuthInterceptor(config AuthConfig) connect.Interceptor {
	return &authInterceptor{config: config}
}

func (i *authInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if i.config.DevMode || healthCheckProcedures[req.Spec().Procedure] {
			return next(ctx, req)
		}
		// An unset key denies everything
		if !middleware.KeyMatches(middleware.APIKeyFromRequest(req.Header()), i.config.APIKey) {
			return nil, connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
		}
		return next(ctx, req)
	}
}

func (i *authInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next // No streaming RPCs in our API
}

func (i *authInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if i.config.DevMode {
			return next(ctx, conn)
		}
		if !middleware.KeyMatches(middleware.APIKeyFromRequest(conn.RequestHeader()), i.config.APIKey) {
			return connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
		}
		return next(ctx, conn)
	}
}

// loggingInterceptor logs RPC calls
type loggingInterceptor struct {
	log *zap.Logger
}

func newLoggingInterceptor() connect.Interceptor {
	return &loggingInterceptor{log: logging.Named("rpc")}
}

func (i *loggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		procedure := req.Spec().Procedure
		i.log.Debug("rpc call", zap.String("procedure", procedure), zap.String("peer", req.Peer().Addr))
		resp, err := next(ctx, req)
		if err != nil {
			i.log.Debug("rpc error",
				zap.String("procedure", procedure),
				zap.String("code", connect.CodeOf(err).String()),
				zap.Error(err))
		}
		return resp, err
	}
}

func (i *loggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *loggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// apiKeyInterceptor attaches the key to outgoing client calls
func apiKeyInterceptor(key string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if key != "" && req.Spec().IsClient {
				req.Header().Set("X-API-Key", key)
			}
			return next(ctx, req)
		}
	}
}

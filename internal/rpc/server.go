// Package rpc exposes the watchdog engine to local clients over Connect.
// Messages are plain Go structs carried by a JSON codec, so the API works
// with connect-go clients and with curl alike.
package rpc

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/window"
)

// Controller is the part of the engine the control plane drives
type Controller interface {
	Status(ctx context.Context) (engine.Status, error)
	RecordCheckIn(ctx context.Context) (bool, error)
	ConfirmSafe(ctx context.Context) error
	DismissEscalationDialog(ctx context.Context) error
	Foreground(ctx context.Context) (bool, error)
	CheckPendingEscalation(ctx context.Context) (bool, error)
	RemainingGraceSeconds(ctx context.Context) (int, error)
	Settings(ctx context.Context) (settings.Settings, error)
	UpdateSettings(ctx context.Context, s settings.Settings) (window.Validation, error)
	Reset(ctx context.Context) error
	ClearAll(ctx context.Context, includeSettings bool) error
	History(ctx context.Context, limit int) ([]records.DayRecord, error)
}

// Server wraps the Connect handlers
type Server struct {
	ctrl Controller
	auth AuthConfig
}

// NewServer creates a control plane server for ctrl
func NewServer(ctrl Controller, auth AuthConfig) *Server {
	return &Server{ctrl: ctrl, auth: auth}
}

// RegisterHandlers mounts every procedure on mux at its canonical path
// (e.g. /vigil.v1.HealthService/Check).
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(
			newLoggingInterceptor(),
			newAuthInterceptor(s.auth),
		),
	}

	h := &watchdogServer{ctrl: s.ctrl}
	mux.Handle(unary(HealthCheckProcedure, h.Check, opts...))
	mux.Handle(unary(StatusProcedure, h.GetStatus, opts...))
	mux.Handle(unary(CheckInProcedure, h.CheckIn, opts...))
	mux.Handle(unary(ConfirmSafeProcedure, h.ConfirmSafe, opts...))
	mux.Handle(unary(DismissProcedure, h.Dismiss, opts...))
	mux.Handle(unary(ResumeProcedure, h.Resume, opts...))
	mux.Handle(unary(PendingProcedure, h.CheckPending, opts...))
	mux.Handle(unary(GetSettingsProcedure, h.GetSettings, opts...))
	mux.Handle(unary(UpdateSettingsProcedure, h.UpdateSettings, opts...))
	mux.Handle(unary(ResetProcedure, h.Reset, opts...))
	mux.Handle(unary(HistoryProcedure, h.GetHistory, opts...))
}

// Handler returns a mux serving only the control plane
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	return mux
}

// unary adapts a plain method to a connect handler and maps its errors.
func unary[Req, Res any](
	procedure string,
	fn func(context.Context, *Req) (*Res, error),
	opts ...connect.HandlerOption,
) (string, http.Handler) {
	return procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, toConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	)
}

package rpc

import (
	"context"
)

// watchdogServer implements the WatchdogService and HealthService
type watchdogServer struct {
	ctrl Controller
}

func (w *watchdogServer) Check(ctx context.Context, _ *Empty) (*CheckResponse, error) {
	return &CheckResponse{Status: "ok"}, nil
}

func (w *watchdogServer) GetStatus(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	st, err := w.ctrl.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{Status: st}, nil
}

func (w *watchdogServer) CheckIn(ctx context.Context, _ *Empty) (*CheckInResponse, error) {
	ok, err := w.ctrl.RecordCheckIn(ctx)
	if err != nil {
		return nil, err
	}
	return &CheckInResponse{Recorded: ok}, nil
}

func (w *watchdogServer) ConfirmSafe(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := w.ctrl.ConfirmSafe(ctx); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (w *watchdogServer) Dismiss(ctx context.Context, _ *Empty) (*Empty, error) {
	if err := w.ctrl.DismissEscalationDialog(ctx); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// Resume runs the foreground reconciliation and reports what is pending.
func (w *watchdogServer) Resume(ctx context.Context, _ *Empty) (*PendingResponse, error) {
	pending, err := w.ctrl.Foreground(ctx)
	if err != nil {
		return nil, err
	}
	return w.pending(ctx, pending)
}

func (w *watchdogServer) CheckPending(ctx context.Context, _ *Empty) (*PendingResponse, error) {
	pending, err := w.ctrl.CheckPendingEscalation(ctx)
	if err != nil {
		return nil, err
	}
	return w.pending(ctx, pending)
}

func (w *watchdogServer) pending(ctx context.Context, pending bool) (*PendingResponse, error) {
	resp := &PendingResponse{Pending: pending}
	if !pending {
		return resp, nil
	}
	secs, err := w.ctrl.RemainingGraceSeconds(ctx)
	if err != nil {
		return nil, err
	}
	resp.RemainingSeconds = secs
	return resp, nil
}

func (w *watchdogServer) GetSettings(ctx context.Context, _ *Empty) (*SettingsResponse, error) {
	s, err := w.ctrl.Settings(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.Validate()
	if err != nil {
		return nil, err
	}
	return &SettingsResponse{Settings: s, Validation: v}, nil
}

func (w *watchdogServer) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*SettingsResponse, error) {
	v, err := w.ctrl.UpdateSettings(ctx, req.Settings)
	if err != nil {
		return nil, err
	}
	s, err := w.ctrl.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return &SettingsResponse{Settings: s, Validation: v}, nil
}

func (w *watchdogServer) Reset(ctx context.Context, req *ResetRequest) (*Empty, error) {
	var err error
	if req.All || req.IncludeSettings {
		err = w.ctrl.ClearAll(ctx, req.IncludeSettings)
	} else {
		err = w.ctrl.Reset(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (w *watchdogServer) GetHistory(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	recs, err := w.ctrl.History(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Records: recs, Count: len(recs)}, nil
}

package rpc

import (
	"github.com/lcrostarosa/vigil/internal/engine"
	"github.com/lcrostarosa/vigil/internal/records"
	"github.com/lcrostarosa/vigil/internal/settings"
	"github.com/lcrostarosa/vigil/internal/window"
)

// Procedure names. Both services live under the vigil.v1 package.
const (
	WatchdogServiceName = "vigil.v1.WatchdogService"
	HealthServiceName   = "vigil.v1.HealthService"

	HealthCheckProcedure    = "/" + HealthServiceName + "/Check"
	StatusProcedure         = "/" + WatchdogServiceName + "/GetStatus"
	CheckInProcedure        = "/" + WatchdogServiceName + "/CheckIn"
	ConfirmSafeProcedure    = "/" + WatchdogServiceName + "/ConfirmSafe"
	DismissProcedure        = "/" + WatchdogServiceName + "/DismissEscalation"
	ResumeProcedure         = "/" + WatchdogServiceName + "/Resume"
	PendingProcedure        = "/" + WatchdogServiceName + "/CheckPending"
	GetSettingsProcedure    = "/" + WatchdogServiceName + "/GetSettings"
	UpdateSettingsProcedure = "/" + WatchdogServiceName + "/UpdateSettings"
	ResetProcedure          = "/" + WatchdogServiceName + "/Reset"
	HistoryProcedure        = "/" + WatchdogServiceName + "/GetHistory"
)

// Empty is the request of calls that take no arguments
type Empty struct{}

// CheckResponse answers the health check
type CheckResponse struct {
	Status string `json:"status"`
}

// CheckInResponse reports whether the check-in counted
type CheckInResponse struct {
	Recorded bool `json:"recorded"`
}

// PendingResponse reports whether an escalation is waiting on the user
type PendingResponse struct {
	Pending          bool `json:"pending"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

// SettingsResponse carries the stored settings
type SettingsResponse struct {
	Settings   settings.Settings `json:"settings"`
	Validation window.Validation `json:"validation"`
}

// UpdateSettingsRequest replaces the monitoring settings
type UpdateSettingsRequest struct {
	Settings settings.Settings `json:"settings"`
}

// ResetRequest resets today's cycle. With All every record and the alert
// ledger are wiped; IncludeSettings also forgets the settings.
type ResetRequest struct {
	All             bool `json:"all,omitempty"`
	IncludeSettings bool `json:"include_settings,omitempty"`
}

// HistoryRequest limits the number of records returned (0 = all)
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryResponse lists day records, newest first
type HistoryResponse struct {
	Records []records.DayRecord `json:"records"`
	Count   int                 `json:"count"`
}

// StatusResponse wraps the engine snapshot
type StatusResponse struct {
	Status engine.Status `json:"status"`
}

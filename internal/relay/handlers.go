package relay

import (
	"net/http"

	"github.com/lcrostarosa/vigil/internal/escalation"
	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/middleware"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.dispatcher.Schedule(r.Context(), req.Task())
	if err != nil {
		logging.Error("schedule failed", logging.String("task_id", req.TaskID), logging.Err(err))
		middleware.WriteError(w, http.StatusInternalServerError, "could not schedule task")
		return
	}

	at := rec.ScheduledTime
	middleware.WriteJSON(w, http.StatusOK, escalation.ScheduleResponse{
		Success:       true,
		TaskID:        rec.TaskID,
		ScheduledTime: &at,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.dispatcher.Cancel(r.Context(), req.TaskID); err != nil {
		logging.Error("cancel failed", logging.String("task_id", req.TaskID), logging.Err(err))
		middleware.WriteError(w, http.StatusInternalServerError, "could not cancel task")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, escalation.CancelResponse{Success: true})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "unknown status "+string(status))
		return
	}

	recs, err := s.store.List(r.Context(), status)
	if err != nil {
		logging.Error("list tasks failed", logging.Err(err))
		middleware.WriteError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}

	list := escalation.TaskList{Success: true, Count: len(recs), Tasks: make([]escalation.TaskStatus, len(recs))}
	for i, rec := range recs {
		list.Tasks[i] = ToTaskStatus(rec)
	}
	middleware.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := requirePathParam(w, r, "taskId")
	if !ok {
		return
	}

	rec, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		logging.Error("get task failed", logging.String("task_id", id), logging.Err(err))
		middleware.WriteError(w, http.StatusInternalServerError, "could not read task")
		return
	}
	if !found {
		middleware.WriteJSON(w, http.StatusOK, escalation.TaskStatus{Success: true, Exists: false, TaskID: id})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ToTaskStatus(rec))
}

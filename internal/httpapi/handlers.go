package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleSyncTask implements the generic "/{task}" route: every
// registered task name not claimed by a reserved route (jobs/*,
// status, metrics, help) executes inline and returns its result
// verbatim, per spec.md §4.4's always-inline synchronous policy.
func (s *Server) handleSyncTask(w http.ResponseWriter, r *http.Request) {
	taskName := mux.Vars(r)["task"]
	params := paramsFromRequest(r)

	result, err := s.Dispatcher.ExecuteSync(r.Context(), taskName, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, result)
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// handleJobsSubmit implements jobs/submit. An unknown task or a
// missing parameter is written as an error; once a job is minted it
// returns 200 with the job id, even when the enqueue hit backpressure — the
// job stays QUEUED in the registry per spec.md §4.4; the enqueue error
// is only logged here, never surfaced to the client as a failure.
func (s *Server) handleJobsSubmit(w http.ResponseWriter, r *http.Request) {
	params := paramsFromRequest(r)
	taskName := params["task"]
	delete(params, "task")

	jobID, enqueueErr := s.Dispatcher.SubmitAsync(taskName, params)
	if jobID == "" {
		// No job was minted at all: the task name or params were
		// invalid before anything reached the queue.
		writeError(w, enqueueErr)
		return
	}
	if enqueueErr != nil {
		s.Logger.WithFields(map[string]interface{}{
			"job_id": jobID,
			"task":   taskName,
		}).Warn("job enqueue deferred", "error", enqueueErr.Error())
	}
	writeJSON(w, http.StatusOK, submitResponse{JobID: jobID, Status: "queued"})
}

type jobStatusResponse struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	EtaMs    int64  `json:"eta_ms"`
}

func (s *Server) handleJobsStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	status, progress, etaMs, err := s.Dispatcher.JobStatus(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{Status: status, Progress: progress, EtaMs: etaMs})
}

// handleJobsResult implements jobs/result: the stored result string is
// written back verbatim (it is already the handler's JSON), never
// re-marshaled.
func (s *Server) handleJobsResult(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	result, handlerErr, err := s.Dispatcher.JobResult(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if handlerErr != "" {
		writeJSON(w, http.StatusOK, errorBody{Error: handlerErr})
		return
	}
	writeRaw(w, http.StatusOK, result)
}

func (s *Server) handleJobsCancel(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	status, err := s.Dispatcher.JobCancel(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: status})
}

type processStatusResponse struct {
	Status            string `json:"status"`
	Pid               int    `json:"pid"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	ConnectionsServed int64  `json:"connections_served"`
	RequestsOK        int64  `json:"requests_ok"`
	RequestsError     int64  `json:"requests_error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total := s.Dispatcher.Metrics.TotalRequests()
	errs := s.Dispatcher.Metrics.TotalErrors()
	writeJSON(w, http.StatusOK, processStatusResponse{
		Status:            "running",
		Pid:               s.pid,
		UptimeSeconds:     int64(s.uptime().Seconds()),
		ConnectionsServed: s.connectionsServed.Load(),
		RequestsOK:        total - errs,
		RequestsError:     errs,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Dispatcher.Metrics.Dump())
}

type helpResponse struct {
	Message string   `json:"message"`
	Routes  []string `json:"routes"`
}

// handleHelp recovers original_source/src/router/router.c's capability
// listing route.
func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	reserved := []string{
		"/help", "/status", "/metrics", "/metrics/prom",
		"/jobs/submit", "/jobs/status", "/jobs/result", "/jobs/cancel",
	}
	routes := append(reserved, s.Dispatcher.Table.Names()...)
	writeJSON(w, http.StatusOK, helpResponse{
		Message: "computejobd: task_name routes execute synchronously, jobs/* routes are async",
		Routes:  routes,
	})
}

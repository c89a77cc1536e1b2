package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/logging"
	"github.com/r3d91ll/consensus/pkg/runner"
	"github.com/r3d91ll/consensus/pkg/simulation"
	"github.com/r3d91ll/consensus/pkg/store"
)

// RunsHandler serves the run endpoints. Batches started over HTTP run in the
// background under a context that Close cancels.
type RunsHandler struct {
	runner   *runner.Runner
	hub      *Hub
	store    *store.Store
	defaults simulation.Config
	csv      *export.CSVConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RunsHandlerConfig wires a RunsHandler.
type RunsHandlerConfig struct {
	Runner *runner.Runner
	Hub    *Hub
	// Store enables the archive endpoints. May be nil.
	Store *store.Store
	// Defaults fills the fields a start request leaves out.
	Defaults simulation.Config
	CSV      *export.CSVConfig
	Logger   *slog.Logger
}

// NewRunsHandler creates the handler.
func NewRunsHandler(cfg RunsHandlerConfig) *RunsHandler {
	ctx, cancel := context.WithCancel(context.Background())
	csvCfg := cfg.CSV
	if csvCfg == nil {
		csvCfg = export.DefaultCSVConfig()
	}
	return &RunsHandler{
		runner:   cfg.Runner,
		hub:      cfg.Hub,
		store:    cfg.Store,
		defaults: cfg.Defaults,
		csv:      csvCfg,
		logger:   logging.OrDefault(cfg.Logger),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterRoutes registers the run endpoints with the router.
func (h *RunsHandler) RegisterRoutes(router *Router) {
	router.GET("/api/health", h.Health)
	router.POST("/api/runs", h.StartRun)
	router.GET("/api/runs", h.ListRuns)
	router.GET("/api/runs/:id", h.GetRun)
	router.POST("/api/runs/:id/control", h.ControlRun)
	router.GET("/api/runs/:id/export/csv", h.ExportCSV)

	if h.store != nil {
		router.GET("/api/archive", h.ListArchive)
		router.GET("/api/archive/:id", h.GetArchived)
	}
}

// Close aborts every batch and waits for the background runs to return.
func (h *RunsHandler) Close() {
	h.runner.Registry().AbortAll()
	h.cancel()
	h.wg.Wait()
}

// Wait blocks until every background run has returned.
func (h *RunsHandler) Wait() {
	h.wg.Wait()
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Runs    int    `json:"runs"`
	Clients int    `json:"clients"`
	Archive bool   `json:"archive"`
}

// Health handles GET /api/health.
func (h *RunsHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Runs:    len(h.runner.Registry().List()),
		Archive: h.store != nil,
	}
	if h.hub != nil {
		resp.Clients = h.hub.ClientCount()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// -----------------------------------------------------------------------------
// Runs
// -----------------------------------------------------------------------------

// RunDetail is a batch summary with its results once finished.
type RunDetail struct {
	simulation.BatchSummary
	Results []simulation.Result `json:"results,omitempty"`
	Records []export.Record     `json:"records,omitempty"`
}

// StartRun handles POST /api/runs. The body is a simulation config; omitted
// fields keep the server defaults. The batch starts in the background and
// the response carries its pending summary.
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	cfg := h.defaults
	if err := ReadJSON(r, &cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body: "+err.Error())
		return
	}

	var extra []simulation.Observer
	if h.hub != nil {
		extra = append(extra, h.hub)
	}
	b, err := h.runner.Start(cfg, extra...)
	if err != nil {
		WriteErr(w, err)
		return
	}

	summary := b.Status()
	if h.hub != nil {
		_ = h.hub.BroadcastBatch(EventTypeBatchStarted, summary)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		out, err := h.runner.Execute(h.ctx, b)
		if err != nil {
			h.logger.Error("[api] batch failed", "batch", b.ID(), "error", err)
		}
		if h.hub != nil {
			_ = h.hub.BroadcastBatch(EventTypeBatchDone, out.Batch)
		}
	}()

	w.Header().Set("Location", "/api/runs/"+b.ID())
	WriteJSON(w, http.StatusAccepted, summary)
}

// ListRuns handles GET /api/runs.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	batches := h.runner.Registry().List()
	summaries := make([]simulation.BatchSummary, 0, len(batches))
	for _, b := range batches {
		summaries = append(summaries, b.Status())
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"runs":  summaries,
		"total": len(summaries),
	})
}

// GetRun handles GET /api/runs/:id.
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	b, err := h.runner.Registry().Get(PathParam(r, "id"))
	if err != nil {
		WriteErr(w, err)
		return
	}

	detail := RunDetail{BatchSummary: b.Status()}
	if isDone(detail.Status) {
		detail.Results = b.Results()
		detail.Records = export.Average(detail.Results)
	}
	WriteJSON(w, http.StatusOK, detail)
}

// ControlRequest is the body of POST /api/runs/:id/control.
type ControlRequest struct {
	Action string `json:"action"`
}

// ControlResponse reports how many instances received the message.
type ControlResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Delivered int    `json:"delivered"`
}

// ControlRun handles POST /api/runs/:id/control.
func (h *RunsHandler) ControlRun(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "id")

	var req ControlRequest
	if err := ReadJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body: "+err.Error())
		return
	}
	msg, err := simulation.ParseControlMessage(req.Action)
	if err != nil {
		WriteErr(w, cerrors.InvalidField("action", "%v", err))
		return
	}

	delivered, err := h.runner.Control(id, msg)
	if err != nil {
		WriteErr(w, err)
		return
	}
	h.logger.Info("[api] control", "batch", id, "action", msg, "delivered", delivered)
	WriteJSON(w, http.StatusOK, ControlResponse{ID: id, Action: msg.String(), Delivered: delivered})
}

// ExportCSV handles GET /api/runs/:id/export/csv. Without an instance query
// the averaged records are exported; with one, that instance's plot or
// entropy curve (kind=plot|entropy).
func (h *RunsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	b, err := h.runner.Registry().Get(PathParam(r, "id"))
	if err != nil {
		WriteErr(w, err)
		return
	}
	if !isDone(b.Status().Status) {
		WriteError(w, http.StatusConflict, "run_active", "Run has not finished yet")
		return
	}
	results := b.Results()

	var buf bytes.Buffer
	name := "run-" + b.ID()
	q := r.URL.Query()

	if q.Get("instance") == "" {
		err = export.WriteRecordsCSV(&buf, export.Average(results), h.csv)
	} else {
		idx, convErr := strconv.Atoi(q.Get("instance"))
		if convErr != nil || idx < 0 || idx >= len(results) {
			WriteError(w, http.StatusBadRequest, "invalid_instance",
				"instance must be between 0 and "+strconv.Itoa(len(results)-1))
			return
		}
		res := results[idx]
		name += "-" + strconv.Itoa(idx)

		switch q.Get("kind") {
		case "", "plot":
			err = export.WritePlotCSV(&buf, res.Plot, h.csv)
			name += "-plot"
		case "entropy":
			err = export.WriteEntropyCSV(&buf, res.Entropy.Points, h.csv)
			name += "-entropy"
		default:
			WriteError(w, http.StatusBadRequest, "invalid_kind", "kind must be plot or entropy")
			return
		}
	}
	if err != nil {
		WriteErr(w, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	ext := ".csv"
	if h.csv.Dialect == export.DialectTSV {
		contentType = "text/tab-separated-values; charset=utf-8"
		ext = ".tsv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+ext+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// -----------------------------------------------------------------------------
// Archive
// -----------------------------------------------------------------------------

// ListArchive handles GET /api/archive?limit=N.
func (h *RunsHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	runs, err := h.store.ListRuns(ctx, limit)
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetArchived handles GET /api/archive/:id.
func (h *RunsHandler) GetArchived(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	run, err := h.store.GetRun(ctx, PathParam(r, "id"))
	if err != nil {
		WriteErr(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func isDone(s simulation.BatchStatus) bool {
	switch s {
	case simulation.BatchFinished, simulation.BatchAborted, simulation.BatchFailed:
		return true
	}
	return false
}

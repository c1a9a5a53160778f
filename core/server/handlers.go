package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atomiq/atomiq/core/events"
	"github.com/atomiq/atomiq/core/infra/logging"
	"github.com/atomiq/atomiq/core/infra/schema"
	"github.com/atomiq/atomiq/core/job"
	"github.com/atomiq/atomiq/core/sandbox"
)

const maxUploadBytes = 32 << 20

// buildRequestSchema validates JSON submissions. Multipart forms carry
// the same fields as strings and skip schema validation.
var buildRequestSchema = []byte(`{
	"type": "object",
	"required": ["github_url"],
	"properties": {
		"github_url": {"type": "string", "minLength": 1},
		"prompt": {"type": "string"},
		"llm_provider": {"type": "string"},
		"llm_model": {"type": "string"},
		"api_key": {"type": "string"},
		"generate_unit": {"type": "boolean"},
		"generate_bdd": {"type": "boolean"}
	},
	"additionalProperties": false
}`)

type buildRequest struct {
	GitHubURL    string `json:"github_url"`
	Prompt       string `json:"prompt"`
	LLMProvider  string `json:"llm_provider"`
	LLMModel     string `json:"llm_model"`
	APIKey       string `json:"api_key"`
	GenerateUnit bool   `json:"generate_unit"`
	GenerateBDD  bool   `json:"generate_bdd"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	opts := job.BuildOptions{JobID: uuid.NewString()}
	workDir := filepath.Join(s.cfg.WorkDir, opts.JobID)

	ct := r.Header.Get("Content-Type")
	var err error
	switch {
	case strings.HasPrefix(ct, "application/json"):
		err = s.parseJSONBuild(r, &opts)
	default:
		err = s.parseFormBuild(r, &opts, workDir)
	}
	if err != nil {
		os.RemoveAll(workDir)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts.Normalize(s.cfg.OpenAIKey)
	if err := opts.Validate(); err != nil {
		os.RemoveAll(workDir)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.reg.Create(opts.JobID, opts.Flags(), workDir); err != nil {
		os.RemoveAll(workDir)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logging.Info("server", "job submitted", "job", opts.JobID, "url", opts.GitHubURL)

	go func() {
		if err := s.runner.Run(context.Background(), opts); err != nil {
			logging.Warn("server", "job finished with error", "job", opts.JobID, "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"jobId": opts.JobID})
}

func (s *Server) parseJSONBuild(r *http.Request, opts *job.BuildOptions) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := schema.Validate("build-request", buildRequestSchema, json.RawMessage(raw)); err != nil {
		return err
	}
	var req buildRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	opts.GitHubURL = req.GitHubURL
	opts.Prompt = req.Prompt
	opts.Provider = req.LLMProvider
	opts.Model = req.LLMModel
	opts.APIKey = req.APIKey
	opts.GenerateUnit = req.GenerateUnit
	opts.GenerateBDD = req.GenerateBDD
	return nil
}

func (s *Server) parseFormBuild(r *http.Request, opts *job.BuildOptions, workDir string) error {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	opts.GitHubURL = r.FormValue("github_url")
	opts.Prompt = r.FormValue("prompt")
	opts.Provider = r.FormValue("llm_provider")
	opts.Model = r.FormValue("llm_model")
	opts.APIKey = r.FormValue("api_key")

	// Legacy camelCase field names are still sent by older UIs.
	opts.GenerateUnit = job.ParseBool(r.FormValue("generate_unit")) ||
		job.ParseBool(r.FormValue("generateUnitTests"))
	opts.GenerateBDD = job.ParseBool(r.FormValue("generate_bdd")) ||
		job.ParseBool(r.FormValue("createBDDFramework"))

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()
	if header.Filename == "" {
		return nil
	}

	dest, err := sandbox.Resolve(filepath.Join(workDir, "upload"), filepath.Base(header.Filename))
	if err != nil {
		return fmt.Errorf("upload name: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	opts.RequirementPath = dest
	return nil
}

type jobResponse struct {
	JobID       string         `json:"jobId"`
	Status      job.Status     `json:"status"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message"`
	ArtifactURL *string        `json:"artifactUrl"`
	Flags       job.Flags      `json:"flags"`
	CreatedAt   time.Time      `json:"createdAt"`
	Logs        []job.LogEntry `json:"logs"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.reg.Snapshot(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	logs := rec.Logs
	if tail := s.cfg.Limits.LogTailEntries; tail > 0 && len(logs) > tail {
		logs = logs[len(logs)-tail:]
	}
	resp := jobResponse{
		JobID:       rec.ID,
		Status:      rec.Status,
		Progress:    rec.Progress,
		Message:     rec.Message,
		ArtifactURL: artifactURL(rec),
		Flags:       rec.Flags,
		CreatedAt:   rec.CreatedAt,
		Logs:        logs,
	}
	writeJSON(w, http.StatusOK, resp)
}

func artifactURL(rec job.Record) *string {
	if rec.ArtifactPath == "" {
		return nil
	}
	u := "/api/jobs/" + rec.ID + "/artifact"
	return &u
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.reg.Snapshot(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if rec.ArtifactPath == "" {
		writeError(w, http.StatusNotFound, "Artifact not found")
		return
	}
	if _, err := os.Stat(rec.ArtifactPath); err != nil {
		writeError(w, http.StatusNotFound, "Artifact not found")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(rec.ArtifactPath)))
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, rec.ArtifactPath)
}

type eventPayload struct {
	JobID       string    `json:"jobId"`
	Progress    int       `json:"progress"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	TS          time.Time `json:"ts"`
	ArtifactURL *string   `json:"artifactUrl"`
}

func (s *Server) eventFor(id string, e job.LogEntry) eventPayload {
	p := eventPayload{
		JobID:    id,
		Progress: e.Progress,
		Status:   e.Status,
		Message:  e.Message,
		TS:       e.TS,
	}
	if p.Message == "" {
		p.Message = e.Status
	}
	if rec, err := s.reg.Snapshot(id); err == nil {
		p.Status = string(rec.Status)
		p.ArtifactURL = artifactURL(rec)
	}
	return p
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.reg.Snapshot(id); err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := events.Stream(r.Context(), s.reg, id, s.cfg.EventPollInterval, func(e job.LogEntry) error {
		data, err := json.Marshal(s.eventFor(id, e))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("server", "event stream ended", "job", id, "error", err)
	}
}

func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.reg.Snapshot(id); err != nil {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("server", "websocket upgrade failed", "job", id, "error", err)
		return
	}
	defer ws.Close()

	err = events.Stream(r.Context(), s.reg, id, s.cfg.EventPollInterval, func(e job.LogEntry) error {
		data, err := json.Marshal(s.eventFor(id, e))
		if err != nil {
			return err
		}
		return ws.WriteMessage(websocket.TextMessage, data)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Warn("server", "websocket stream ended", "job", id, "error", err)
		return
	}
	ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job complete"))
}

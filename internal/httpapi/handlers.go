package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"localsub/internal/jobs"
	"localsub/internal/library"
	"localsub/pkg/icron"
)

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, itemsListResponse{
		TargetLanguage: s.scanner.TargetLanguage(),
		Items:          items,
	})
}

type itemsListResponse struct {
	TargetLanguage string         `json:"target_language"`
	Items          []library.Item `json:"items"`
}

type enqueueJobRequest struct {
	Source       string `json:"source"`
	DedupeKey    string `json:"dedupe_key"`
	VideoPath    string `json:"video_path"`
	SubtitlePath string `json:"subtitle_path"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sortedJobs(s.queue.List()))
	case http.MethodPost:
		var req enqueueJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.Source == "" {
			req.Source = "manual"
		}
		if req.VideoPath == "" && req.SubtitlePath == "" {
			writeError(w, http.StatusBadRequest, "video_path or subtitle_path is required")
			return
		}
		if req.DedupeKey == "" {
			key := req.SubtitlePath
			if key == "" {
				key = req.VideoPath
			}
			req.DedupeKey = key + "|" + s.scanner.TargetLanguage()
		}

		job, created := s.queue.Enqueue(jobs.EnqueueRequest{
			Source:    req.Source,
			DedupeKey: req.DedupeKey,
			Payload: jobs.JobPayload{
				VideoFile:    req.VideoPath,
				SubtitleFile: req.SubtitlePath,
			},
		})
		code := http.StatusCreated
		if !created {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{
			"created": created,
			"job":     job,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleJobAction routes /api/jobs/{id} and /api/jobs/{id}/cancel.
func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, ok := s.queue.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case "cancel":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, err := s.queue.Cancel(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, job)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scan == nil {
		writeError(w, http.StatusNotImplemented, "scanning is not configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		info, err := icron.GetTriggerInfo(s.scanSchedule, time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, info)
	case http.MethodPost:
		enqueued, err := s.scan(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"enqueued": enqueued,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// sortedJobs returns newest first so the list reads like a log.
func sortedJobs(list []*jobs.TranslationJob) []*jobs.TranslationJob {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

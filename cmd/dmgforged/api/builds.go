package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmgforge/dmgforge/lib/builds"
	"github.com/dmgforge/dmgforge/lib/declaration"
	"github.com/dmgforge/dmgforge/lib/logger"
)

// CreateBuild accepts a declaration and queues a packaging job.
func (s *ApiService) CreateBuild(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req builds.CreateBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	build, err := s.BuildManager.CreateBuild(r.Context(), req)
	if err != nil {
		if isDeclarationError(err) || errors.Is(err, builds.ErrInvalidFilename) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.ErrorContext(r.Context(), "create build", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create build")
		return
	}

	writeJSON(w, http.StatusAccepted, build)
}

// ListBuilds returns all known builds.
func (s *ApiService) ListBuilds(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	list, err := s.BuildManager.ListBuilds(r.Context())
	if err != nil {
		log.ErrorContext(r.Context(), "list builds", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list builds")
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// GetBuild returns a single build by ID.
func (s *ApiService) GetBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	build, err := s.BuildManager.GetBuild(r.Context(), id)
	if err != nil {
		if errors.Is(err, builds.ErrNotFound) {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get build")
		return
	}

	writeJSON(w, http.StatusOK, build)
}

// DeleteBuild removes a build and its artifacts.
func (s *ApiService) DeleteBuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.BuildManager.DeleteBuild(r.Context(), id); err != nil {
		if errors.Is(err, builds.ErrNotFound) {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete build")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StreamBuildEvents streams progress updates as server-sent events.
func (s *ApiService) StreamBuildEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ch, err := s.BuildManager.SubscribeProgress(r.Context(), id)
	if err != nil {
		if errors.Is(err, builds.ErrNotFound) {
			writeError(w, http.StatusNotFound, "build not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
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

	stream := builds.ToSSEReader(ch)
	defer stream.Close()

	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			return
		}
	}
}

// DownloadImage serves the finished disk image.
func (s *ApiService) DownloadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	path, err := s.BuildManager.ImagePath(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, builds.ErrNotFound):
			writeError(w, http.StatusNotFound, "build not found")
		case errors.Is(err, builds.ErrNotReady):
			writeError(w, http.StatusConflict, "build not ready")
		default:
			writeError(w, http.StatusInternalServerError, "failed to locate image")
		}
		return
	}

	build, err := s.BuildManager.GetBuild(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get build")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+build.Filename+`"`)
	http.ServeFile(w, r, path)
}

// Healthz reports liveness.
func (s *ApiService) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

func isDeclarationError(err error) bool {
	return errors.Is(err, declaration.ErrMissingTitle) ||
		errors.Is(err, declaration.ErrInvalidIconSize) ||
		errors.Is(err, declaration.ErrInvalidWindowSize) ||
		errors.Is(err, declaration.ErrInvalidKind) ||
		errors.Is(err, declaration.ErrMissingPath) ||
		errors.Is(err, declaration.ErrUnresolvableName)
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/schemalign/internal/canon"
	"github.com/hyperjump/schemalign/internal/config"
	"github.com/hyperjump/schemalign/internal/embedding"
	"github.com/hyperjump/schemalign/internal/ingest"
	"github.com/hyperjump/schemalign/internal/keyword"
	"github.com/hyperjump/schemalign/internal/lock"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/oracle"
	"github.com/hyperjump/schemalign/internal/storage"
	"github.com/hyperjump/schemalign/internal/table"
	"github.com/hyperjump/schemalign/internal/vector"
)

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, oracle.ErrContractViolation):
		return http.StatusBadGateway
	case errors.Is(err, oracle.ErrOracleUnavailable),
		errors.Is(err, embedding.ErrEmbeddingUnavailable),
		errors.Is(err, vector.ErrIndexUnavailable),
		errors.Is(err, lock.ErrLockUnavailable),
		errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable
	case errors.Is(err, canon.ErrInvalidFeature),
		errors.Is(err, table.ErrUnsupportedFormat),
		errors.Is(err, table.ErrEmptyTable),
		errors.Is(err, ingest.ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) registry(r *http.Request) (*vector.Collection, error) {
	return s.deps.Catalog.Open(r.Context(), chi.URLParam(r, "registry"))
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	reg, err := s.registry(r)
	if err != nil {
		s.fail(w, "open registry failed", err)
		return
	}
	s.logger.Debug("classify request", zap.String("registry", reg.Name()), zap.String("feature", req.Name))
	d, err := s.deps.Canon.SmartLoad(r.Context(), reg, req.Name, req.Values)
	if err != nil {
		s.fail(w, "classify failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry(r)
	if err != nil {
		s.fail(w, "open registry failed", err)
		return
	}
	names, err := reg.Names(r.Context())
	if err != nil {
		s.fail(w, "list features failed", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"registry": reg.Name(),
		"features": names,
		"count":    len(names),
	})
}

func (s *Server) handleFeatureCount(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry(r)
	if err != nil {
		s.fail(w, "open registry failed", err)
		return
	}
	n, err := reg.Count(r.Context())
	if err != nil {
		s.fail(w, "count features failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"registry": reg.Name(), "count": n})
}

// handleFeatureSearch finds registered features by name terms. Query params: q (required),
// fuzzy (bool), limit.
func (s *Server) handleFeatureSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	opts := &keyword.SearchOptions{}
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid fuzzy")
			return
		}
		opts.Fuzzy = fuzzy
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	reg, err := s.registry(r)
	if err != nil {
		s.fail(w, "open registry failed", err)
		return
	}
	names, err := reg.Names(r.Context())
	if err != nil {
		s.fail(w, "list features failed", err)
		return
	}
	hits, err := keyword.SearchNames(names, q, opts)
	if err != nil {
		s.fail(w, "feature search failed", err)
		return
	}
	if hits == nil {
		hits = []keyword.Hit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"registry": reg.Name(),
		"query":    q,
		"hits":     hits,
	})
}

func (s *Server) maxUploadBytes() int64 {
	if s.config != nil && s.config.Server.MaxUploadBytes > 0 {
		return s.config.Server.MaxUploadBytes
	}
	return 32 << 20
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one file is required in field \"files\"")
		return
	}
	meta := models.Metadata{
		Region:   strings.TrimSpace(r.FormValue("region")),
		School:   strings.TrimSpace(r.FormValue("school")),
		Activity: strings.TrimSpace(r.FormValue("activity")),
	}
	pipeline := s.deps.Pipeline.ForRegistry(strings.TrimSpace(r.FormValue("registry")))

	results := make([]*ingest.Result, 0, len(files))
	for _, fh := range files {
		content, err := readUpload(fh)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", fh.Filename, err))
			return
		}
		s.logger.Debug("ingest upload", zap.String("filename", fh.Filename), zap.Int("bytes", len(content)),
			zap.String("registry", pipeline.Registry()))
		res, err := pipeline.IngestBytes(r.Context(), fh.Filename, content, meta)
		if err != nil {
			s.fail(w, "ingest failed", fmt.Errorf("%s: %w", fh.Filename, err))
			return
		}
		results = append(results, res)
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"results": results})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Records.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get record failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

// handleListRecords lists stored records newest first. Query params: limit, offset.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := models.DecisionFilter{Limit: limit, Offset: offset}
	page.Normalize()
	recs, err := s.deps.Records.ListRecords(r.Context(), page.Offset, page.Limit)
	if err != nil {
		s.fail(w, "list records failed", err)
		return
	}
	if recs == nil {
		recs = []*models.Record{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": recs,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// handleDeleteRecord removes a record from the local store. Canonical features registered while
// ingesting it stay in the registry.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Records.GetRecord(r.Context(), id); err != nil {
		s.fail(w, "delete record failed", err)
		return
	}
	if err := s.deps.Records.DeleteRecord(r.Context(), id); err != nil {
		s.fail(w, "delete record failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

// pageParams parses the optional limit and offset query parameters.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid offset")
		}
	}
	return limit, offset, nil
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := models.DecisionFilter{Registry: r.URL.Query().Get("registry"), Limit: limit, Offset: offset}
	filter.Normalize()
	decisions, err := s.deps.Records.ListDecisions(r.Context(), filter)
	if err != nil {
		s.fail(w, "list decisions failed", err)
		return
	}
	if decisions == nil {
		decisions = []models.Decision{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": decisions,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordCount, err := s.deps.Records.CountRecords(ctx)
	if err != nil {
		s.fail(w, "status: count records failed", err)
		return
	}
	decisionCount, err := s.deps.Records.CountDecisions(ctx)
	if err != nil {
		s.fail(w, "status: count decisions failed", err)
		return
	}

	registries := make(map[string]int)
	for _, name := range s.deps.Catalog.Opened() {
		coll, err := s.deps.Catalog.Open(ctx, name)
		if err != nil {
			continue
		}
		if n, err := coll.Count(ctx); err == nil {
			registries[name] = n
		}
	}
	resp := map[string]interface{}{
		"records":    recordCount,
		"decisions":  decisionCount,
		"registries": registries,
		"dimensions": s.deps.Catalog.Dimensions(),
		"threshold":  s.deps.Canon.Threshold(),
	}
	if s.deps.Watch != nil {
		resp["watch"] = map[string]interface{}{
			"directories": s.deps.Watch.Directories(),
			"stats":       s.deps.Watch.Stats(),
		}
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"default_registry":   s.config.Registry.Name,
			"vector_backend":     s.config.Vector.Backend,
			"embedding_provider": s.config.Embedding.Provider,
			"oracle_provider":    s.config.Oracle.Provider,
			"oracle_model":       s.config.Oracle.Model,
			"violation_policy":   s.config.Registry.ViolationPolicy,
			"database_path":      s.config.Storage.DatabasePath,
			"mongo_enabled":      s.config.Storage.MongoURL != "",
			"redis_lock_enabled": s.config.Lock.RedisURL != "",
		}
		paths := []string{s.config.Storage.DatabasePath}
		if vector.Backend(s.config.Vector.Backend) == vector.BackendMemory {
			paths = append(paths, s.config.Vector.SnapshotPath)
		}
		if fp, err := storage.MeasureFootprint(paths...); err == nil {
			resp["disk_usage_bytes"] = fp.Total
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.deps.Watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.deps.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.deps.Watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.deps.Watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

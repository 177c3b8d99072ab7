// Package api provides the HTTP API for peerdiffx.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gusuku-oknw/peerdiffx/cas"
	"github.com/gusuku-oknw/peerdiffx/config"
	"github.com/gusuku-oknw/peerdiffx/diff"
	"github.com/gusuku-oknw/peerdiffx/element"
	"github.com/gusuku-oknw/peerdiffx/history"
	"github.com/gusuku-oknw/peerdiffx/merge"
	"github.com/gusuku-oknw/peerdiffx/proto"
	"github.com/gusuku-oknw/peerdiffx/store"
	"github.com/gusuku-oknw/peerdiffx/vcs"
	"github.com/gusuku-oknw/peerdiffx/xmldiff"
)

// maxBodyBytes bounds request bodies. Slide XML can be large.
const maxBodyBytes = 32 << 20

// Handler wraps the service and config for HTTP handlers.
type Handler struct {
	svc *vcs.Service
	cfg *config.Config
	log *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *vcs.Service, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, cfg: cfg, log: logger}
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(svc *vcs.Service, cfg *config.Config, logger *slog.Logger) http.Handler {
	h := NewHandler(svc, cfg, logger)
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Presentations and branches
	mux.HandleFunc("POST /v1/presentations", h.CreatePresentation)
	mux.HandleFunc("GET /v1/presentations", h.ListPresentations)
	mux.HandleFunc("GET /v1/presentations/{id}", h.GetPresentation)
	mux.HandleFunc("GET /v1/presentations/{id}/branches", h.ListBranches)
	mux.HandleFunc("POST /v1/presentations/{id}/branches", h.CreateBranch)
	mux.HandleFunc("PUT /v1/presentations/{id}/default-branch", h.SetDefaultBranch)

	// History
	mux.HandleFunc("POST /v1/presentations/{id}/commits", h.Commit)
	mux.HandleFunc("GET /v1/presentations/{id}/commits/{commit}", h.GetCommit)
	mux.HandleFunc("GET /v1/presentations/{id}/log", h.Log)
	mux.HandleFunc("GET /v1/presentations/{id}/snapshot", h.Snapshot)
	mux.HandleFunc("GET /v1/presentations/{id}/slides/{n}", h.Slide)

	// Diff and merge
	mux.HandleFunc("GET /v1/presentations/{id}/diff", h.Diff)
	mux.HandleFunc("GET /v1/presentations/{id}/slides/{n}/diff", h.SlideDiff)
	mux.HandleFunc("POST /v1/presentations/{id}/slides/{n}/xmldiff", h.SlideXMLDiff)
	mux.HandleFunc("POST /v1/presentations/{id}/merge", h.Merge)

	// Sharing
	mux.HandleFunc("POST /v1/presentations/{id}/lock", h.AcquireLock)
	mux.HandleFunc("DELETE /v1/presentations/{id}/lock", h.ReleaseLock)
	mux.HandleFunc("GET /v1/presentations/{id}/lock", h.LockStatus)
	mux.HandleFunc("POST /v1/presentations/{id}/exports", h.CreateExport)
	mux.HandleFunc("GET /v1/exports/{id}", h.OpenExport)

	// Stateless engines
	mux.HandleFunc("POST /v1/diff", h.StatelessDiff)
	mux.HandleFunc("POST /v1/merge", h.StatelessMerge)
	mux.HandleFunc("POST /v1/xmldiff", h.StatelessXMLDiff)

	return mux
}

// ----- Health -----

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, proto.HealthResponse{
		Status:  "ok",
		Version: h.cfg.Version,
	})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, proto.HealthResponse{
		Status:  "ready",
		Version: h.cfg.Version,
	})
}

// ----- Presentations -----

func (h *Handler) CreatePresentation(w http.ResponseWriter, r *http.Request) {
	var req proto.CreatePresentationRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, b, err := h.svc.CreatePresentation(req.Title)
	if err != nil {
		h.fail(w, "failed to create presentation", err)
		return
	}
	writeJSON(w, http.StatusCreated, proto.PresentationResponse{Presentation: p, DefaultBranch: b})
}

func (h *Handler) ListPresentations(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListPresentations()
	if err != nil {
		h.fail(w, "failed to list presentations", err)
		return
	}
	if ps == nil {
		ps = []*history.Presentation{}
	}
	writeJSON(w, http.StatusOK, proto.PresentationsListResponse{Presentations: ps})
}

func (h *Handler) GetPresentation(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPresentation(r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to get presentation", err)
		return
	}
	writeJSON(w, http.StatusOK, proto.PresentationResponse{Presentation: p})
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	bs, err := h.svc.ListBranches(r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to list branches", err)
		return
	}
	if bs == nil {
		bs = []*history.Branch{}
	}
	writeJSON(w, http.StatusOK, proto.BranchesListResponse{Branches: bs})
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req proto.CreateBranchRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.svc.CreateBranch(r.PathValue("id"), req.Name, req.From)
	if err != nil {
		h.fail(w, "failed to create branch", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) SetDefaultBranch(w http.ResponseWriter, r *http.Request) {
	var req proto.SetDefaultBranchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetDefaultBranch(r.PathValue("id"), req.Name); err != nil {
		h.fail(w, "failed to set default branch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----- History -----

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req proto.CommitRequest
	if !h.decode(w, r, &req) {
		return
	}
	slides := make([]*history.SlideVersion, len(req.Slides))
	for i, s := range req.Slides {
		slides[i] = &history.SlideVersion{
			SlideNumber: s.SlideNumber,
			Title:       s.Title,
			XML:         s.XML,
			Elements:    s.Elements,
		}
	}
	c, err := h.svc.Commit(vcs.CommitRequest{
		PresentationID: r.PathValue("id"),
		Branch:         req.Branch,
		Message:        req.Message,
		Author:         req.Author,
		Slides:         slides,
		RemoveSlides:   req.RemoveSlides,
		ExpectedHead:   req.ExpectedHead,
	})
	if err != nil {
		h.fail(w, "failed to commit", err)
		return
	}
	writeJSON(w, http.StatusCreated, commitResponse(c))
}

func (h *Handler) GetCommit(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCommit(r.PathValue("id"), r.PathValue("commit"))
	if err != nil {
		h.fail(w, "failed to get commit", err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse(c))
}

func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}
	commits, err := h.svc.Log(r.PathValue("id"), q.Get("rev"), limit)
	if err != nil {
		h.fail(w, "failed to read log", err)
		return
	}
	resp := proto.LogResponse{Commits: make([]*proto.CommitResponse, 0, len(commits))}
	for _, c := range commits {
		resp.Commits = append(resp.Commits, commitResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	c, snap, err := h.svc.Snapshot(r.PathValue("id"), r.URL.Query().Get("rev"))
	if err != nil {
		h.fail(w, "failed to read snapshot", err)
		return
	}
	resp := proto.SnapshotResponse{Commit: c, Slides: make([]*history.SlideVersion, 0, len(snap))}
	for _, n := range snap.Numbers() {
		resp.Slides = append(resp.Slides, snap[n])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Slide returns one slide version. Slide versions are immutable, so the
// content digest serves as a strong ETag.
func (h *Handler) Slide(w http.ResponseWriter, r *http.Request) {
	n, ok := slideNumber(w, r)
	if !ok {
		return
	}
	sv, err := h.svc.Slide(r.PathValue("id"), r.URL.Query().Get("rev"), n)
	if err != nil {
		h.fail(w, "failed to read slide", err)
		return
	}
	canon, err := cas.CanonicalJSON(sv)
	if err != nil {
		h.fail(w, "failed to hash slide", err)
		return
	}
	etag := `"` + cas.Blake3HashHex(canon) + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, proto.SlideResponse{Slide: sv})
}

// ----- Diff and merge -----

func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pd, err := h.svc.DiffCommits(r.PathValue("id"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, "failed to diff", err)
		return
	}
	if q.Get("format") == "text" {
		writeText(w, http.StatusOK, pd.FormatText())
		return
	}
	writeJSON(w, http.StatusOK, pd)
}

func (h *Handler) SlideDiff(w http.ResponseWriter, r *http.Request) {
	n, ok := slideNumber(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	cs, err := h.svc.DiffSlide(r.PathValue("id"), q.Get("from"), q.Get("to"), n)
	if err != nil {
		h.fail(w, "failed to diff slide", err)
		return
	}
	if q.Get("format") == "text" {
		writeText(w, http.StatusOK, cs.FormatText())
		return
	}
	writeJSON(w, http.StatusOK, proto.SlideDiffResponse{SlideNumber: n, Changes: cs})
}

func (h *Handler) SlideXMLDiff(w http.ResponseWriter, r *http.Request) {
	n, ok := slideNumber(w, r)
	if !ok {
		return
	}
	req := proto.XMLDiffRequest{Options: h.xmlDefaults()}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Options == nil {
		req.Options = h.xmlDefaults()
	}
	if !validOptions(w, req.Options) {
		return
	}
	res, err := h.svc.XMLDiffSlide(r.PathValue("id"), req.From, req.To, n, req.Options)
	if err != nil {
		h.fail(w, "failed to diff slide xml", err)
		return
	}
	writeXMLDiff(w, r, res)
}

func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req proto.MergeRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.Merge(vcs.MergeRequest{
		PresentationID: r.PathValue("id"),
		Source:         req.Source,
		Target:         req.Target,
		Author:         req.Author,
		Message:        req.Message,
		Strict:         req.Strict,
	})
	if err != nil {
		h.fail(w, "failed to merge", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ----- Sharing -----

func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	var req proto.LockRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.svc.AcquireLock(r.PathValue("id"), req.Holder, req.TTLMinutes)
	if err != nil {
		h.fail(w, "failed to acquire lock", err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse(r.PathValue("id"), l))
}

// ReleaseLock takes the holder from the query string or a JSON body.
func (h *Handler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	holder := r.URL.Query().Get("holder")
	if holder == "" && r.ContentLength != 0 {
		var req proto.LockRequest
		if !h.decode(w, r, &req) {
			return
		}
		holder = req.Holder
	}
	if err := h.svc.ReleaseLock(r.PathValue("id"), holder); err != nil {
		h.fail(w, "failed to release lock", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LockStatus(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.LockStatus(r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to read lock", err)
		return
	}
	writeJSON(w, http.StatusOK, lockResponse(r.PathValue("id"), l))
}

func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	var req proto.ExportRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.svc.CreateExport(r.PathValue("id"), req.Rev, req.SlideNumber, req.TTLDays)
	if err != nil {
		h.fail(w, "failed to create export", err)
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse(e, nil))
}

func (h *Handler) OpenExport(w http.ResponseWriter, r *http.Request) {
	e, sv, err := h.svc.OpenExport(r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to open export", err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse(e, sv))
}

// ----- Stateless engines -----

func (h *Handler) StatelessDiff(w http.ResponseWriter, r *http.Request) {
	var req proto.StatelessDiffRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !validCollections(w, req.Old, req.New) {
		return
	}
	cs := diff.Diff(req.Old, req.New)
	if r.URL.Query().Get("format") == "text" {
		writeText(w, http.StatusOK, cs.FormatText())
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) StatelessMerge(w http.ResponseWriter, r *http.Request) {
	var req proto.StatelessMergeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !validCollections(w, req.Base, req.Yours, req.Theirs) {
		return
	}
	res := merge.Merge(req.Base, req.Yours, req.Theirs)
	writeJSON(w, http.StatusOK, proto.StatelessMergeResponse{
		Status:    res.Status(),
		Elements:  res.Elements,
		Conflicts: res.Conflicts,
		Stats:     res.Stats,
	})
}

func (h *Handler) StatelessXMLDiff(w http.ResponseWriter, r *http.Request) {
	req := proto.StatelessXMLDiffRequest{Options: h.xmlDefaults()}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Options == nil {
		req.Options = h.xmlDefaults()
	}
	if !validOptions(w, req.Options) {
		return
	}
	res, err := xmldiff.Compare(req.Old, req.New, *req.Options)
	if err != nil {
		h.fail(w, "failed to diff xml", err)
		return
	}
	writeXMLDiff(w, r, res)
}

// ----- Helpers -----

// decode reads a JSON body into v. On failure it writes a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// xmlDefaults returns a private copy of the service's XML diff options for a
// request body to be decoded over.
func (h *Handler) xmlDefaults() *xmldiff.Options {
	o := h.svc.XMLDiffOptions()
	o.IgnoreAttributes = append([]string(nil), o.IgnoreAttributes...)
	return &o
}

// fail maps a service error to a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	var ambiguous *merge.AmbiguousMergeError
	var dup *element.DuplicateIDError
	switch {
	case errors.As(err, &ambiguous):
		resp := proto.ErrorResponse{Error: "merge has conflicts", Details: err.Error()}
		for _, c := range ambiguous.Conflicts {
			resp.Conflicts = append(resp.Conflicts, c.ID)
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists", err)
	case errors.Is(err, store.ErrBranchMoved):
		writeError(w, http.StatusConflict, "branch moved", err)
	case errors.Is(err, store.ErrLocked):
		writeError(w, http.StatusConflict, "presentation is locked", err)
	case errors.Is(err, store.ErrLockNotHeld):
		writeError(w, http.StatusConflict, "lock not held", err)
	case errors.Is(err, store.ErrExportExpired):
		writeError(w, http.StatusGone, "export expired", err)
	case errors.Is(err, xmldiff.ErrMalformedDocument):
		writeError(w, http.StatusUnprocessableEntity, "malformed document", err)
	case errors.Is(err, vcs.ErrInvalid), errors.As(err, &dup):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		h.log.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg, err)
	}
}

func validCollections(w http.ResponseWriter, cs ...element.Collection) bool {
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid elements", err)
			return false
		}
	}
	return true
}

func validOptions(w http.ResponseWriter, o *xmldiff.Options) bool {
	if err := o.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid options", err)
		return false
	}
	return true
}

func slideNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "invalid slide number", fmt.Errorf("slide %q", r.PathValue("n")))
		return 0, false
	}
	return n, true
}

func commitResponse(c *history.Commit) *proto.CommitResponse {
	return &proto.CommitResponse{Commit: c, Kind: c.Kind()}
}

func lockResponse(presentationID string, l *store.Lock) proto.LockResponse {
	if l == nil {
		return proto.LockResponse{PresentationID: presentationID}
	}
	return proto.LockResponse{
		Locked:         true,
		PresentationID: l.PresentationID,
		Holder:         l.Holder,
		AcquiredAt:     l.AcquiredAt,
		ExpiresAt:      l.ExpiresAt,
	}
}

func exportResponse(e *store.Export, sv *history.SlideVersion) proto.ExportResponse {
	return proto.ExportResponse{
		ID:             e.ID,
		PresentationID: e.PresentationID,
		CommitID:       e.CommitID,
		SlideNumber:    e.SlideNumber,
		CreatedAt:      e.CreatedAt,
		ExpiresAt:      e.ExpiresAt,
		AccessCount:    e.AccessCount,
		Slide:          sv,
	}
}

func writeXMLDiff(w http.ResponseWriter, r *http.Request, res *xmldiff.Result) {
	if r.URL.Query().Get("format") == "text" {
		writeText(w, http.StatusOK, res.Text)
		return
	}
	writeJSON(w, http.StatusOK, proto.XMLDiffResponse{
		Identical: res.Identical(),
		Text:      res.Text,
		Unified:   res.Unified,
		Stat:      res.Stat,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(s))
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := proto.ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

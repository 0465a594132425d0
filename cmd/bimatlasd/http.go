package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bimatlas/core/internal/query"
	"github.com/bimatlas/core/internal/stream"
	"github.com/bimatlas/core/internal/types"
)

// router builds the query surface's HTTP routing (spec.md §4.5, §4.6, §4.7):
// one path-parameterized route per read operation, plus the upload and
// catalog endpoints. chi is adopted here (rather than the teacher's bare
// net/http ServeMux, which predates Go 1.22 pattern routing) because the
// query surface's routes carry path parameters (up to two, as in
// /branches/{branchID}/products/{globalID}) and a mux with named params and
// middleware chaining earns its keep.
func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", a.handleCreateProject)
		r.Delete("/{projectID}", a.handleDeleteProject)
		r.Post("/{projectID}/branches", a.handleCreateBranch)
	})

	r.Route("/branches/{branchID}", func(r chi.Router) {
		r.Post("/ingest", a.handleIngest)
		r.Get("/revisions", a.handleRevisions)
		r.Get("/revisions/diff", a.handleRevisionDiff)
		r.Get("/products", a.handleProducts)
		r.Get("/products/stream", a.handleProductsStream)
		r.Get("/products/{globalID}", a.handleProduct)
		r.Get("/spatial-tree", a.handleSpatialTree)
	})

	return r
}

func (a *app) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		a.log.Info("request", zap.String("method", req.Method), zap.String("path", req.URL.Path))
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a {kind, message} body. kind comes from types.Kind; a
// 400 whose error carries none of the types sentinel errors is reported as
// ValidationError rather than types.Kind's StoreError fallback.
func writeError(w http.ResponseWriter, status int, err error) {
	kind := types.Kind(err)
	if status == http.StatusBadRequest && kind == "StoreError" && !errors.Is(err, types.ErrStore) {
		kind = "ValidationError"
	}
	writeJSON(w, status, map[string]string{"kind": kind, "message": err.Error()})
}

func branchIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "branchID"), 10, 64)
}

func revFromQuery(r *http.Request, fallback int64) (int64, error) {
	v := r.URL.Query().Get("rev")
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func (a *app) resolveRev(r *http.Request, branchID int64) (int64, error) {
	latest, err := a.rel.LatestRevision(r.Context(), branchID)
	if err != nil {
		return 0, err
	}
	return revFromQuery(r, latest)
}

func (a *app) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	project, branch, err := a.catalog.CreateProject(r.Context(), body.Name, body.Description)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": project, "branch": branch})
}

func (a *app) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	branch, err := a.catalog.CreateBranch(r.Context(), projectID, body.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, branch)
}

func (a *app) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.catalog.DeleteProject(r.Context(), projectID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIngest accepts a multipart upload of an IFC STEP file, exercising
// the same revision.Writer the `ingest` CLI subcommand calls. An
// Idempotency-Key header lets an upload client retry a dropped response
// without double-ingesting (spec.md §9's idempotent-retry design note).
func (a *app) handleIngest(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token := r.Header.Get("Idempotency-Key")
	if token != "" {
		if cached, ok := a.catalog.CachedResult(token); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if err := r.ParseMultipartForm(256 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("ifc")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	tmp, err := spoolUpload(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer removeSpooled(tmp)

	var label *string
	if l := r.FormValue("label"); l != "" {
		label = &l
	}

	result, err := a.writer.Ingest(r.Context(), branchID, tmp, label)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	a.catalog.RecordResult(token, result)
	writeJSON(w, http.StatusOK, result)
}

func (a *app) handleProduct(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rev, err := a.resolveRev(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	globalID := types.GlobalID(chi.URLParam(r, "globalID"))

	product, err := a.query.Product(r.Context(), branchID, globalID, rev)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func parseFilter(r *http.Request) query.Filter {
	var classes []types.IfcClass
	if raw := r.URL.Query().Get("ifc_class"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			classes = append(classes, types.IfcClass(c))
		}
	}
	var containedIn *types.GlobalID
	if c := r.URL.Query().Get("contained_in"); c != "" {
		g := types.GlobalID(c)
		containedIn = &g
	}
	return query.Filter{
		IfcClasses:    classes,
		ContainedIn:   containedIn,
		SubstringText: r.URL.Query().Get("q"),
	}
}

func (a *app) handleProducts(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rev, err := a.resolveRev(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	products, err := a.query.Products(r.Context(), branchID, rev, parseFilter(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *app) handleProductsStream(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rev, err := a.resolveRev(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	seq, total, err := a.query.ProductsStream(r.Context(), branchID, rev, parseFilter(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := stream.Products(r.Context(), w, a.log, total, seq); err != nil {
		a.log.Warn("product stream terminated early", zap.Error(err))
	}
}

func (a *app) handleRevisions(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	revisions, err := a.query.Revisions(r.Context(), branchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, revisions)
}

func (a *app) handleRevisionDiff(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fromRev, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	toRev, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	changes, err := a.query.RevisionDiff(r.Context(), branchID, fromRev, toRev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

func (a *app) handleSpatialTree(w http.ResponseWriter, r *http.Request) {
	branchID, err := branchIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rev, err := a.resolveRev(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tree, err := a.query.SpatialTree(r.Context(), branchID, rev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

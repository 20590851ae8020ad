// Package httpapi exposes the gateway over HTTP.
//
// It serves read endpoints for content collections and an authenticated
// revalidation endpoint for purging cache entries on demand.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/PetroPricesnearMe/content-gateway/auth"
	"github.com/PetroPricesnearMe/content-gateway/content"
	"github.com/PetroPricesnearMe/content-gateway/gateway"
	"github.com/PetroPricesnearMe/content-gateway/observe"
)

// ContentGateway is the subset of the gateway the handler needs.
type ContentGateway interface {
	FetchAll(ctx context.Context, collection string, query content.Query) (*content.Page, error)
	FetchByID(ctx context.Context, collection, id string) (*content.Record, error)
	Search(ctx context.Context, collection, term string, query content.Query) (*content.Page, error)
	Revalidate(ctx context.Context, tags, keys []string) int
}

// Config configures the HTTP handler.
type Config struct {
	// Gateway serves content requests. Required.
	Gateway ContentGateway

	// Authenticator guards POST /revalidate. Nil disables the endpoint.
	Authenticator auth.Authenticator

	// Logger defaults to a no-op logger.
	Logger observe.Logger
}

// Handler routes content and revalidation requests.
type Handler struct {
	gw     ContentGateway
	authn  auth.Authenticator
	logger observe.Logger
}

// New creates the HTTP handler.
func New(config Config) (*Handler, error) {
	if config.Gateway == nil {
		return nil, errors.New("httpapi: gateway is required")
	}
	if config.Logger == nil {
		config.Logger = observe.NoopLogger()
	}
	return &Handler{
		gw:     config.Gateway,
		authn:  config.Authenticator,
		logger: config.Logger,
	}, nil
}

// Routes registers the handler's endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /content/{collection}", h.handleList)
	mux.HandleFunc("GET /content/{collection}/{id}", h.handleGet)
	if h.authn != nil {
		mux.HandleFunc("POST /revalidate", h.handleRevalidate)
	}
	return mux
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")

	query, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var page *content.Page
	if query.Search != "" {
		page, err = h.gw.Search(r.Context(), collection, query.Search, query)
	} else {
		page, err = h.gw.FetchAll(r.Context(), collection, query)
	}
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	id := r.PathValue("id")

	rec, err := h.gw.FetchByID(r.Context(), collection, id)
	if err != nil {
		h.writeGatewayError(w, r, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// revalidateRequest is the POST /revalidate body.
type revalidateRequest struct {
	Tags []string `json:"tags"`
	Keys []string `json:"keys"`
}

type revalidateResponse struct {
	OK      bool `json:"ok"`
	Removed int  `json:"removed"`
}

func (h *Handler) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	req := &auth.AuthRequest{Headers: r.Header, Resource: "revalidate"}
	result, err := h.authn.Authenticate(r.Context(), req)
	if err != nil || !result.Authenticated {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body revalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Tags) == 0 && len(body.Keys) == 0 {
		writeError(w, http.StatusBadRequest, "tags or keys required")
		return
	}

	removed := h.gw.Revalidate(r.Context(), body.Tags, body.Keys)
	h.logger.Info(r.Context(), "cache revalidated",
		observe.Field{Key: "principal", Value: result.Identity.Principal},
		observe.Field{Key: "removed", Value: removed})

	writeJSON(w, http.StatusOK, revalidateResponse{OK: true, Removed: removed})
}

// providerError is one failed attempt in a 502 response.
type providerError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

type badGatewayResponse struct {
	Error     string          `json:"error"`
	Providers []providerError `json:"providers"`
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	var chainErr *gateway.ChainError
	if errors.As(err, &chainErr) {
		h.logger.Error(r.Context(), "all providers failed",
			observe.Field{Key: "collection", Value: chainErr.Collection},
			observe.Field{Key: "op", Value: chainErr.Op})
		attempts := make([]providerError, 0, len(chainErr.Attempts))
		for _, a := range chainErr.Attempts {
			attempts = append(attempts, providerError{Provider: a.Provider, Error: a.Err.Error()})
		}
		writeJSON(w, http.StatusBadGateway, badGatewayResponse{
			Error:     "all content providers failed",
			Providers: attempts,
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

// parseQuery maps URL parameters onto the content query model.
func parseQuery(r *http.Request) (content.Query, error) {
	var q content.Query
	params := r.URL.Query()

	if v := params.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, errors.New("invalid page parameter")
		}
		q.Page = n
	}
	if v := params.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, errors.New("invalid pageSize parameter")
		}
		q.PageSize = n
	}
	if v := params.Get("sort"); v != "" {
		field, order, _ := strings.Cut(v, ":")
		if field == "" {
			return q, errors.New("invalid sort parameter")
		}
		if order != "" && order != content.SortAsc && order != content.SortDesc {
			return q, errors.New("invalid sort order")
		}
		q.Sort = &content.Sort{Field: field, Order: order}
	}
	if v := params.Get("filters"); v != "" {
		if err := json.Unmarshal([]byte(v), &q.Filters); err != nil {
			return q, errors.New("filters must be a JSON object")
		}
	}
	q.Search = params.Get("search")

	return q, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

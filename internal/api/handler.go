package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/shelfledger/internal/blob"
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/models"
	"github.com/punchamoorthee/shelfledger/internal/notify"
	"github.com/punchamoorthee/shelfledger/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "library_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	logMsgRequestFailed = "request failed"
	logMsgStoreDown     = "store health check failed"
	logAttrMethod       = "method"
	logAttrEndpoint     = "endpoint"
	logAttrStatus       = "status"
	logAttrError        = "error"
)

// Exporter writes a snapshot of the ledger somewhere durable.
type Exporter interface {
	Export(ctx context.Context) (models.ExportResult, error)
}

// Feed lists recent command outcomes.
type Feed interface {
	Recent() []notify.Notification
}

type Handler struct {
	ledger   *service.Ledger
	feed     Feed
	exporter Exporter
	logger   *slog.Logger
	idem     *idempotencyCache
}

func NewHandler(ledger *service.Ledger, feed Feed, exporter Exporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		ledger:   ledger,
		feed:     feed,
		exporter: exporter,
		logger:   logger,
		idem:     newIdempotencyCache(defaultIdempotencyKeys),
	}
}

// Router registers every endpoint on a fresh gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	h.handle(r, "/health", http.MethodGet, h.HealthCheckHandler)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	h.handle(v1, "/books", http.MethodGet, h.ListBooksHandler)
	h.handle(v1, "/books", http.MethodPost, h.CreateBookHandler)
	h.handle(v1, "/books/{id}", http.MethodGet, h.GetBookHandler)
	h.handle(v1, "/books/{id}", http.MethodPut, h.UpdateBookHandler)
	h.handle(v1, "/books/{id}", http.MethodPatch, h.UpdateBookHandler)
	h.handle(v1, "/books/{id}", http.MethodDelete, h.DeleteBookHandler)

	h.handle(v1, "/members", http.MethodGet, h.ListMembersHandler)
	h.handle(v1, "/members", http.MethodPost, h.CreateMemberHandler)
	h.handle(v1, "/members/{id}", http.MethodGet, h.GetMemberHandler)
	h.handle(v1, "/members/{id}", http.MethodDelete, h.DeleteMemberHandler)

	h.handle(v1, "/borrowings", http.MethodGet, h.ListBorrowingsHandler)
	h.handle(v1, "/borrowings", http.MethodPost, h.IssueBookHandler)
	h.handle(v1, "/borrowings/{id}", http.MethodGet, h.GetBorrowingHandler)
	h.handle(v1, "/borrowings/{id}/return", http.MethodPost, h.ReturnBookHandler)

	h.handle(v1, "/stats", http.MethodGet, h.StatsHandler)
	h.handle(v1, "/notifications", http.MethodGet, h.NotificationsHandler)
	h.handle(v1, "/admin/export", http.MethodPost, h.ExportHandler)
	return r
}

// handle wraps fn with the request counter and latency histogram.
func (h *Handler) handle(r *mux.Router, path, method string, fn http.HandlerFunc) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		endpoint := path
		if tpl, err := mux.CurrentRoute(req).GetPathTemplate(); err == nil {
			endpoint = tpl
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, req)
		httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(rec.status)).Inc()
	}).Methods(method)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrConflict), errors.Is(err, blob.ErrExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code, payload := h.errorPayload(r, err)
	respondWithJSON(w, code, payload)
}

// errorPayload picks the status and client-facing message for err. Server
// faults are logged and their detail is not exposed.
func (h *Handler) errorPayload(r *http.Request, err error) (int, models.ErrorResponse) {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case code == http.StatusInternalServerError:
		h.logger.Error(logMsgRequestFailed,
			logAttrMethod, r.Method,
			logAttrEndpoint, r.URL.Path,
			logAttrStatus, code,
			logAttrError, err.Error())
		msg = "Internal Server Error"
	case errors.Is(err, domain.ErrUnavailable):
		msg = "Book not available"
	}
	return code, models.ErrorResponse{Error: msg}
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		body = []byte(`{"error":"Internal Server Error"}`)
	}
	writeRaw(w, code, body)
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (h *Handler) overdue(b domain.Borrowing) bool {
	return service.IsOverdue(b, h.ledger.Today())
}

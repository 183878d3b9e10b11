package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/antipr000/NobaServer-sub008/internal/models"
	"github.com/antipr000/NobaServer-sub008/internal/pomelo"
	"github.com/antipr000/NobaServer-sub008/internal/service"
)

// Signature material travels in headers; the body is signed raw.
const (
	HeaderEndpoint       = "X-Endpoint"
	HeaderTimestamp      = "X-Timestamp"
	HeaderSignature      = "X-Signature"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_authorization_decisions_total",
		Help: "Authorization decisions returned to the card network, by detailed status",
	}, []string{"detailed_status", "summary_status"})

	decisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "card_authorization_duration_seconds",
		Help:    "Latency distribution of the authorization pipeline",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"endpoint"})
)

// Handler terminates the card network's webhook. It gates on endpoint path
// and signature before anything touches the ledgers, and it answers HTTP
// 200 with a signed, well-formed decision in every case: the network must
// never see a 5xx for an internal fault.
type Handler struct {
	service     *service.AuthorizationService
	signer      *pomelo.Signer
	webhookPath string
	log         *logrus.Logger
}

func NewHandler(svc *service.AuthorizationService, signer *pomelo.Signer, webhookPath string, log *logrus.Logger) *Handler {
	return &Handler{service: svc, signer: signer, webhookPath: webhookPath, log: log}
}

// WebhookPath is the route the authorization webhook is mounted on.
func (h *Handler) WebhookPath() string {
	return h.webhookPath
}

func (h *Handler) AuthorizeTransaction(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(decisionDuration.WithLabelValues(h.webhookPath))
	defer timer.ObserveDuration()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.WithError(err).Warn("webhook body read failed")
		h.respondDecision(w, models.NewAuthorizationResponse(models.StatusOther))
		return
	}

	endpoint := r.Header.Get(HeaderEndpoint)
	if endpoint != h.webhookPath {
		h.log.WithField("endpoint", endpoint).Warn("webhook endpoint mismatch")
		h.respondDecision(w, models.NewAuthorizationResponse(models.StatusOther))
		return
	}

	timestamp := r.Header.Get(HeaderTimestamp)
	signature := r.Header.Get(HeaderSignature)
	if !h.signer.Verify(timestamp, endpoint, body, signature) {
		h.log.Warn("webhook signature verification failed")
		h.respondDecision(w, models.NewAuthorizationResponse(models.StatusOther))
		return
	}

	var req models.AuthorizationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.log.WithError(err).Warn("webhook payload malformed")
		h.respondDecision(w, models.NewAuthorizationResponse(models.StatusOther))
		return
	}
	req.IdempotencyKey = r.Header.Get(HeaderIdempotencyKey)
	if req.IdempotencyKey == "" {
		h.log.Warn("webhook missing idempotency key")
		h.respondDecision(w, models.NewAuthorizationResponse(models.StatusOther))
		return
	}

	resp := h.service.Authorize(r.Context(), &req)
	h.respondDecision(w, resp)
}

// respondDecision signs and writes the decision. Always HTTP 200.
func (h *Handler) respondDecision(w http.ResponseWriter, resp *models.AuthorizationResponse) {
	decisionsTotal.WithLabelValues(string(resp.DetailedStatus), string(resp.SummaryStatus)).Inc()

	body, err := json.Marshal(resp)
	if err != nil {
		// Marshaling a flat struct of strings cannot realistically fail,
		// but the fail-closed contract still applies.
		body = []byte(`{"detailed_status":"SYSTEM_ERROR","summary_status":"REJECTED","message":""}`)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderTimestamp, timestamp)
	w.Header().Set(HeaderEndpoint, h.webhookPath)
	w.Header().Set(HeaderSignature, h.signer.Sign(timestamp, h.webhookPath, body))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// HealthCheck responds for load-balancer probes.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

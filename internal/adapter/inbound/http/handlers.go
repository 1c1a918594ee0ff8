package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/storyglot/authz/internal/ctxkey"
	"github.com/storyglot/authz/internal/domain/access"
	"github.com/storyglot/authz/internal/domain/audit"
	"github.com/storyglot/authz/internal/service"
)

// maxAuthorizeBodyBytes caps the authorize request body.
const maxAuthorizeBodyBytes = 1 << 20

// authorizeRequest is the wire shape of POST /v1/authorize.
type authorizeRequest struct {
	Rules []access.RequiredRule `json:"rules"`
}

// errorResponse is the wire shape of non-decision errors.
type errorResponse struct {
	Error string `json:"error"`
}

// AuthorizeHandler evaluates required rules against the authenticated
// caller's context and writes the decision. A denied check is still a 200:
// the decision body carries allowed=false and callers map that to their
// own status.
func AuthorizeHandler(authorizer *service.AuthorizationService, metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing identity")
			return
		}

		var req authorizeRequest
		body := http.MaxBytesReader(w, r.Body, maxAuthorizeBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		decision := authorizer.Authorize(r.Context(), req.Rules, identity.UserContext())

		if metrics != nil {
			label := string(audit.DecisionDeny)
			if decision.Allowed {
				label = string(audit.DecisionAllow)
			}
			metrics.ChecksTotal.WithLabelValues(label).Inc()
		}

		logger := ctxkey.LoggerFromContext(r.Context())
		logger.Debug("authorize request handled",
			"user_id", identity.ID,
			"tenant_id", identity.TenantID,
			"rules", len(req.Rules),
			"allowed", decision.Allowed,
		)

		writeJSON(w, http.StatusOK, decision)
	})
}

// HealthResponse is the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status  string            `json:"status"` // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// HealthChecker verifies component health.
type HealthChecker struct {
	abilities *service.AbilityService
	audits    *service.AuditService
	version   string
}

// NewHealthChecker creates a HealthChecker. Pass nil for components that
// are not available.
func NewHealthChecker(abilities *service.AbilityService, audits *service.AuditService, version string) *HealthChecker {
	return &HealthChecker{abilities: abilities, audits: audits, version: version}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.abilities != nil {
		checks["ability_cache"] = fmt.Sprintf("ok: %d entries", h.abilities.Size())
	} else {
		checks["ability_cache"] = "not configured"
	}

	if h.audits != nil {
		depth := h.audits.ChannelDepth()
		capacity := h.audits.ChannelCapacity()
		percentFull := 0
		if capacity > 0 {
			percentFull = depth * 100 / capacity
		}

		if percentFull > 90 {
			checks["audit"] = fmt.Sprintf("degraded: %d/%d (%d%%)", depth, capacity, percentFull)
			healthy = false
		} else {
			checks["audit"] = fmt.Sprintf("ok: %d/%d (%d%%)", depth, capacity, percentFull)
		}

		if drops := h.audits.Drops(); drops > 0 {
			checks["audit_drops"] = fmt.Sprintf("%d dropped", drops)
		}
	} else {
		checks["audit"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{Status: status, Checks: checks, Version: h.version}
}

// Handler returns the /healthz handler. Unhealthy responses use 503 so
// load balancers can act on them.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check()
		code := http.StatusOK
		if resp.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

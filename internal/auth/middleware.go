package auth

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/clientportal/portal/internal/platform/httpx"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
)

// ActivitySink receives the per-request access log entry. Implementations
// must not block the request on persistence.
type ActivitySink interface {
	Record(ctx context.Context, entry store.ActivityEntry)
}

// Middleware authenticates bearer tokens.
type Middleware struct {
	service *Service
	sink    ActivitySink
	logger  *slog.Logger
}

// NewMiddleware constructs a Middleware. sink may be nil.
func NewMiddleware(service *Service, sink ActivitySink, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{service: service, sink: sink, logger: logger}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// ClientIP returns the request's remote host without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler rejects unauthenticated requests and attaches the principal and
// request metadata to the context of authenticated ones.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			httpx.RespondError(w, shared.ErrNotAuthenticated)
			return
		}
		principal, err := m.service.Principal(r.Context(), token)
		if err != nil {
			if httpx.StatusOf(err) == http.StatusInternalServerError {
				m.logger.Error("resolve principal", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		meta := shared.RequestMeta{IP: ClientIP(r), UserAgent: r.UserAgent()}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		ctx = shared.ContextWithRequestMeta(ctx, meta)
		if m.sink != nil {
			m.sink.Record(ctx, store.ActivityEntry{
				UserID:    principal.UserID,
				Action:    r.Method + " " + r.URL.Path,
				Details:   map[string]any{"ip": meta.IP, "userAgent": meta.UserAgent},
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
			})
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

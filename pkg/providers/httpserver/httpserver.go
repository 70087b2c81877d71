// Package httpserver implements the wascc:http_server reference
// capability provider: it terminates HTTP connections and proxies
// each request to its bound actor as a HandleRequest invocation.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lattice-run/lattice-host/pkg/bus"
	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/log"
	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/types"
)

// HandleRequestOp is the operation the provider invokes on the bound
// actor for every inbound HTTP request.
const HandleRequestOp = "HandleRequest"

// request is the JSON envelope handed to the bound actor.
type request struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	QueryString string            `json:"query_string"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
}

// response is the JSON envelope the bound actor is expected to return.
type response struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Provider is one wascc:http_server binding: a single HTTP listener
// proxying to a single bound actor.
type Provider struct {
	bus bus.Bus

	mu        sync.Mutex
	srv       *http.Server
	actorPK   string
	jwtSecret string
}

var _ plugin.Handle = (*Provider)(nil)

// New constructs a Provider that issues HandleRequest invocations over b.
func New(b bus.Bus) *Provider {
	return &Provider{bus: b}
}

// Configure starts (or restarts, on a reconfigure) the HTTP listener
// named by the PORT config value, proxying to cfg.Module. An optional
// JWT config value requires a valid Bearer token on every request.
func (p *Provider) Configure(cfg types.BindConfig) error {
	port := cfg.Values["PORT"]
	if port == "" {
		return fmt.Errorf("httpserver: PORT config value is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.srv != nil {
		_ = p.srv.Close()
	}
	p.actorPK = cfg.Module
	p.jwtSecret = cfg.Values["JWT"]

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handle)
	p.srv = &http.Server{Addr: ":" + port, Handler: mux}

	ln, err := net.Listen("tcp", p.srv.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen on %s: %w", p.srv.Addr, err)
	}
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithCapability("wascc:http_server", port).Error().Err(err).Msg("http server exited")
		}
	}()
	return nil
}

func (p *Provider) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	actorPK, secret := p.actorPK, p.jwtSecret
	p.mu.Unlock()

	if secret != "" && !authorized(r, secret) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, _ := io.ReadAll(r.Body)
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[strings.ToLower(k)] = r.Header.Get(k)
	}
	headers["host"] = r.Host

	req := request{
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     headers,
		Body:        string(body),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	inv := types.NewInvocationToActor(types.SystemActor, actorPK, HandleRequestOp, payload)
	resp, err := p.bus.Invoke(ctx, types.ActorSubject(actorPK), inv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if resp.Error != "" {
		http.Error(w, resp.Error, http.StatusInternalServerError)
		return
	}

	var out response
	if err := json.Unmarshal(resp.Msg, &out); err != nil {
		http.Error(w, "malformed actor response", http.StatusInternalServerError)
		return
	}
	for k, v := range out.Headers {
		w.Header().Set(k, v)
	}
	status := out.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(out.Body))
}

func authorized(r *http.Request, secret string) bool {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return false
	}
	tokenStr := strings.TrimPrefix(auth, "Bearer ")
	_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err == nil
}

// HandleCall answers direct invocations addressed to the provider
// subject (outside of configuration); the HTTP provider has no such
// operations today, so every call is an error.
func (p *Provider) HandleCall(_ context.Context, operation string, _ []byte) ([]byte, error) {
	return nil, errors.Newf(errors.KindCapabilityProvider, "httpserver", "unsupported operation %q", operation)
}

// Close stops the HTTP listener.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.srv == nil {
		return nil
	}
	return p.srv.Close()
}

// Package httpapi exposes the telephony webhooks and the operator API on a
// single router. Webhook handlers answer in the provider's call-control XML;
// everything else speaks JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/sara/internal/config"
	"github.com/antoniostano/sara/internal/customers"
	"github.com/antoniostano/sara/internal/dialog"
	"github.com/antoniostano/sara/internal/observability"
	"github.com/antoniostano/sara/internal/orders"
	"github.com/antoniostano/sara/internal/policy"
	"github.com/antoniostano/sara/internal/prompts"
	"github.com/antoniostano/sara/internal/runtime"
	"github.com/antoniostano/sara/internal/store"
	"github.com/antoniostano/sara/internal/tts"
	"github.com/antoniostano/sara/internal/twiml"
)

// Deps carries the server's collaborators. Sink, Feed, StatusLog, Speech and
// Metrics may be nil; the matching endpoints then degrade or answer 501.
type Deps struct {
	Engine    *dialog.Engine
	Evaluator *runtime.Evaluator
	Overrides *runtime.Store
	KV        store.KV
	Sink      *orders.Sink
	Feed      *orders.Feed
	StatusLog *orders.Logbook
	Customers *customers.Directory
	Prompts   *prompts.Catalog
	Speech    *tts.Client
	Metrics   *observability.Metrics
}

type Server struct {
	cfg       config.Config
	engine    *dialog.Engine
	eval      *runtime.Evaluator
	overrides *runtime.Store
	kv        store.KV
	sink      *orders.Sink
	feed      *orders.Feed
	statusLog *orders.Logbook
	customers *customers.Directory
	prompts   *prompts.Catalog
	speech    *tts.Client
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, d Deps) *Server {
	return &Server{
		cfg:       cfg,
		engine:    d.Engine,
		eval:      d.Evaluator,
		overrides: d.Overrides,
		kv:        d.KV,
		sink:      d.Sink,
		feed:      d.Feed,
		statusLog: d.StatusLog,
		customers: d.Customers,
		prompts:   d.Prompts,
		speech:    d.Speech,
		metrics:   d.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser connections must come from the dashboard's own
				// origin. Non-browser clients omit Origin and pass.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/voice/incoming", s.handleIncoming)
	r.Post("/voice/incoming", s.handleIncoming)
	r.Get("/voice/step", s.handleStep)
	r.Post("/voice/step", s.handleStep)
	r.Post("/voice/handle", s.handleHandle)
	r.Post("/voice/status", s.handleStatus)
	r.Get("/tts", s.handleTTS)

	r.Get("/runtime/status", s.handleRuntimeStatus)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/crm/lookup", s.handleCRMLookup)
	r.Post("/order/submit", s.handleOrderSubmit)

	r.Route("/admin", func(r chi.Router) {
		r.Use(policy.BasicAuth(s.cfg.AdminUser, s.cfg.AdminPass))
		r.Post("/toggles", s.handleToggles)
		r.Get("/orders", s.handleOrders)
		r.Get("/ws", s.handleFeedWS)
	})

	return r
}

// baseURL is the absolute URL prefix handed to the provider in redirects and
// play URLs. Behind the tunnel or load balancer the configured public base
// wins over whatever host header arrives.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

func (s *Server) writeTwiML(w http.ResponseWriter, res *twiml.Response) {
	body, err := res.Render()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "twiml_render", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(body)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

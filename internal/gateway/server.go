package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sandstormgo/internal/gateway/sessioncache"
)

// BridgeHandle is whatever a UI/API-session bridge looks like to the
// gateway; the real implementation is an internal/websession bridge
// wrapping a WebSession capability.
type BridgeHandle interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// ForeignInfo is the tagged union of what a foreign hostname resolves
// to (spec §3 "Foreign-hostname entry").
type ForeignInfo struct {
	Kind     ForeignKind
	PublicID string
}

type ForeignKind int

const (
	ForeignUnknown ForeignKind = iota
	ForeignStaticPublishing
	ForeignStandalone
)

// Server is the gateway's HTTP demultiplexer (spec §4.3).
type Server struct {
	matcher         WildcardMatcher
	shellSubdomains []string
	shell           http.Handler
	apiHandler      func(w http.ResponseWriter, r *http.Request, match HostMatch)
	uiHandler       func(w http.ResponseWriter, r *http.Request, match HostMatch)
	staticHandler   func(w http.ResponseWriter, r *http.Request, hostID string)
	foreignResolver func(host string) (ForeignInfo, bool)

	uiSessions     *sessioncache.Cache[BridgeHandle]
	apiSessions    *sessioncache.Cache[BridgeHandle]
	staticSessions *sessioncache.Cache[BridgeHandle]

	log *slog.Logger
}

// Config wires the per-dispatch-target handlers; all are optional so
// a partial server (e.g. only static-publishing) can still be built
// for tests.
type Config struct {
	WildcardHost    string
	ShellSubdomains []string
	Shell           http.Handler
	APIHandler      func(w http.ResponseWriter, r *http.Request, match HostMatch)
	UIHandler       func(w http.ResponseWriter, r *http.Request, match HostMatch)
	StaticHandler   func(w http.ResponseWriter, r *http.Request, hostID string)
	ForeignResolver func(host string) (ForeignInfo, bool)
	Logger          *slog.Logger
}

func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		matcher:         NewWildcardMatcher(cfg.WildcardHost),
		shellSubdomains: cfg.ShellSubdomains,
		shell:           cfg.Shell,
		apiHandler:      cfg.APIHandler,
		uiHandler:       cfg.UIHandler,
		staticHandler:   cfg.StaticHandler,
		foreignResolver: cfg.ForeignResolver,
		uiSessions:      sessioncache.New[BridgeHandle](),
		apiSessions:     sessioncache.New[BridgeHandle](),
		staticSessions:  sessioncache.New[BridgeHandle](),
		log:             log,
	}
}

// Router builds the gorilla/mux router that applies the dispatch rules
// in first-match order (spec §4.3).
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool { return true }).
		HandlerFunc(s.dispatch)
	return RealIPHandler(r)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	host := hostWithoutPort(r.Host)
	match := ClassifyHost(host, s.matcher, s.shellSubdomains)

	switch match.Kind {
	case HostShell:
		if s.shell != nil {
			s.shell.ServeHTTP(w, r)
			return
		}
		http.Error(w, "shell backend not configured", http.StatusBadGateway)

	case HostAPIGeneric, HostAPIGrain:
		if s.apiHandler != nil {
			s.apiHandler(w, r, match)
			return
		}
		http.Error(w, "API access forbidden", http.StatusForbidden)

	case HostSelfTest:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Self-test OK.")

	case HostUIGrain:
		if s.uiHandler != nil {
			s.uiHandler(w, r, match)
			return
		}
		http.Error(w, "UI session handling not configured", http.StatusBadGateway)

	case HostStaticPublishing:
		if s.staticHandler != nil {
			s.staticHandler(w, r, match.HostID)
			return
		}
		http.NotFound(w, r)

	case HostForeign:
		s.dispatchForeign(w, r, host)
	}
}

func (s *Server) dispatchForeign(w http.ResponseWriter, r *http.Request, host string) {
	if s.foreignResolver == nil {
		http.NotFound(w, r)
		return
	}
	info, ok := s.foreignResolver(host)
	if !ok || info.Kind == ForeignUnknown {
		http.NotFound(w, r)
		return
	}
	switch info.Kind {
	case ForeignStaticPublishing:
		if s.staticHandler != nil {
			s.staticHandler(w, r, info.PublicID)
			return
		}
	case ForeignStandalone:
		if s.shell != nil {
			s.shell.ServeHTTP(w, r)
			return
		}
	}
	http.NotFound(w, r)
}

func hostWithoutPort(host string) string {
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}

// StartPurgeLoop runs the 2-minute session purge cycle shared by the
// UI, API and static session tables (spec §3, §4.3 "Session caching").
func (s *Server) StartPurgeLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			removed := s.uiSessions.Purge(2 * time.Minute)
			removed += s.apiSessions.Purge(2 * time.Minute)
			removed += s.staticSessions.Purge(2 * time.Minute)
			if removed > 0 {
				s.log.Debug("purged idle gateway sessions", "count", removed)
			}
		}
	}
}

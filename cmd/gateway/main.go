// Command gateway runs the platform's front-door HTTP/HTTPS/SMTP
// server: host-based request demultiplexing, TLS termination, and the
// SMTP STARTTLS proxy (spec §4.3).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sandstormgo/internal/config"
	"sandstormgo/internal/gateway"
	"sandstormgo/internal/metrics"
	"sandstormgo/internal/websession"
)

func main() {
	cfg := config.Get()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reporter := metrics.NewRegistry(reg)

	resolver := websession.NewHTTPAddrResolver(cfg.Paths.ResolveSocket())
	bridge := websession.NewBridge(resolver.Resolve, expectedOrigin(cfg.Gateway.BaseURL), log)
	bridge.SetMetrics(reporter)

	srv := gateway.NewServer(gateway.Config{
		WildcardHost:    cfg.Gateway.WildcardHost,
		ShellSubdomains: []string{"ddp", "static", "payments"},
		APIHandler:      bridge.ServeAPI,
		UIHandler:       bridge.ServeUI,
		StaticHandler:   staticPublishingHandler(cfg.Paths.WWWDir()),
		ForeignResolver: foreignResolver(cfg.Paths.WWWDir()),
		Logger:          log,
	})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    cfg.Server.BindIP + ":" + cfg.Server.Port,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	purgeStop := make(chan struct{})
	go srv.StartPurgeLoop(purgeStop)

	go func() {
		log.Info("gateway listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("gateway server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("gateway shutting down")
	close(purgeStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("gateway shutdown error", "err", err)
	}
}

// expectedOrigin derives the "scheme://host" a UI-host state-changing
// request's Origin header must match (spec §9 CSRF decision). baseURL
// is already a full URL (e.g. "https://example.com"); stripping any
// path/trailing slash is enough, there's no scheme juggling to do.
func expectedOrigin(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return strings.TrimSuffix(baseURL, "/")
}

// staticPublishingHandler serves a static-publishing host's files
// straight off disk from <www>/<hostID>/ (spec §4.3 rule 7).
func staticPublishingHandler(wwwDir string) func(w http.ResponseWriter, r *http.Request, hostID string) {
	return func(w http.ResponseWriter, r *http.Request, hostID string) {
		root := filepath.Join(wwwDir, hostID)
		http.FileServer(http.Dir(root)).ServeHTTP(w, r)
	}
}

// foreignResolver classifies a foreign hostname by checking whether
// it has a static-publishing directory on disk (spec §4.3 rule 8).
// Sandcats/standalone DNS ownership verification is out of scope
// here; this only covers the static-publishing half.
func foreignResolver(wwwDir string) func(host string) (gateway.ForeignInfo, bool) {
	return func(host string) (gateway.ForeignInfo, bool) {
		root := filepath.Join(wwwDir, host)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return gateway.ForeignInfo{Kind: gateway.ForeignStaticPublishing, PublicID: host}, true
		}
		return gateway.ForeignInfo{}, false
	}
}

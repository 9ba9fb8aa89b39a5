// Command http-bridge runs the HTTP<->WebSession translation layer
// for grains whose app only speaks plain HTTP (spec §4.4). It sits
// between the gateway (which speaks WebSession semantics) and the
// app's own HTTP server inside the sandbox, translating each request
// through the fixed status-code table and ETag/cookie/CSP rules.
//
// Grounded on original_source/src/sandstorm/sandstorm-http-bridge.c++.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sandstormgo/internal/httpbridge"
	"sandstormgo/internal/websession"
)

func main() {
	listen := flag.String("listen", ":8000", "address the bridge listens on for gateway-originated requests")
	upstream := flag.String("upstream", "127.0.0.1:8080", "the app's own HTTP address inside the sandbox")
	uiHost := flag.String("ui-host", "", "grain UI hostname, used to build the Content-Security-Policy header")
	allowCookies := flag.Bool("allow-cookies", false, "parse the request's Cookie header into the WebSession context")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	bridge := httpbridge.New(*upstream)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRequest(bridge, *uiHost, *allowCookies, log))

	srv := &http.Server{Addr: *listen, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http-bridge listening", "addr", *listen, "upstream", *upstream)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http-bridge server failed", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("http-bridge shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// handleRequest translates one gateway-originated HTTP request into a
// WebSessionRequest, forwards it to the app, and re-encodes the app's
// response per the WebSession response rules (spec §3, §4.4).
func handleRequest(bridge *httpbridge.Bridge, uiHost string, allowCookies bool, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wsCtx := websession.BuildContext(r.Header, r.Host, allowCookies)

		resp, err := bridge.Do(r.Context(), httpbridge.WebSessionRequest{
			Method:  r.Method,
			Path:    r.URL.RequestURI(),
			Headers: r.Header,
			Body:    r.Body,
		})
		if err != nil {
			log.Warn("http-bridge: upstream request failed", "err", err, "path", r.URL.Path)
			http.Error(w, "grain unavailable", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		if uiHost != "" {
			for k, vs := range websession.UIHostHeaders(uiHost, "", false) {
				for _, v := range vs {
					w.Header().Add(k, v)
				}
			}
		}

		if err := websession.Translate(w, resp, wsCtx.Precondition); err != nil {
			log.Warn("http-bridge: response translation failed", "err", err)
		}
	}
}

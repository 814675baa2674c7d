package server

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
	"time"
)

// Hooks lets the binary contribute status details without the server
// depending on config.
type Hooks struct {
	Warnings func() []string
}

func Handler(staticFS fs.FS, hub *Hub, store MessageStore, hooks Hooks) (http.Handler, error) {
	if hub == nil || store == nil {
		return nil, errors.New("server: hub and store are required")
	}

	mux := http.NewServeMux()

	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, hub, store, hooks)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux, nil
}

// Serve runs the store service until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	httpServer := &http.Server{Addr: addr, Handler: h}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("store service on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		// FileServer redirects /index.html to ./, so routes fall back to the root.
		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" || !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}

package schedule

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mgenrique/ess-controller/core/logger"
)

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, svc Service, token string, log logger.Logger) error {
	mux := http.NewServeMux()
	Register(mux, svc, token)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

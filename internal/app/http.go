package app

import (
	"net/http"
	"time"

	"msgsync/pkg/api"
)

const shutdownTimeout = 10 * time.Second

// startHTTP builds the handler tree, starts the server in a goroutine and
// returns a channel carrying any fatal server error.
func (a *App) startHTTP() <-chan error {
	h := api.NewHandler(a.api, api.Options{
		AllowedOrigins: a.cfg.Security.CORS.AllowedOrigins,
		RateRPS:        a.cfg.Security.RateLimit.RPS,
		RateBurst:      a.cfg.Security.RateLimit.Burst,
	})

	a.srv = &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}

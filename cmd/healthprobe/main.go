// healthprobe is a minimal liveness sidecar: it proxies /healthz and /readyz
// checks against a running engine, for orchestrators whose probes cannot set
// identity headers or follow redirects.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the probe endpoint")
	target := flag.String("target", "http://127.0.0.1:8080", "base URL of the engine to probe")
	timeout := flag.Duration("timeout", 2*time.Second, "per-probe timeout")
	flag.Parse()

	client := &fasthttp.Client{
		ReadTimeout:  *timeout,
		WriteTimeout: *timeout,
	}

	h := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch path {
		case "/healthz", "/readyz":
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		status, _, err := client.GetTimeout(nil, *target+path, *timeout)
		ctx.Response.Header.Set("Content-Type", "application/json")
		if err != nil || status != fasthttp.StatusOK {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			_, _ = ctx.WriteString(`{"status":"unreachable"}`)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
		_, _ = ctx.WriteString(`{"status":"ok"}`)
	}

	fmt.Printf("healthprobe listening on %s -> %s\n", *addr, *target)
	srv := &fasthttp.Server{
		Handler:      h,
		Name:         "msgsync-healthprobe",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("healthprobe exit: %v\n", err)
	}
}

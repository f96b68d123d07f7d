package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

type Config struct {
	Port          int
	WebsocketPort int
	ProxyPort     int
	Timeout       time.Duration
}

// New plain net/http server around the middleware-wrapped handler. the
// websocket listener does its own accept loop, it only borrows the address.
func New(ctx context.Context, handler http.Handler, config Config, websocket bool) *http.Server {
	port := config.Port
	if websocket {
		port = config.WebsocketPort
	}

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      handler,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		IdleTimeout:  time.Minute,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
}

/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains middleware functions for HTTP routing, used to log request lifecycle information
such as URI, method, response status, and latency for the health, metrics and upgrade endpoints.
A request that was upgraded to a chat connection is logged when the connection ends, together
with the connection id and the username it was last bound to. It also implements an IP address
anonymization feature to enhance user privacy.
*/
package logx

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// anonymizeIP anonymizes the given IP address string.
// For IPv4, it zeros out the last octet; for IPv6, it keeps only the /64 prefix.
// This preserves approximate geolocation while enhancing user privacy.
func anonymizeIP(ipStr string) string {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}

	if v6 := ip.To16(); v6 != nil {
		return v6.Mask(net.CIDRMask(64, 128)).String()
	}

	return ipStr
}

// connFields collects what a websocket handler learns about the connection it served.
type connFields struct {
	mu       sync.Mutex
	connID   string
	username string
}

type connFieldsKey struct{}

func connFieldsFrom(ctx context.Context) *connFields {
	f, _ := ctx.Value(connFieldsKey{}).(*connFields)
	return f
}

// AnnotateConn records the id of the chat connection served by the current request.
// It is a no-op outside RequestLogger.
func AnnotateConn(ctx context.Context, connID string) {
	if f := connFieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.connID = connID
		f.mu.Unlock()
	}
}

// AnnotateIdentity records the username the chat connection was last bound to.
func AnnotateIdentity(ctx context.Context, username string) {
	if f := connFieldsFrom(ctx); f != nil {
		f.mu.Lock()
		f.username = username
		f.mu.Unlock()
	}
}

// RequestLogger returns an HTTP middleware function that logs detailed information about the HTTP request.
// It creates a new logger instance for each request and injects it into the request context.
func RequestLogger() func(next http.Handler) http.Handler {
	baseLogger := Logger()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			requestID := middleware.GetReqID(r.Context())

			anonIP := anonymizeIP(r.RemoteAddr)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := baseLogger.With().
				Str("component", "http").
				Str("request_id", requestID).
				Str("remote_ip", anonIP).
				Str("request_method", r.Method).
				Str("request_uri", r.RequestURI).
				Logger()

			fields := &connFields{}
			ctx := context.WithValue(logger.WithContext(r.Context()), connFieldsKey{}, fields)
			r = r.WithContext(ctx)

			t1 := time.Now()
			next.ServeHTTP(ww, r)

			fields.mu.Lock()
			connID, username := fields.connID, fields.username
			fields.mu.Unlock()

			if connID != "" {
				logger.Info().
					Str("conn_id", connID).
					Str("username", username).
					Dur("duration", time.Since(t1)).
					Msg("Chat connection closed")
				return
			}

			status := ww.Status()

			logEvent := logger.Info()
			if status >= 500 {
				logEvent = logger.Error()
			} else if status >= 400 {
				logEvent = logger.Warn()
			}

			logEvent.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(t1)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}

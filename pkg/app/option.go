package app

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Middleware wraps the app's HTTP handler.
type Middleware func(next http.Handler) http.Handler

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middleware []Middleware
}

// WithMiddleware configures the app's HTTP server to use the provided middleware.
//
// Middleware is evaluated in addition order, outermost first.
func WithMiddleware(middleware Middleware) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}

// WithRequestLogging logs the method, path, status and latency of every request.
func WithRequestLogging() Option {
	return WithMiddleware(requestLogger(logrus.StandardLogger().WithField("type", "app/http")))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(log *logrus.Entry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			log.WithFields(logrus.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  recorder.status,
				"latency": time.Since(start),
			}).Debug("handled request")
		})
	}
}

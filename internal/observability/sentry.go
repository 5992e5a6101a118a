// Package observability wires error reporting to Sentry.  Every function
// is a no-op until InitSentry succeeds with a DSN.
package observability

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureRequestError reports err with the request method and path attached.
func CaptureRequestError(r *http.Request, op string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("op", op)
		if r != nil {
			scope.SetRequest(r)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value with its stack.
func CapturePanic(r *http.Request, rec any, stack []byte) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetExtra("panic", rec)
		scope.SetExtra("stack", string(stack))
		if r != nil {
			scope.SetRequest(r)
		}
		sentry.CaptureMessage("panic in request")
	})
}

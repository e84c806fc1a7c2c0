package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"leads-backend/internal/apperr"
	"leads-backend/pkg/utils"
)

func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOVERED: %v req=%s\n%s", err, GetRequestID(r.Context()), debug.Stack())
				utils.Error(w, apperr.Internal("panic", nil))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// Recoverer recovers from panics and logs the error. A panic on an upgraded
// websocket request is only logged: the connection no longer belongs to the
// HTTP server, so there is no response to write.
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.Error("panic recovered",
					zap.Any("panic", rvr),
					zap.String("stack", string(debug.Stack())),
					zap.String("request_id", GetRequestID(r)),
					zap.Bool("upgrade", isUpgrade(r)),
				)
				if isUpgrade(r) {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(core.NewAppError(core.ErrInternal, "internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

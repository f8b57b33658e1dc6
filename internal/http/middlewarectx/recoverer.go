package middlewarectx

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/workflow-saas/internal/http/response"
)

const stackFrames = 3

// Recoverer перехватывает панику обработчика, пишет в лог её значение и
// несколько верхних кадров стека, а клиенту отдаёт 500 без подробностей.
func Recoverer(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("panic", fmt.Sprint(rec)),
					slog.Any("stack", callers()),
				)
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(response.InternalError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// callers возвращает первые кадры стека начиная с места паники.
func callers() []string {
	pcs := make([]uintptr, 16)
	// runtime.Callers, callers, отложенная функция, runtime.gopanic
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, stackFrames)
	for len(out) < stackFrames {
		f, more := frames.Next()
		out = append(out, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}
	return out
}

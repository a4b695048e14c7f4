package api

import (
    "context"
    "encoding/json"
    "net/http"

    "github.com/amirimatin/assisted-clustering/pkg/observability/tracing"
)

func startSpan(r *http.Request, name string) (context.Context, func()) {
    return tracing.StartSpan(r.Context(), name, "http.method", r.Method, "http.route", r.URL.Path)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    _ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
    w.Header().Set("Allow", allow)
    http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

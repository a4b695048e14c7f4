package logutil

import (
    "encoding/json"
    "fmt"
    "log"
    "os"
    "strings"
    "sync/atomic"
    "time"
)

var jsonMode atomic.Bool

func init() {
    if os.Getenv("CLUSTERING_LOG_JSON") == "1" || strings.EqualFold(os.Getenv("CLUSTERING_LOG_FORMAT"), "json") {
        jsonMode.Store(true)
    }
}

// SetJSON switches every logger routed through this package between
// "LEVEL msg" lines and one JSON object per line.
func SetJSON(enabled bool) { jsonMode.Store(enabled) }

// JSON reports whether JSON output is active.
func JSON() bool { return jsonMode.Load() }

func Infof(l *log.Logger, f string, args ...any)  { logf(l, "info", f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { logf(l, "warn", f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { logf(l, "error", f, args...) }

func logf(l *log.Logger, level, f string, args ...any) {
    if l == nil { l = log.Default() }
    msg := fmt.Sprintf(f, args...)
    if jsonMode.Load() {
        evt := map[string]any{
            "ts":    time.Now().UTC().Format(time.RFC3339Nano),
            "level": level,
            "msg":   msg,
        }
        if p := strings.TrimSpace(l.Prefix()); p != "" { evt["component"] = strings.TrimSuffix(p, ":") }
        b, _ := json.Marshal(evt)
        log.New(l.Writer(), "", 0).Println(string(b))
        return
    }
    log.New(l.Writer(), l.Prefix()+strings.ToUpper(level)+" ", l.Flags()).Print(msg)
}

// Package logging provides leveled key/value logging over the stdlib
// logger. Output is plain text by default; set ATOMIQ_LOG_FORMAT=json for
// one JSON object per line.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

var (
	logFormatOnce sync.Once
	logAsJSON     bool
)

func jsonMode() bool {
	logFormatOnce.Do(func() {
		logAsJSON = strings.EqualFold(strings.TrimSpace(os.Getenv("ATOMIQ_LOG_FORMAT")), "json")
	})
	return logAsJSON
}

// Info logs an informational message for a component.
func Info(component, msg string, kv ...any) {
	emit("INFO", component, msg, kv...)
}

// Warn logs a recoverable problem, e.g. a dropped file block or a
// fallback path being taken.
func Warn(component, msg string, kv ...any) {
	emit("WARN", component, msg, kv...)
}

// Error logs a failure.
func Error(component, msg string, kv ...any) {
	emit("ERROR", component, msg, kv...)
}

func emit(level, component, msg string, kv ...any) {
	if jsonMode() {
		payload := map[string]any{
			"level":     level,
			"component": component,
			"msg":       msg,
		}
		if len(kv)%2 != 0 {
			kv = append(kv, "(missing)")
		}
		for i := 0; i < len(kv); i += 2 {
			payload[toString(kv[i])] = kv[i+1]
		}
		if data, err := json.Marshal(payload); err == nil {
			log.Print(string(data))
			return
		}
	}
	if level == "INFO" {
		log.Printf("[%s] %s%s", strings.ToUpper(component), msg, formatFields(kv...))
		return
	}
	log.Printf("[%s] %s %s%s", strings.ToUpper(component), level, msg, formatFields(kv...))
}

func formatFields(kv ...any) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(toString(kv[i])))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\t", " ")
}

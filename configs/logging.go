package configs

import (
	"fmt"
	"log"
	"time"
)

// Debug/trace/warn switches, gated the way the teacher gates fmt/log calls
// behind boolean package vars instead of a logging framework.
var (
	ShowDebugInfo = false
	ShowTraceInfo = false
	ShowWarnings  = true
	LogToFile     = false
)

func printf(gate bool, format string, a ...interface{}) {
	if !gate {
		return
	}
	line := time.Now().Format("15:04:05.000") + " <---> " + fmt.Sprintf(format, a...)
	if LogToFile {
		log.Println(line)
	} else {
		fmt.Println(line)
	}
}

// Debugf logs component-level state transitions (registry, election,
// heartbeat). Gated by ShowDebugInfo.
func Debugf(format string, a ...interface{}) {
	printf(ShowDebugInfo, format, a...)
}

// Tracef logs per-message wire traffic. Gated by ShowTraceInfo.
func Tracef(format string, a ...interface{}) {
	printf(ShowTraceInfo, format, a...)
}

// Warnf logs recoverable anomalies (fence retries, dropped replies).
func Warnf(format string, a ...interface{}) {
	printf(ShowWarnings, format, a...)
}

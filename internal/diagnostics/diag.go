package diagnostics

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes emitted by the renderer and its services.
const (
	TransportError  = "TRANSPORT.ERROR"
	TransportBusy   = "TRANSPORT.BUSY"
	TransportSlow   = "TIMING.WIRE_EXCEEDS_TICK"
	LoopUnknown     = "LOOP.UNKNOWN"
	TestRunning     = "TEST.RUNNING"
	TestDone        = "TEST.DONE"
	TestUnknown     = "TEST.UNKNOWN"
	CommandRejected = "COMMAND.REJECTED"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Func receives diagnostics; implementations must not block.
type Func func(Diagnostic)

func (s Severity) level() zerolog.Level {
	switch s {
	case Err:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// Log writes d to the global logger at a level matching its severity.
func Log(d Diagnostic) {
	ev := log.WithLevel(d.Severity.level()).Str("code", d.Code)
	if d.Detail != "" {
		ev = ev.Str("detail", d.Detail)
	}
	if len(d.Evidence) > 0 {
		ev = ev.Fields(d.Evidence)
	}
	ev.Msg(d.Summary)
}

// Fanout calls every non-nil f in order.
func Fanout(fs ...Func) Func {
	return func(d Diagnostic) {
		for _, f := range fs {
			if f != nil {
				f(d)
			}
		}
	}
}

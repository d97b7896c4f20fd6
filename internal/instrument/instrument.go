package instrument

import (
	"context"
	"log"
	"time"
)

// Span measures one unit of work.
type Span interface {
	End()
	SetStatus(status string)
	SetMetadata(key string, value any)
}

// Instrumenter starts spans around engine operations.
type Instrumenter interface {
	StartSpan(ctx context.Context, component, action string) (context.Context, Span)
}

// LogInstrumenter logs span durations on End. The default when
// instrumentation is enabled.
type LogInstrumenter struct{}

func (l *LogInstrumenter) StartSpan(ctx context.Context, component, action string) (context.Context, Span) {
	return ctx, &logSpan{component: component, action: action, start: time.Now()}
}

type logSpan struct {
	component string
	action    string
	status    string
	start     time.Time
}

func (s *logSpan) End() {
	status := s.status
	if status == "" {
		status = "ok"
	}
	log.Printf("%s.%s %s (%s)", s.component, s.action, status, time.Since(s.start).Round(time.Microsecond))
}

func (s *logSpan) SetStatus(status string)           { s.status = status }
func (s *logSpan) SetMetadata(key string, value any) {}

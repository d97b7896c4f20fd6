package instrument

import (
	"fmt"
	"log"
)

// Reporter surfaces internal defects, conditions that indicate a bug in
// this codebase rather than bad user input. A registry entry with a typed
// result but no lowering is the canonical case. In debug builds a defect
// panics so it cannot be shipped; in production it is logged and the
// request degrades gracefully.
type Reporter struct {
	Debug bool
}

func (r *Reporter) Defect(format string, args ...any) {
	if r.Debug {
		panic(fmt.Sprintf(format, args...))
	}
	log.Printf("DEFECT: "+format, args...)
}

package stream

import (
	"strings"
	"sync"

	"github.com/frostdev-ops/scribe/internal/transcript"
)

// Accumulator collects streaming assistant text deltas keyed by run id.
// Partial text only gets reply directives stripped; full normalization waits
// until the finished history arrives, since mid-stream text can split a
// metadata prefix or a JSON payload across deltas.
type Accumulator struct {
	mu   sync.Mutex
	runs map[string]*strings.Builder
}

func NewAccumulator() *Accumulator {
	return &Accumulator{runs: map[string]*strings.Builder{}}
}

// Append adds a delta to a run and returns the directive-stripped text so
// far.
func (a *Accumulator) Append(runID, delta string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.runs[runID]
	if !ok {
		b = &strings.Builder{}
		a.runs[runID] = b
	}
	b.WriteString(delta)

	text, _, _ := transcript.StripDirectives(b.String())
	return text
}

// Text returns the directive-stripped text accumulated for a run.
func (a *Accumulator) Text(runID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.runs[runID]
	if !ok {
		return ""
	}
	text, _, _ := transcript.StripDirectives(b.String())
	return text
}

// Finish removes a run and returns its final directive-stripped text along
// with the reply target the directives selected, if any.
func (a *Accumulator) Finish(runID string) (text, target string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.runs[runID]
	if !ok {
		return "", ""
	}
	delete(a.runs, runID)

	text, target, replyCurrent := transcript.StripDirectives(b.String())
	if target == "" && replyCurrent {
		target = transcript.ReplyToCurrent
	}
	return text, target
}

// Abandon drops a run without returning its text.
func (a *Accumulator) Abandon(runID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.runs, runID)
}

// Active reports how many runs are currently accumulating.
func (a *Accumulator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.runs)
}

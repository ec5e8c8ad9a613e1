package inference

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Snapshot is a point-in-time cumulative view of a streamed response: both
// strings only ever grow. The last snapshot emitted for a turn carries the
// authoritative final content.
type Snapshot struct {
	Reasoning string
	Content   string
}

// Emission is one emitted snapshot together with the newly visible delta.
type Emission struct {
	Snapshot
	Delta string
}

const (
	// DefaultFlushInterval paces snapshot emission so incremental display
	// feels live without causing redraw storms.
	DefaultFlushInterval = 30 * time.Millisecond
	// DefaultFlushChars forces an emission once this many new characters
	// accumulated.
	DefaultFlushChars = 5
	// DefaultPunctuation holds the sentence-terminating characters (ASCII and
	// full-width) that force an emission mid-interval.
	DefaultPunctuation = "\n。！？.!?"
)

// Reconstructor turns a sequence of incremental reasoning/content fragments
// into a paced sequence of cumulative snapshots. Content fragments are
// buffered and flushed when enough time passed, enough characters accumulated,
// or a fragment ends in sentence punctuation; reasoning fragments are a side
// channel and emit immediately. A Reconstructor covers exactly one request and
// is not restartable.
type Reconstructor struct {
	interval    time.Duration
	minChars    int
	punctuation string
	now         func() time.Time

	reasoning    strings.Builder
	content      strings.Builder
	pending      int
	emittedBytes int
	lastEmit     time.Time
}

type ReconstructorOption func(*Reconstructor)

func WithFlushInterval(interval time.Duration) ReconstructorOption {
	return func(r *Reconstructor) {
		r.interval = interval
	}
}

func WithFlushChars(chars int) ReconstructorOption {
	return func(r *Reconstructor) {
		r.minChars = chars
	}
}

func WithPunctuation(punctuation string) ReconstructorOption {
	return func(r *Reconstructor) {
		r.punctuation = punctuation
	}
}

func NewReconstructor(options ...ReconstructorOption) *Reconstructor {
	ret := &Reconstructor{
		interval:    DefaultFlushInterval,
		minChars:    DefaultFlushChars,
		punctuation: DefaultPunctuation,
		now:         time.Now,
	}

	for _, option := range options {
		option(ret)
	}

	ret.lastEmit = ret.now()
	return ret
}

// FeedReasoning appends a reasoning fragment and emits unconditionally:
// reasoning is never buffered.
func (r *Reconstructor) FeedReasoning(fragment string) Emission {
	r.reasoning.WriteString(fragment)
	return Emission{Snapshot: r.Snapshot(), Delta: fragment}
}

// FeedContent appends a content fragment. It reports an emission when any
// flush condition is met: the flush interval elapsed since the last emission,
// the pending character count reached the threshold, or the fragment ends in
// a sentence-terminating character.
func (r *Reconstructor) FeedContent(fragment string) (Emission, bool) {
	if fragment == "" {
		return Emission{}, false
	}

	r.content.WriteString(fragment)
	r.pending += utf8.RuneCountInString(fragment)

	now := r.now()
	shouldEmit := now.Sub(r.lastEmit) >= r.interval ||
		r.pending >= r.minChars ||
		r.endsInPunctuation(fragment)

	if !shouldEmit {
		return Emission{}, false
	}
	return r.emit(now), true
}

// Flush emits whatever content is still unflushed. Engines call it on input
// exhaustion so the caller always observes the complete final content even if
// no flush condition was hit on the last fragment.
func (r *Reconstructor) Flush() (Emission, bool) {
	if r.pending == 0 {
		return Emission{}, false
	}
	return r.emit(r.now()), true
}

// Snapshot returns the current cumulative view, emitted or not. After an
// abnormal stream termination this is the best-effort content.
func (r *Reconstructor) Snapshot() Snapshot {
	return Snapshot{
		Reasoning: r.reasoning.String(),
		Content:   r.content.String(),
	}
}

// Reasoning returns the reasoning text accumulated so far.
func (r *Reconstructor) Reasoning() string {
	return r.reasoning.String()
}

// Content returns the content accumulated so far.
func (r *Reconstructor) Content() string {
	return r.content.String()
}

func (r *Reconstructor) emit(now time.Time) Emission {
	content := r.content.String()
	delta := content[r.emittedBytes:]
	r.emittedBytes = len(content)
	r.pending = 0
	r.lastEmit = now

	return Emission{
		Snapshot: Snapshot{
			Reasoning: r.reasoning.String(),
			Content:   content,
		},
		Delta: delta,
	}
}

func (r *Reconstructor) endsInPunctuation(fragment string) bool {
	last, size := utf8.DecodeLastRuneInString(fragment)
	if size == 0 {
		return false
	}
	return strings.ContainsRune(r.punctuation, last)
}

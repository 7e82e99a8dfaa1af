package processor

import "github.com/aretw0/introspection"

// State exposes queue counters.
type State struct {
	Running   bool `json:"running"`
	Workers   int  `json:"workers"`
	QueueSize int  `json:"queue_size"`
	Queued    int  `json:"queued"`
	Active    int  `json:"active"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
}

// State implements introspection.Introspectable.
func (p *Processor) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Running:   p.started && !p.stopped,
		Workers:   p.workers,
		QueueSize: p.queueSize,
		Queued:    p.pending - p.active,
		Active:    p.active,
		Completed: p.completed,
		Failed:    p.failed,
	}
}

// ComponentType implements introspection.Component.
func (p *Processor) ComponentType() string {
	return "processor"
}

var _ introspection.Introspectable = (*Processor)(nil)
var _ introspection.Component = (*Processor)(nil)

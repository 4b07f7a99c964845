package domain

import (
	"sync"
	"time"
)

// Counter names a diagnostics counter.
type Counter string

// Diagnostics counters.
const (
	CounterCreate           Counter = "create"
	CounterUpdate           Counter = "update"
	CounterRemove           Counter = "remove"
	CounterAttachmentCreate Counter = "attachment-create"
	CounterAttachmentUpdate Counter = "attachment-update"
	CounterFailed           Counter = "failed"
)

// Diagnostics are the per-pass counters. They only grow during a pass.
type Diagnostics struct {
	Create           int `json:"create"`
	Update           int `json:"update"`
	Remove           int `json:"remove"`
	AttachmentCreate int `json:"attachment-create"`
	AttachmentUpdate int `json:"attachment-update"`

	// Failed counts documents skipped because of a contained failure.
	Failed int `json:"failed"`
}

func (d *Diagnostics) add(c Counter, n int) {
	switch c {
	case CounterCreate:
		d.Create += n
	case CounterUpdate:
		d.Update += n
	case CounterRemove:
		d.Remove += n
	case CounterAttachmentCreate:
		d.AttachmentCreate += n
	case CounterAttachmentUpdate:
		d.AttachmentUpdate += n
	case CounterFailed:
		d.Failed += n
	}
}

// Pass is the context of one reconciliation pass. It owns the diagnostics,
// the attachments seen during the pass and the short-circuited spaces.
// A Pass must never be reused for a second pass.
type Pass struct {
	// ID identifies the pass in logs.
	ID string

	// StartedAt is written as last_indexed_date on every record of the pass.
	StartedAt time.Time

	// FullReindex rewrites every document found in the index and disables
	// the per-space short-circuit.
	FullReindex bool

	mu             sync.Mutex
	diagnostics    Diagnostics
	attachments    map[string]map[string]struct{}
	shortCircuited map[string]struct{}
}

// NewPass creates an empty pass context.
func NewPass(id string, startedAt time.Time) *Pass {
	return &Pass{
		ID:             id,
		StartedAt:      startedAt.UTC(),
		attachments:    make(map[string]map[string]struct{}),
		shortCircuited: make(map[string]struct{}),
	}
}

// Count adds n to a counter.
func (p *Pass) Count(c Counter, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.diagnostics.add(c, n)
}

// Diagnostics returns a snapshot of the counters.
func (p *Pass) Diagnostics() Diagnostics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.diagnostics
}

// RememberAttachment records that an attachment was seen as current in a space.
func (p *Pass) RememberAttachment(space, attachmentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids, ok := p.attachments[space]
	if !ok {
		ids = make(map[string]struct{})
		p.attachments[space] = ids
	}
	ids[attachmentID] = struct{}{}
}

// SeenAttachment reports whether the attachment was seen in the space during this pass.
func (p *Pass) SeenAttachment(space, attachmentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.attachments[space][attachmentID]
	return ok
}

// ShortCircuit marks a space as up to date for the rest of the pass.
func (p *Pass) ShortCircuit(space string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shortCircuited[space] = struct{}{}
}

// IsShortCircuited reports whether probing stopped for the space.
func (p *Pass) IsShortCircuited(space string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.shortCircuited[space]
	return ok
}

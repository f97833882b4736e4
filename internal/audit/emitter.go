package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openbank/authcore/model"
	"github.com/openbank/authcore/params"
)

// Emitter records security events without ever blocking the request path.
// Events are buffered on a bounded queue and persisted by a single writer
// goroutine; when the queue is full the event is logged and dropped. Audit
// failures never fail the operation being audited.
type Emitter struct {
	repo    SecurityEventRepository
	queue   chan *model.SecurityEvent
	done    chan struct{}
	closing sync.Once
}

func NewEmitter(repo SecurityEventRepository, queueSize int) *Emitter {
	if queueSize <= 0 {
		queueSize = params.AuditQueueSize
	}
	e := &Emitter{
		repo:  repo,
		queue: make(chan *model.SecurityEvent, queueSize),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit enqueues an event, filling in severity, compliance tags, default
// risk score, and timestamp. It never blocks: a full queue drops the event with a log
// line carrying the full payload.
func (e *Emitter) Emit(event *model.SecurityEvent) {
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if event.ComplianceTags == nil {
		event.ComplianceTags = ComplianceTags(event.EventType)
	}
	if event.RiskScore == 0 {
		event.RiskScore = DefaultRiskScore(event.EventType)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	select {
	case e.queue <- event:
	default:
		slog.Warn("Audit queue full, dropping event",
			"eventType", event.EventType,
			"severity", event.Severity,
			"developerID", event.DeveloperID,
			"projectID", event.ProjectID,
			"ip", event.IP,
			"success", event.Success,
			"reason", event.Reason)
	}
}

func (e *Emitter) run() {
	for event := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), params.StoreOpTimeout)
		if err := e.repo.Create(ctx, event); err != nil {
			slog.Error("Failed to persist security event", "eventType", event.EventType, "error", err)
		}
		cancel()
	}
	close(e.done)
}

// Close drains the queue and stops the writer. Emit after Close panics;
// callers stop emitting before shutdown.
func (e *Emitter) Close() {
	e.closing.Do(func() {
		close(e.queue)
		<-e.done
	})
}

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one notable thing that happened during a build session.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// Source names the component that published the event.
	Source string `json:"source"`

	RunID  string `json:"run_id,omitempty"`
	Zone   string `json:"zone,omitempty"`
	Target string `json:"target,omitempty"`

	Message string `json:"message"`

	// Level is info, warning or error.
	Level string `json:"level"`

	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeRunStarted   = "run.started"
	EventTypeRunCompleted = "run.completed"
	EventTypeRunFailed    = "run.failed"
	EventTypeZoneLoaded   = "zone.loaded"
	EventTypeTargetBuilt  = "target.built"
	EventTypeActionFailed = "action.failed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers. Without EnableAsync,
// subscribers run on the publishing goroutine in subscription order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, root string, targets []string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		Source:  "session",
		RunID:   runID,
		Zone:    root,
		Message: fmt.Sprintf("run %s started in %s", runID, root),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"targets": targets,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID string, built int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		Source:  "session",
		RunID:   runID,
		Message: fmt.Sprintf("run %s completed, %d targets built", runID, built),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"built":    built,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		Source:  "session",
		RunID:   runID,
		Message: fmt.Sprintf("run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishZoneLoaded publishes a zone loaded event.
func (ep *EventPublisher) PublishZoneLoaded(runID, home string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeZoneLoaded,
		Source:  "zone",
		RunID:   runID,
		Zone:    home,
		Message: fmt.Sprintf("zone %s loaded", home),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishTargetBuilt publishes a target built event.
func (ep *EventPublisher) PublishTargetBuilt(runID, zone, target, action string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeTargetBuilt,
		Source:  "builder",
		RunID:   runID,
		Zone:    zone,
		Target:  target,
		Message: fmt.Sprintf("%s built by %s", target, action),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"action":   action,
			"duration": duration.Seconds(),
		},
	})
}

// PublishActionFailed publishes an action failed event.
func (ep *EventPublisher) PublishActionFailed(runID, zone, target, action, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeActionFailed,
		Source:  "builder",
		RunID:   runID,
		Zone:    zone,
		Target:  target,
		Message: fmt.Sprintf("action %s failed for %s: %s", action, target, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"action": action,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts everything.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	if ep == nil {
		return
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := func() {
		for _, event := range batch {
			ep.deliverEvent(event)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			if len(batch) >= ep.config.MaxBatchSize || len(ep.buffer) == 0 {
				flush()
			}
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown drains pending events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events of minLevel or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID allows events for one run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// Config change notification for packforge. Change events use the
// CloudEvents specification so embedding hosts can route them into their
// own event infrastructure unchanged.
package packforge

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ConfigChangedEventType is the CloudEvents type for scope mutations.
const ConfigChangedEventType = "org.packforge.config.changed"

// ConfigChanges is the global change-notification hook. It fires after any
// scope's own change event; subscribers interested in every scope register
// here instead of on each scope.
var ConfigChanges = NewChangeNotifier()

// ChangeHandler receives config change events. Handlers should return
// quickly; they run on the mutating goroutine.
type ChangeHandler func(ctx context.Context, event cloudevents.Event) error

// ChangeNotifier fans config change events out to subscribers. One
// subscriber's failure never stops the others; failures are aggregated and
// returned to the notifying caller for logging.
type ChangeNotifier struct {
	mu   sync.RWMutex
	subs map[string]ChangeHandler
}

// NewChangeNotifier creates an empty notifier.
func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{subs: make(map[string]ChangeHandler)}
}

// Subscribe registers handler and returns a subscription id for Unsubscribe.
func (n *ChangeNotifier) Subscribe(handler ChangeHandler) (string, error) {
	if handler == nil {
		return "", ErrSubscriberNil
	}
	id := uuid.New().String()
	n.mu.Lock()
	n.subs[id] = handler
	n.mu.Unlock()
	return id, nil
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (n *ChangeNotifier) Unsubscribe(id string) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

// Notify delivers event to every subscriber. All subscribers run even when
// earlier ones fail; the combined failure is returned.
func (n *ChangeNotifier) Notify(ctx context.Context, event cloudevents.Event) error {
	n.mu.RLock()
	handlers := make([]ChangeHandler, 0, len(n.subs))
	for _, h := range n.subs {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()

	var errs error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// newConfigChangedEvent builds the CloudEvent emitted when a scope changes.
// key is empty for whole-scope reloads.
func newConfigChangedEvent(scope, key string) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(uuid.New().String())
	event.SetSource("packforge/config/" + scope)
	event.SetType(ConfigChangedEventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	_ = event.SetData(cloudevents.ApplicationJSON, map[string]string{
		"scope": scope,
		"key":   key,
	})
	return event
}

package aes67

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/go-logr/logr"
)

// IEventEmitter is the event surface shared by senders, receivers, the PTP
// monitor and the NMOS node. Listeners are plain functions; arguments are
// passed through positionally.
type IEventEmitter interface {
	// On adds the listener function to the end of the listeners array for the
	// event named eventName. No deduplication is performed.
	On(eventName string, listener interface{})

	// Once adds a one-time listener for the event named eventName. The next
	// time the event fires, the listener is removed and then invoked.
	Once(eventName string, listener interface{})

	// Emit calls each registered listener in registration order. Returns true
	// if the event had listeners.
	Emit(eventName string, argv ...interface{}) bool

	// SafeEmit is Emit with panics recovered and logged. A panicking listener
	// ends the emit: listeners after it are not called.
	SafeEmit(eventName string, argv ...interface{}) bool

	// Off removes the specified listener for the event named eventName.
	Off(eventName string, listener interface{})

	// RemoveAllListeners removes all listeners, or those of the given events.
	RemoveAllListeners(eventNames ...string)
}

type eventListener struct {
	fn   reflect.Value
	once *sync.Once
}

func (l *eventListener) call(args ...interface{}) {
	invoke := func() {
		argValues := make([]reflect.Value, 0, len(args))
		numIn := l.fn.Type().NumIn()
		for i, arg := range args {
			if i >= numIn && !l.fn.Type().IsVariadic() {
				break
			}
			argValues = append(argValues, reflect.ValueOf(arg))
		}
		// pad missing trailing arguments with zero values
		for len(argValues) < numIn {
			argValues = append(argValues, reflect.New(l.fn.Type().In(len(argValues))).Elem())
		}
		l.fn.Call(argValues)
	}
	if l.once != nil {
		l.once.Do(invoke)
	} else {
		invoke()
	}
}

type EventEmitter struct {
	mu        sync.Mutex
	listeners map[string][]*eventListener
	logger    logr.Logger
}

func NewEventEmitter() IEventEmitter {
	return &EventEmitter{
		logger: NewLogger("EventEmitter"),
	}
}

func (e *EventEmitter) On(event string, listener interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*eventListener)
	}
	e.listeners[event] = append(e.listeners[event], &eventListener{fn: reflect.ValueOf(listener)})
}

func (e *EventEmitter) Once(event string, listener interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]*eventListener)
	}
	e.listeners[event] = append(e.listeners[event], &eventListener{
		fn:   reflect.ValueOf(listener),
		once: &sync.Once{},
	})
}

func (e *EventEmitter) Emit(event string, args ...interface{}) bool {
	e.mu.Lock()
	if e.listeners == nil {
		e.mu.Unlock()
		return false
	}
	listeners := e.listeners[event]
	e.mu.Unlock()

	for _, listener := range listeners {
		if listener.once != nil {
			e.Off(event, listener.fn.Interface())
		}
		// may panic
		listener.call(args...)
	}
	return len(listeners) > 0
}

func (e *EventEmitter) SafeEmit(event string, args ...interface{}) bool {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(fmt.Errorf("%v", r), "emit panic", "event", event, "stack", debug.Stack())
		}
	}()

	return e.Emit(event, args...)
}

func (e *EventEmitter) Off(event string, listener interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		return
	}
	listeners := e.listeners[event]
	handlerPtr := reflect.ValueOf(listener).Pointer()

	for i, l := range listeners {
		if l.fn.Pointer() == handlerPtr {
			e.listeners[event] = append(listeners[0:i], listeners[i+1:]...)
			break
		}
	}
}

func (e *EventEmitter) RemoveAllListeners(events ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		return
	}
	if len(events) == 0 {
		e.listeners = nil
		return
	}
	for _, event := range events {
		delete(e.listeners, event)
	}
}

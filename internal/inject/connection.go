package inject

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/Versifine/packetlib/internal/fuzzy"
	"github.com/Versifine/packetlib/internal/logger"
)

var (
	ErrStrategyMismatch = errors.New("injection strategy does not apply")
	ErrNoCollection     = errors.New("no collection-like field")
	ErrInjectionFailed  = errors.New("injection failed")
)

type State int32

const (
	Uninjected State = iota
	Attempting
	Injected
	Failed
)

func (s State) String() string {
	switch s {
	case Uninjected:
		return "uninjected"
	case Attempting:
		return "attempting"
	case Injected:
		return "injected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options are regular expressions matched against reflect type strings of
// the host, such as `\*proxy\.Server$`.
type Options struct {
	// ServerType selects the server instance field of the host. Empty means
	// the host is the server instance.
	ServerType string
	// ConnectionType is the return type of the server's connection accessor.
	ConnectionType string
	// ListenerType selects the listener field scanned when the server has no
	// connection accessor.
	ListenerType string
	// Logger defaults to logger.L().
	Logger *slog.Logger
}

type slot struct {
	owner reflect.Value
	field fuzzy.Field
}

type strategy struct {
	name   string
	locate func(server reflect.Value) ([]slot, error)
}

type splice[T comparable] struct {
	field *fuzzy.Volatile
	list  *ReplacedList[T]
}

// ServerConnection splices ReplacedLists into the connection collections of
// one host and registers replacements on them.
type ServerConnection[T comparable] struct {
	host       any
	opts       Options
	log        *slog.Logger
	listType   reflect.Type
	strategies []strategy

	mu      sync.Mutex
	state   State
	err     error
	splices []splice[T]
}

// NewServerConnection prepares injection into host, which must be a non-nil
// pointer to a struct. Nothing is touched until Inject or Replace.
func NewServerConnection[T comparable](host any, opts Options) *ServerConnection[T] {
	log := opts.Logger
	if log == nil {
		log = logger.L()
	}
	c := &ServerConnection[T]{
		host:     host,
		opts:     opts,
		log:      log.With("component", "inject"),
		listType: reflect.TypeFor[*ReplacedList[T]](),
	}
	c.strategies = []strategy{
		{name: "accessor", locate: c.accessorSlots},
		{name: "scan", locate: c.scanSlots},
	}
	return c
}

func (c *ServerConnection[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lists returns the spliced lists.
func (c *ServerConnection[T]) Lists() []*ReplacedList[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ReplacedList[T], len(c.splices))
	for i, s := range c.splices {
		out[i] = s.list
	}
	return out
}

// Inject locates the host's connection collections and splices a
// ReplacedList into each. It runs once; later calls return the outcome of
// that attempt until CleanupAll.
func (c *ServerConnection[T]) Inject() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inject()
}

func (c *ServerConnection[T]) inject() error {
	switch c.state {
	case Injected:
		return nil
	case Failed:
		return c.err
	}
	c.state = Attempting

	splices, err := c.attempt()
	if err != nil {
		c.state = Failed
		c.err = errors.Join(ErrInjectionFailed, err)
		c.log.Warn("Injection failed", "host", reflect.TypeOf(c.host), "error", err)
		return c.err
	}
	c.splices = splices
	c.state = Injected
	c.log.Info("Injected", "host", reflect.TypeOf(c.host), "lists", len(splices))
	return nil
}

func (c *ServerConnection[T]) attempt() ([]splice[T], error) {
	server, err := c.server()
	if err != nil {
		return nil, err
	}

	var slots []slot
	for _, s := range c.strategies {
		slots, err = s.locate(server)
		if errors.Is(err, ErrStrategyMismatch) {
			c.log.Debug("Strategy does not apply", "strategy", s.name, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s strategy: %w", s.name, err)
		}
		c.log.Debug("Strategy matched", "strategy", s.name, "slots", len(slots))
		break
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: no strategy applies to %v", ErrNoCollection, server.Type())
	}

	splices := make([]splice[T], 0, len(slots))
	for _, sl := range slots {
		sp, err := c.splice(sl)
		if err != nil {
			for _, done := range splices {
				done.field.Revert()
			}
			return nil, err
		}
		splices = append(splices, sp)
	}
	return splices, nil
}

// server returns the server instance, addressable so that pointer methods
// can be called on it.
func (c *ServerConnection[T]) server() (reflect.Value, error) {
	host := reflect.ValueOf(c.host)
	if host.Kind() != reflect.Pointer || host.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: host %T", fuzzy.ErrNotAddressable, c.host)
	}
	if c.opts.ServerType == "" {
		return host, nil
	}
	f, err := fuzzy.FieldByType(host.Type(), c.opts.ServerType)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("server instance: %w", err)
	}
	v, err := fuzzy.FieldValue(host, f)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("server instance: %w", err)
	}
	return addressOf(v)
}

// accessorSlots calls the server's no-argument connection accessor and
// returns the first collection-like field of its result.
func (c *ServerConnection[T]) accessorSlots(server reflect.Value) (slots []slot, err error) {
	if c.opts.ConnectionType == "" {
		return nil, fmt.Errorf("%w: no connection type", ErrStrategyMismatch)
	}
	m, err := fuzzy.MethodByParameters(server.Type(), "", c.opts.ConnectionType)
	if errors.Is(err, fuzzy.ErrNoSuchMethod) {
		return nil, errors.Join(ErrStrategyMismatch, err)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", m.Name, r)
		}
	}()
	conn := m.Func.Call([]reflect.Value{server})[0]
	conn, err = addressOf(conn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	fields, err := fuzzy.FieldListByType(conn.Type(), c.collectionLike)
	if err != nil {
		return nil, errors.Join(ErrNoCollection, err)
	}
	return []slot{{owner: conn, field: fields[0]}}, nil
}

// scanSlots returns every collection-like field of the server's listener.
func (c *ServerConnection[T]) scanSlots(server reflect.Value) ([]slot, error) {
	if c.opts.ListenerType == "" {
		return nil, fmt.Errorf("%w: no listener type", ErrStrategyMismatch)
	}
	f, err := fuzzy.FieldByType(server.Type(), c.opts.ListenerType)
	if err != nil {
		return nil, fmt.Errorf("listener: %w", err)
	}
	listener, err := fuzzy.FieldValue(server, f)
	if err != nil {
		return nil, fmt.Errorf("listener: %w", err)
	}
	listener, err = addressOf(listener)
	if err != nil {
		return nil, fmt.Errorf("listener: %w", err)
	}
	fields, err := fuzzy.FieldListByType(listener.Type(), c.collectionLike)
	if err != nil {
		return nil, errors.Join(ErrNoCollection, err)
	}
	slots := make([]slot, len(fields))
	for i, lf := range fields {
		slots[i] = slot{owner: listener, field: lf}
	}
	return slots, nil
}

// collectionLike reports whether a ReplacedList can be stored in a field of
// type t.
func (c *ServerConnection[T]) collectionLike(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() > 0 && c.listType.Implements(t)
}

func (c *ServerConnection[T]) splice(sl slot) (splice[T], error) {
	field, err := fuzzy.NewVolatile(sl.owner, sl.field)
	if err != nil {
		return splice[T]{}, err
	}
	cur := field.Value()
	if cur.IsNil() {
		return splice[T]{}, fmt.Errorf("%w: field %s is nil", ErrNoCollection, sl.field)
	}
	if existing, ok := cur.Interface().(*ReplacedList[T]); ok {
		c.log.Debug("Reusing spliced list", "field", sl.field.Name)
		return splice[T]{field: field, list: existing}, nil
	}
	underlying, ok := cur.Interface().(List[T])
	if !ok {
		return splice[T]{}, fmt.Errorf("%w: field %s holds %v", ErrNoCollection, sl.field, cur.Elem().Type())
	}
	list := NewReplacedList(underlying)
	if err := field.SetValue(reflect.ValueOf(list)); err != nil {
		return splice[T]{}, err
	}
	c.log.Debug("Spliced list", "owner", sl.owner.Type(), "field", sl.field.Name)
	return splice[T]{field: field, list: list}, nil
}

// Replace presents replacement in place of old in every spliced list,
// injecting first if needed. It does nothing once injection has failed.
func (c *ServerConnection[T]) Replace(old, replacement T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Uninjected {
		_ = c.inject()
	}
	if c.state != Injected {
		return
	}
	for _, s := range c.splices {
		s.list.AddMapping(old, replacement)
	}
}

// Revert removes the first mapping for old from every spliced list. It does
// nothing unless injected.
func (c *ServerConnection[T]) Revert(old T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Injected {
		return
	}
	for _, s := range c.splices {
		s.list.RemoveMapping(old)
	}
}

// CleanupAll drops every mapping, restores the original field values and
// returns to Uninjected, after which the connection can be injected again.
func (c *ServerConnection[T]) CleanupAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.splices {
		s.list.RevertAll()
		s.field.Revert()
	}
	if len(c.splices) > 0 {
		c.log.Info("Injection rolled back", "host", reflect.TypeOf(c.host), "lists", len(c.splices))
	}
	c.splices = nil
	c.state = Uninjected
	c.err = nil
}

func addressOf(v reflect.Value) (reflect.Value, error) {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %v", fuzzy.ErrNotAddressable, v.Type())
		}
		v = v.Elem()
	}
	switch {
	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %v", fuzzy.ErrNotAddressable, v.Type())
		}
		return v, nil
	case v.CanAddr():
		return v.Addr(), nil
	default:
		return reflect.Value{}, fmt.Errorf("%w: %v", fuzzy.ErrNotAddressable, v.Type())
	}
}

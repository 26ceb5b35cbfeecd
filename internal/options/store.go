package options

import (
	"log/slog"
	"path/filepath"
	"sync"

	"rigproc/internal/logging"
	"rigproc/internal/services"
)

// FileName is the options file inside a process directory.
const FileName = "options.json"

// ResolutionKind says which lookup phase produced a value.
type ResolutionKind int

const (
	ResolvedMissing ResolutionKind = iota
	ResolvedExact
	ResolvedSuffix
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolvedExact:
		return "exact"
	case ResolvedSuffix:
		return "suffix"
	default:
		return "missing"
	}
}

// Resolution describes how Get found (or failed to find) a value.
type Resolution struct {
	Requested string
	Key       string
	Kind      ResolutionKind
	// Warning is set for suffix matches and misses. It never aborts anything.
	Warning error
}

// PostProcessFunc transforms every resolved value.
type PostProcessFunc func(key string, value any) any

// Option configures a Store.
type Option func(*Store)

// WithPostProcess installs fn as the post-processing hook.
func WithPostProcess(fn PostProcessFunc) Option {
	return func(s *Store) { s.post = fn }
}

// WithFormatOptions overrides the textual conversions used by Get.
func WithFormatOptions(opts FormatOptions) Option {
	return func(s *Store) { s.format = opts }
}

// WithLogger sets the logger used for lookup warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.NewComponentLogger(logger, "options") }
}

// Store holds option entries in insertion order. When backed by a file every
// mutation is written through.
type Store struct {
	mu     sync.RWMutex
	path   string
	keys   []string
	values map[string]Value
	format FormatOptions
	post   PostProcessFunc
	logger *slog.Logger
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		values: make(map[string]Value),
		format: DefaultFormatOptions(),
		logger: logging.NewComponentLogger(nil, "options"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the options file of processDir. A missing file yields an empty
// store that will be created on first write.
func Open(processDir string, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.path = filepath.Join(processDir, FileName)
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Add stores value under the qualified key unless the key already exists.
// It reports whether the value was stored.
func (s *Store) Add(name string, value any, group string, tag TypeTag) (bool, error) {
	key := Key(name, group)
	if key == "" {
		return false, services.Wrap(services.ErrValidation, "", "add option", "option name is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.keys = append(s.keys, key)
	s.values[key] = Value{Raw: value, Type: tag}
	if err := s.saveLocked(); err != nil {
		s.keys = s.keys[:len(s.keys)-1]
		delete(s.values, key)
		return false, err
	}
	return true, nil
}

// Set overwrites the value at the qualified key. An existing tag is kept.
func (s *Store) Set(name string, value any, group string) error {
	key := Key(name, group)
	if key == "" {
		return services.Wrap(services.ErrValidation, "", "set option", "option name is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.values[key]
	if !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = Value{Raw: value, Type: current.Type}
	if err := s.saveLocked(); err != nil {
		if exists {
			s.values[key] = current
		} else {
			s.keys = s.keys[:len(s.keys)-1]
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// LookupExact returns the stored value at key.
func (s *Store) LookupExact(key string) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// LookupSuffix returns the first key, in insertion order, whose final segment
// equals the leaf of name. When several groups share that leaf the winner
// depends on insertion order.
func (s *Store) LookupSuffix(name string) (string, Value, bool) {
	leaf := Leaf(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.keys {
		if Leaf(key) == leaf {
			return key, s.values[key], true
		}
	}
	return "", Value{}, false
}

// Get resolves name within group and returns the formatted value. A nil value
// with ResolvedMissing means nothing matched.
func (s *Store) Get(name, group string) (any, Resolution) {
	requested := Key(name, group)
	res := Resolution{Requested: requested}

	if v, ok := s.LookupExact(requested); ok {
		res.Key = requested
		res.Kind = ResolvedExact
		return s.resolve(requested, v), res
	}

	if key, v, ok := s.LookupSuffix(name); ok {
		res.Key = key
		res.Kind = ResolvedSuffix
		res.Warning = services.Wrap(services.ErrAmbiguousConfig, "", "get option",
			"no exact match for "+requested+"; using "+key, nil)
		logging.WarnWithContext(s.logger, "option resolved by suffix", "option_ambiguous",
			logging.String("option", requested),
			logging.String("resolved_key", key),
			logging.String(logging.FieldErrorKind, services.Kind(res.Warning)),
			logging.String(logging.FieldErrorHint, "qualify the option with its group"),
			logging.String(logging.FieldImpact, "value may come from another group"),
		)
		return s.resolve(key, v), res
	}

	res.Kind = ResolvedMissing
	res.Warning = services.Wrap(services.ErrConfigMissing, "", "get option", "no value for "+requested, nil)
	logging.WarnWithContext(s.logger, "option not found", "option_missing",
		logging.String("option", requested),
		logging.String(logging.FieldErrorKind, services.Kind(res.Warning)),
		logging.String(logging.FieldErrorHint, "add the option to the process"),
		logging.String(logging.FieldImpact, "step receives no value"),
	)
	return nil, res
}

// Has reports whether Get would find a value, without logging.
func (s *Store) Has(name, group string) bool {
	if _, ok := s.LookupExact(Key(name, group)); ok {
		return true
	}
	_, _, ok := s.LookupSuffix(name)
	return ok
}

// Keys returns every key in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Entry returns the raw stored value at key.
func (s *Store) Entry(key string) (Value, bool) {
	return s.LookupExact(key)
}

// Groups returns the distinct group paths in first-seen order. Bare keys are
// reported under "".
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, key := range s.keys {
		group := Group(key)
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		out = append(out, group)
	}
	return out
}

func (s *Store) resolve(key string, v Value) any {
	out := Format(v, s.format)
	if s.post != nil {
		out = s.post(key, out)
	}
	return out
}

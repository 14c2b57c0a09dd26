package permission

import (
	"errors"
	"sort"
	"sync"
)

const maxBits = 64

// Registry maps flag names to bit positions within a [Mask64].
// Bit 0 is always [ExternalPermissionName].
//
//	Docs: docs/permission.md
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a flag [Registry] with [ExternalPermissionName]
// pre-registered at bit 0.
func NewRegistry() *Registry {
	r := &Registry{
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}
	r.nameToBit[ExternalPermissionName] = 0
	r.bitToName[0] = ExternalPermissionName
	return r
}

// Register assigns the next available bit to the named flag.
// Returns the assigned bit index. Must be called before [Registry.Freeze].
//
//	Docs: docs/permission.md
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}

	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}

	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("permission already registered")
	}

	nextBit := len(r.nameToBit)
	if nextBit >= maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[name] = nextBit
	r.bitToName[nextBit] = name

	return nextBit, nil
}

// Bit returns the bit index for the named flag, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the flag name for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Mask resolves flag names into a single mask. Unknown names are an error.
func (r *Registry) Mask(names ...string) (Mask64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var m Mask64
	for _, name := range names {
		bit, ok := r.nameToBit[name]
		if !ok {
			return 0, errors.New("permission not registered: " + name)
		}
		m.Set(bit)
	}
	return m, nil
}

// Names lists the registered flag names set in m, ordered by bit.
// Bits without a name are skipped.
func (r *Registry) Names(m Mask64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bits := make([]int, 0, len(r.bitToName))
	for bit := range r.bitToName {
		if m.Has(bit) {
			bits = append(bits, bit)
		}
	}
	sort.Ints(bits)

	out := make([]string, 0, len(bits))
	for _, bit := range bits {
		out = append(out, r.bitToName[bit])
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered flags.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

package diagnostics

import (
	"sort"
	"sync"
)

// Bag accumulates diagnostics, deduplicating by file, line, column and code.
// Severity overrides are applied on insertion; a negative override drops the
// diagnostic entirely.
type Bag struct {
	mu        sync.Mutex
	set       map[string]*DiagnosticError
	overrides map[Code]Severity
}

// NewBag returns an empty bag. overrides may be nil.
func NewBag(overrides map[Code]Severity) *Bag {
	return &Bag{set: make(map[string]*DiagnosticError), overrides: overrides}
}

// Add inserts err. A later diagnostic with the same key replaces the
// earlier one.
func (b *Bag) Add(err *DiagnosticError) {
	if err == nil {
		return
	}
	if err.File == "" {
		err.File = err.Pos.File
	}
	if !Adjust(b.overrides, err) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set[err.key()] = err
}

// Adjust applies the severity override for err's code and reports whether
// the diagnostic should be kept.
func Adjust(overrides map[Code]Severity, err *DiagnosticError) bool {
	sev, ok := overrides[err.Code]
	if !ok {
		return true
	}
	if sev < 0 {
		return false
	}
	err.Severity = sev
	return true
}

// AddAll inserts every diagnostic of errs.
func (b *Bag) AddAll(errs []*DiagnosticError) {
	for _, e := range errs {
		b.Add(e)
	}
}

// Len returns the number of distinct diagnostics.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.set)
}

// HasFatal reports whether any diagnostic is error class.
func (b *Bag) HasFatal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.set {
		if e.IsFatal() {
			return true
		}
	}
	return false
}

// Count returns how many diagnostics carry code.
func (b *Bag) Count(code Code) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.set {
		if e.Code == code {
			n++
		}
	}
	return n
}

// Items returns all diagnostics sorted by file, line, column and code.
func (b *Bag) Items() []*DiagnosticError {
	b.mu.Lock()
	out := make([]*DiagnosticError, 0, len(b.set))
	for _, e := range b.set {
		out = append(out, e)
	}
	b.mu.Unlock()
	Sort(out)
	return out
}

// Sort orders diagnostics for deterministic output.
func Sort(errs []*DiagnosticError) {
	sort.Slice(errs, func(i, j int) bool {
		a, b := errs[i], errs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column < b.Pos.Column
		}
		return a.Code < b.Code
	})
}

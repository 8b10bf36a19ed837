package inspect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"filemarker/internal/logging"
)

// Registry routes inspection requests to the inspector registered for a
// file's extension.
type Registry struct {
	mu         sync.RWMutex
	inspectors map[string]Inspector // extension -> inspector (e.g., ".py" -> PythonInspector)
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		inspectors: make(map[string]Inspector),
	}
}

// DefaultRegistry creates a Registry with all built-in inspectors registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewGoInspector())
	r.Register(NewPythonInspector())
	r.Register(NewTypeScriptInspector())
	r.Register(NewRustInspector())

	logging.InspectDebug("DefaultRegistry: registered extensions %v", r.SupportedExtensions())
	return r
}

// Register adds an inspector for its supported extensions.
// If an inspector is already registered for an extension, it is replaced.
func (r *Registry) Register(in Inspector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range in.SupportedExtensions() {
		ext = normalizeExtension(ext)
		r.inspectors[ext] = in
	}
}

// ForPath returns the inspector for a file path, or nil.
func (r *Registry) ForPath(path string) Inspector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.inspectors[normalizeExtension(filepath.Ext(path))]
}

// Supports reports whether an inspector exists for the given file path.
func (r *Registry) Supports(path string) bool {
	return r.ForPath(path) != nil
}

// Inspect runs the matching inspector over in-memory content.
func (r *Registry) Inspect(path string, content []byte, variable string) ([]string, error) {
	in := r.ForPath(path)
	if in == nil {
		return nil, fmt.Errorf("no inspector registered for extension: %s", filepath.Ext(path))
	}
	return in.Inspect(path, content, variable)
}

// InspectFile reads path from disk and inspects it.
func (r *Registry) InspectFile(path, variable string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.Inspect(path, content, variable)
}

// SupportedExtensions returns all registered file extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.inspectors))
	for ext := range r.inspectors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// normalizeExtension ensures extensions are lowercase with leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Package inventory maps package names to human-readable app labels.
package inventory

import (
	"strings"
	"sync"
)

// Inventory resolves display names for application packages. Labels come from
// configuration and from events seen at runtime; unknown packages fall back to
// a prettified form of the package name.
type Inventory struct {
	mu     sync.RWMutex
	labels map[string]string
}

// New builds an inventory seeded with configured labels.
func New(seed map[string]string) *Inventory {
	labels := make(map[string]string, len(seed))
	for pkg, label := range seed {
		pkg = strings.TrimSpace(pkg)
		label = strings.TrimSpace(label)
		if pkg == "" || label == "" {
			continue
		}
		labels[pkg] = label
	}
	return &Inventory{labels: labels}
}

// AppName returns the display label for a package.
func (i *Inventory) AppName(pkg string) string {
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return ""
	}
	if i != nil {
		i.mu.RLock()
		label, ok := i.labels[pkg]
		i.mu.RUnlock()
		if ok {
			return label
		}
	}
	return prettify(pkg)
}

// Observe records a label reported alongside an event. Configured labels are
// not overwritten; later observations win over earlier ones.
func (i *Inventory) Observe(pkg, label string) {
	if i == nil {
		return
	}
	pkg = strings.TrimSpace(pkg)
	label = strings.TrimSpace(label)
	if pkg == "" || label == "" {
		return
	}
	i.mu.Lock()
	i.labels[pkg] = label
	i.mu.Unlock()
}

// Known returns a copy of all package-to-label mappings.
func (i *Inventory) Known() map[string]string {
	if i == nil {
		return map[string]string{}
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]string, len(i.labels))
	for pkg, label := range i.labels {
		out[pkg] = label
	}
	return out
}

// prettify derives a readable label from the last segment of a package name.
func prettify(pkg string) string {
	segment := pkg
	if idx := strings.LastIndex(pkg, "."); idx >= 0 && idx+1 < len(pkg) {
		segment = pkg[idx+1:]
	}
	segment = strings.ReplaceAll(segment, "_", " ")
	if segment == "" {
		return pkg
	}
	return strings.ToUpper(segment[:1]) + segment[1:]
}

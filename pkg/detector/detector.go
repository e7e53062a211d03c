package detector

import (
	"os"
	"sort"
	"strings"

	"github.com/crazy-max/nestfs/pkg/vfs"
)

// Capability is what the detector needs to know about a file system driver.
type Capability interface {
	// IsArchiveDriver reports whether the driver mounts archive files
	// rather than a native file system.
	IsArchiveDriver() bool
}

// Registry maps schemes to drivers.
type Registry map[vfs.Scheme]Capability

// ArchiveDetector tells by name whether a path segment is a prospective
// archive file and which scheme mounts it. It is immutable.
type ArchiveDetector struct {
	drivers    Registry
	extensions []string
}

// Null detects no archive files.
var Null = &ArchiveDetector{drivers: Registry{}}

// New returns a detector which knows all non-archive drivers of base and the
// archive drivers of base named by the extension list. An extension without
// an archive driver in base is a ConfigurationError.
func New(base Registry, extensions string) (*ArchiveDetector, error) {
	d := &ArchiveDetector{drivers: make(Registry)}
	for s, c := range base {
		if c != nil && !c.IsArchiveDriver() {
			d.drivers[s] = c
		}
	}
	for _, ext := range ParseExtensions(extensions) {
		c, ok := base[vfs.Scheme(ext)]
		if !ok || c == nil {
			return nil, &ConfigurationError{Extension: ext, Reason: "no driver registered"}
		}
		if !c.IsArchiveDriver() {
			return nil, &ConfigurationError{Extension: ext, Reason: "not an archive driver"}
		}
		d.drivers[vfs.Scheme(ext)] = c
		d.extensions = append(d.extensions, ext)
	}
	return d, nil
}

// All returns a detector for every archive driver of base.
func All(base Registry) *ArchiveDetector {
	d := &ArchiveDetector{drivers: make(Registry, len(base))}
	for s, c := range base {
		if c == nil {
			continue
		}
		d.drivers[s] = c
		if c.IsArchiveDriver() {
			d.extensions = append(d.extensions, string(s))
		}
	}
	sort.Strings(d.extensions)
	return d
}

// With returns a copy of d where the extensions are mounted by c. A nil c
// removes the extensions instead. Schemes of non-archive drivers, such as
// "file", cannot be changed.
func (d *ArchiveDetector) With(extensions string, c Capability) (*ArchiveDetector, error) {
	exts := ParseExtensions(extensions)
	if c != nil && !c.IsArchiveDriver() {
		return nil, &ConfigurationError{Extension: strings.Join(exts, ExtensionSeparator), Reason: "not an archive driver"}
	}
	nd := &ArchiveDetector{drivers: make(Registry, len(d.drivers)+len(exts))}
	for s, dc := range d.drivers {
		nd.drivers[s] = dc
	}
	set := make(map[string]struct{}, len(d.extensions)+len(exts))
	for _, ext := range d.extensions {
		set[ext] = struct{}{}
	}
	for _, ext := range exts {
		if !vfs.IsValidScheme(ext) {
			return nil, &ConfigurationError{Extension: ext, Reason: "not a valid scheme"}
		}
		if dc, ok := d.drivers[vfs.Scheme(ext)]; ok && !dc.IsArchiveDriver() {
			return nil, &ConfigurationError{Extension: ext, Reason: "mapped to a non-archive driver"}
		}
		if c == nil {
			delete(nd.drivers, vfs.Scheme(ext))
			delete(set, ext)
			continue
		}
		nd.drivers[vfs.Scheme(ext)] = c
		set[ext] = struct{}{}
	}
	for ext := range set {
		nd.extensions = append(nd.extensions, ext)
	}
	sort.Strings(nd.extensions)
	return nd, nil
}

// Scheme returns the scheme of the archive driver for the file name of
// path, if any. Dots are scanned from left to right so the longest matching
// extension wins, e.g. "tar.gz" before "gz". A leading dot never counts.
func (d *ArchiveDetector) Scheme(path string) (vfs.Scheme, bool) {
	name := path[strings.LastIndexAny(path, "/"+string(os.PathSeparator))+1:]
	for i := 1; i < len(name)-1; i++ {
		if name[i] != '.' {
			continue
		}
		ext := strings.ToLower(name[i+1:])
		if !vfs.IsValidScheme(ext) {
			continue
		}
		if c, ok := d.drivers[vfs.Scheme(ext)]; ok && c.IsArchiveDriver() {
			return vfs.Scheme(ext), true
		}
	}
	return "", false
}

// Driver returns the driver registered for scheme.
func (d *ArchiveDetector) Driver(scheme vfs.Scheme) (Capability, bool) {
	c, ok := d.drivers[scheme]
	return c, ok
}

// Drivers returns a copy of the driver map.
func (d *ArchiveDetector) Drivers() Registry {
	r := make(Registry, len(d.drivers))
	for s, c := range d.drivers {
		r[s] = c
	}
	return r
}

// Extensions returns the canonical set of enabled extensions.
func (d *ArchiveDetector) Extensions() []string {
	return append([]string(nil), d.extensions...)
}

// String returns the canonical extension list, e.g. "jar|tar|zip".
func (d *ArchiveDetector) String() string {
	return strings.Join(d.extensions, ExtensionSeparator)
}

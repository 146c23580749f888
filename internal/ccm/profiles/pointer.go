package profiles

import (
	"strings"

	"github.com/example/ccm/internal/ccm/domain"
	"github.com/example/ccm/internal/ccm/storage"
)

// Pointer is the one-line file naming the active profile.
type Pointer struct {
	storage *storage.Storage
	path    string
}

// NewPointer creates a Pointer backed by the file at path.
func NewPointer(stor *storage.Storage, path string) *Pointer {
	return &Pointer{storage: stor, path: path}
}

// Path returns the pointer file path.
func (p *Pointer) Path() string {
	return p.path
}

// Get returns the current profile name. set is false when the file is
// missing or blank.
func (p *Pointer) Get() (name string, set bool, err error) {
	data, found, err := p.storage.ReadFileIfExists(p.path)
	if err != nil {
		return "", false, domain.IOError("read current pointer", p.path, err)
	}
	if !found {
		return "", false, nil
	}
	name = strings.TrimSpace(string(data))
	return name, name != "", nil
}

// Set records name as the current profile.
func (p *Pointer) Set(name string) error {
	if err := p.storage.WriteFileAtomic(p.path, []byte(name+"\n")); err != nil {
		return domain.IOError("write current pointer", p.path, err)
	}
	return nil
}

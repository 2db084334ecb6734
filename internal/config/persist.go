package config

import (
	"sync"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

// FilePersister writes flow configuration changes back to the file they
// were loaded from, keeping the server settings of the file.
type FilePersister struct {
	mu   sync.Mutex
	path string
	file *File
}

func NewFilePersister(path string, f *File) *FilePersister {
	return &FilePersister{path: path, file: f}
}

func (p *FilePersister) Persist(g flow.GlobalConfig, flows []flow.FlowConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.file.SetFlows(g, flows)
	return p.file.Save(p.path)
}

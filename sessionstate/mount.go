package sessionstate

import (
	"github.com/hupe1980/agentguard/tool"
)

// Mounter is the part of the host tool registry the store needs.
type Mounter interface {
	Mount(t tool.Tool, optFns ...func(o *tool.MountOptions)) error
}

// Mount registers the session_state tool for store on reg.
func Mount(reg Mounter, store *Store, optFns ...func(o *ToolOptions)) (*Tool, error) {
	t := NewTool(store, optFns...)
	if err := reg.Mount(t); err != nil {
		return nil, err
	}

	t.logger.Info("session_state.mounted", "dir", store.Dir())

	return t, nil
}

package api

import "sync"

// TenantHolder is the process-wide current-tenant state. It is set whenever
// the active tenant changes and read by the decorator for every request.
type TenantHolder struct {
	mu sync.RWMutex
	id string
}

func NewTenantHolder(id string) *TenantHolder {
	return &TenantHolder{id: id}
}

func (h *TenantHolder) Set(id string) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

func (h *TenantHolder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

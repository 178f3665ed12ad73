package session

import "time"

// Session represents one guest VM run and the bridge state recorded for it.
type Session struct {
	ID           string     `json:"id"`
	VMName       string     `json:"vm_name"`
	DebugLevel   string     `json:"debug_level"`             // "none" | "partial" | "full"
	ConsolePath  string     `json:"console_path,omitempty"`  // console capture file, empty below full debug
	EnabledPorts []uint16   `json:"enabled_ports,omitempty"` // initial enablement at start; live state is in the reconciler
	Status       string     `json:"status"`                  // "created", "running", "stopped"
	StartedAt    time.Time  `json:"started_at"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
	ExitReason   string     `json:"exit_reason,omitempty"` // "normal" | "signal" | "vm-exit" | "requested"
}

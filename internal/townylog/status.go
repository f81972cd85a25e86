package townylog

// ChannelStatus describes one published channel.
type ChannelStatus struct {
	Name        string   `json:"name"`
	MinSeverity string   `json:"min_severity"`
	Sinks       []string `json:"sinks"`
}

// Status is a point-in-time view of the subsystem.
type Status struct {
	State    string          `json:"state"`
	Debug    bool            `json:"debug"`
	Console  string          `json:"console"`
	Version  uint64          `json:"version"`
	Channels []ChannelStatus `json:"channels"`
}

// Status reports the published routing table and the debug state.
func (t *Logger) Status() Status {
	t.mu.Lock()
	st := Status{
		State:   t.state.String(),
		Debug:   t.debugOn,
		Console: t.consoleKind.String(),
	}
	t.mu.Unlock()

	snap := t.registry.Snapshot()
	st.Version = snap.Version()
	st.Channels = make([]ChannelStatus, 0, snap.Len())
	for _, name := range snap.Names() {
		ch, _ := snap.Channel(name)
		st.Channels = append(st.Channels, ChannelStatus{
			Name:        ch.Name,
			MinSeverity: ch.MinSeverity.String(),
			Sinks:       ch.SinkNames(),
		})
	}
	return st
}

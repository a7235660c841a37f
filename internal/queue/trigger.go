package queue

// Trigger asks the dispatch worker to run a cycle. An empty ConfigHash
// means every pending group.
type Trigger struct {
	ConfigHash    string
	CorrelationID string
}

// Targeted reports whether the trigger names a single group.
func (t Trigger) Targeted() bool { return t.ConfigHash != "" }

package repository

// CommunitySummaries maps community IDs to their summaries and remembers
// the order in which IDs were first seen.
type CommunitySummaries struct {
	order   []string
	summary map[string]string
}

// NewCommunitySummaries returns an empty mapping.
func NewCommunitySummaries() *CommunitySummaries {
	return &CommunitySummaries{summary: make(map[string]string)}
}

// Put stores the summary for id. A repeated id keeps its original position.
func (c *CommunitySummaries) Put(id, summary string) {
	if c.summary == nil {
		c.summary = make(map[string]string)
	}
	if _, ok := c.summary[id]; !ok {
		c.order = append(c.order, id)
	}
	c.summary[id] = summary
}

// Get returns the summary for id.
func (c *CommunitySummaries) Get(id string) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := c.summary[id]
	return s, ok
}

// IDs returns the community IDs in first-encounter order.
func (c *CommunitySummaries) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of communities.
func (c *CommunitySummaries) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

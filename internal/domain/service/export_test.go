package service

// SeedRetryCounters sets the retry budgets directly so ceiling tests do
// not have to replay every preceding loading cycle.
func (m *ProductsStateMachine) SeedRetryCounters(session, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessionRetries = session
	m.totalRetries = total
}

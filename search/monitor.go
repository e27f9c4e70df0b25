package search

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterDenseSearch(pointIDs []string)
	AfterKeywordSearch(pointIDs []string)
	DenseAndKeywordHit(pointID string)
	DenseHit(pointID string)
	KeywordHit(pointID string)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                {}
func (n *noopMonitor) AfterDenseSearch(_ []string)   {}
func (n *noopMonitor) AfterKeywordSearch(_ []string) {}
func (n *noopMonitor) DenseAndKeywordHit(_ string)   {}
func (n *noopMonitor) DenseHit(_ string)             {}
func (n *noopMonitor) KeywordHit(_ string)           {}
func (n *noopMonitor) Finish(_ []*Result)            {}

package storage

// Activation is the in-memory record of a live actor
type Activation struct {
	ID          string
	ActivatedAt int64 // Unix nanoseconds
	LastAccess  int64 // Unix nanoseconds
	IdleScans   int64 // consecutive collector passes that found the actor unused
	Calls       int64 // calls in flight, a busy actor is never collected
	accessed    bool  // touched since the previous collector pass
}

// ScanResult is the outcome of one CollectIdle pass
type ScanResult struct {
	Scanned   int      // activations inspected
	Collected []string // ids that were deactivated
}

// merge folds another pass result into r
func (r *ScanResult) merge(other ScanResult) {
	r.Scanned += other.Scanned
	r.Collected = append(r.Collected, other.Collected...)
}

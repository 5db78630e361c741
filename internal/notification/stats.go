package notification

// Stats aggregates delivery and engagement counters. It is a plain value;
// the delivery manager owns the authoritative copy under its lock and
// hands out copies.
type Stats struct {
	TotalSent      int `json:"total_sent"`
	TotalDelivered int `json:"total_delivered"`
	TotalRead      int `json:"total_read"`
	TotalDismissed int `json:"total_dismissed"`
	TotalFailed    int `json:"total_failed"`

	// Deliberate prioritizer decisions, kept separate from failures.
	TotalSuppressed int `json:"total_suppressed"`

	SentByChannel map[Channel]int `json:"sent_by_channel,omitempty"`
	SentByType    map[Type]int    `json:"sent_by_type,omitempty"`
}

func (s Stats) DeliveryRate() float64 {
	if s.TotalSent == 0 {
		return 0
	}
	return float64(s.TotalDelivered) / float64(s.TotalSent) * 100
}

func (s Stats) ReadRate() float64 {
	if s.TotalDelivered == 0 {
		return 0
	}
	return float64(s.TotalRead) / float64(s.TotalDelivered) * 100
}

func (s Stats) FailureRate() float64 {
	if s.TotalSent == 0 {
		return 0
	}
	return float64(s.TotalFailed) / float64(s.TotalSent) * 100
}

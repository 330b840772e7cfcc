package domain

// DayPair is one resolution attempted by a reconciliation sweep.
type DayPair struct {
	Day  Day  `json:"day"`
	Pair Pair `json:"pair"`
}

// SweepReport summarizes a full reconciliation sweep.
type SweepReport struct {
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded []DayPair `json:"succeeded"`
	Failed    []DayPair `json:"failed"`
	// Queued counts postponed entries handed to the background workers.
	Queued int `json:"queued"`
}

// Progress returns the processed share of pairs as a percentage.
func (r SweepReport) Progress() float64 {
	if r.Total == 0 {
		return 100
	}
	return float64(r.Processed) * 100 / float64(r.Total)
}

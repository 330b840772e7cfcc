package dto

import "github.com/adiosmsu/budgeter/internal/core/domain"

// DayPairResponse is one pair attempted by a sweep.
type DayPairResponse struct {
	Day  string `json:"day"`
	From string `json:"from"`
	To   string `json:"to"`
}

// SweepResponse defines the API response of a reconciliation sweep.
type SweepResponse struct {
	Total     int               `json:"total"`
	Processed int               `json:"processed"`
	Progress  float64           `json:"progress"`
	Queued    int               `json:"queued"`
	Succeeded []DayPairResponse `json:"succeeded"`
	Failed    []DayPairResponse `json:"failed"`
}

// ToSweepResponse converts a domain.SweepReport to its DTO.
func ToSweepResponse(report *domain.SweepReport) SweepResponse {
	return SweepResponse{
		Total:     report.Total,
		Processed: report.Processed,
		Progress:  report.Progress(),
		Queued:    report.Queued,
		Succeeded: toDayPairResponses(report.Succeeded),
		Failed:    toDayPairResponses(report.Failed),
	}
}

func toDayPairResponses(pairs []domain.DayPair) []DayPairResponse {
	responses := make([]DayPairResponse, len(pairs))
	for i, p := range pairs {
		responses[i] = DayPairResponse{Day: p.Day.String(), From: p.Pair.From.String(), To: p.Pair.To.String()}
	}
	return responses
}

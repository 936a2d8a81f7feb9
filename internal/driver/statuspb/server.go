package statuspb

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/novacgo/ppp/internal/driver"
)

// Server exposes one driver.Run's status, skip-reason tally, and flux
// statistics as a StatusService.
type Server struct {
	Run *driver.Run
}

var _ StatusServiceServer = (*Server)(nil)

// NewServer builds a status server over run.
func NewServer(run *driver.Run) *Server {
	return &Server{Run: run}
}

// GetStatus reports the run's current status, per-instrument skip-reason
// tally, and day-level flux summary.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"id":     s.Run.ID,
		"status": string(s.Run.Status()),
	}
	if err := s.Run.Err(); err != nil {
		fields["error"] = err.Error()
	}

	tallyRows := s.Run.Tally().Rows()
	instruments := make([]interface{}, len(tallyRows))
	for i, row := range tallyRows {
		reasons := make(map[string]interface{}, len(row.Reasons))
		for reason, count := range row.Reasons {
			reasons[reason] = count
		}
		instruments[i] = map[string]interface{}{
			"serial":    row.Serial,
			"total":     row.Total,
			"evaluated": row.Evaluated,
			"reasons":   reasons,
		}
	}
	fields["instruments"] = instruments

	if stats := s.Run.FluxStats(); stats != nil {
		statRows := stats.Rows()
		days := make([]interface{}, len(statRows))
		for i, row := range statRows {
			days[i] = map[string]interface{}{
				"serial":      row.Serial,
				"day":         row.Day.Format("2006-01-02"),
				"mean":        row.Mean,
				"good_scans":  row.GoodScans,
				"total_scans": row.TotalScans,
			}
		}
		fields["flux_days"] = days
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("statuspb: build status struct: %w", err)
	}
	return out, nil
}

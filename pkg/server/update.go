package server

import (
	"log/slog"
	"net/http"

	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/types"
)

type updateResponse struct {
	Devices []types.DeviceStatus `json:"devices"`
	Failed  int                  `json:"failed"`
}

// handleUpdate refreshes every device now instead of waiting for the next
// poll. Rejected devices are reported in the response and do not fail the
// request.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// RefreshAll joins one UpdateFailedError per rejected device
	var failed int
	if err := s.hub.RefreshAll(ctx); err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			failed = len(joined.Unwrap())
		} else {
			failed = 1
		}
		log.Ctx(ctx).WarnContext(ctx, "some devices failed to refresh", slog.Int("failed", failed), slog.Any("error", err))
	}

	list := s.hub.List()
	resp := updateResponse{
		Devices: make([]types.DeviceStatus, 0, len(list)),
		Failed:  failed,
	}
	for _, c := range list {
		resp.Devices = append(resp.Devices, c.Status())
	}
	writeJSON(w, resp, http.StatusOK)
}

package server

import (
	"net/http"
	"strconv"

	"github.com/raterudder/azzurro/pkg/types"
)

type sensorsResponse struct {
	Device  types.DeviceStatus `json:"device"`
	Sensors []types.Reading    `json:"sensors"`
}

// handleSensors returns the resolved readings of a device. Sensors that are
// disabled by default are only included with all=true.
func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	c, ok := s.hub.Get(r.PathValue("thingKey"))
	if !ok {
		writeJSONError(w, "device not found", http.StatusNotFound)
		return
	}

	var all bool
	if v := r.URL.Query().Get("all"); v != "" {
		var err error
		all, err = strconv.ParseBool(v)
		if err != nil {
			writeJSONError(w, "invalid all parameter", http.StatusBadRequest)
			return
		}
	}

	readings := c.Read(r.Context())
	resp := sensorsResponse{
		Device:  c.Status(),
		Sensors: make([]types.Reading, 0, len(readings)),
	}
	for _, reading := range readings {
		if all || reading.EnabledByDefault {
			resp.Sensors = append(resp.Sensors, reading)
		}
	}
	writeJSON(w, resp, http.StatusOK)
}

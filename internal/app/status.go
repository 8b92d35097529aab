package app

import "time"

// Health values reported by Status.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// PredictorStatus describes one predictor for health reporting.
type PredictorStatus struct {
	Enabled  bool     `json:"enabled"`
	Loaded   bool     `json:"loaded"`
	Backend  string   `json:"backend,omitempty"`
	Error    string   `json:"error,omitempty"`
	NSteps   int      `json:"n_steps,omitempty"`
	Features []string `json:"features,omitempty"`
}

// Status is the health summary of the service.
type Status struct {
	Status        string          `json:"status"`
	NSteps        *int            `json:"n_steps"`
	Coordinates   PredictorStatus `json:"coordinates"`
	Biomass       PredictorStatus `json:"biomass"`
	CacheEnabled  bool            `json:"cache_enabled"`
	UptimeSeconds int64           `json:"uptime_seconds"`
}

// Status reports which predictors are loaded. It is ok when every enabled
// predictor loaded, degraded when only some did, unavailable when none did.
func (c *Context) Status() Status {
	st := Status{
		CacheEnabled:  c.memo != nil,
		UptimeSeconds: int64(time.Since(c.started).Seconds()),
	}

	if p, err := c.Coordinates(); err == nil {
		n := p.StepCount()
		st.NSteps = &n
		st.Coordinates = PredictorStatus{
			Enabled:  true,
			Loaded:   true,
			Backend:  p.Backend(),
			NSteps:   n,
			Features: p.Config().Features,
		}
	} else {
		st.Coordinates = failedStatus(c.coordinatesErr)
	}

	if p, err := c.Biomass(); err == nil {
		st.Biomass = PredictorStatus{
			Enabled:  true,
			Loaded:   true,
			Backend:  p.Backend(),
			Features: p.Config().Features,
		}
	} else {
		st.Biomass = failedStatus(c.biomassErr)
	}

	loaded := btoi(st.Coordinates.Loaded) + btoi(st.Biomass.Loaded)
	enabled := btoi(st.Coordinates.Enabled) + btoi(st.Biomass.Enabled)
	switch {
	case loaded == 0:
		st.Status = StatusUnavailable
	case loaded == enabled:
		st.Status = StatusOK
	default:
		st.Status = StatusDegraded
	}
	return st
}

func failedStatus(err error) PredictorStatus {
	if err == errNotConfigured {
		return PredictorStatus{}
	}
	ps := PredictorStatus{Enabled: true}
	if err != nil {
		ps.Error = err.Error()
	}
	return ps
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

package rew

// Update is one SPL push from REW's subscription callback. Fields absent
// from the payload take the meter's conventional defaults via ApplyDefaults.
type Update struct {
	MeterNumber       int     `json:"meterNumber"`
	Weighting         string  `json:"weighting"`
	Filter            string  `json:"filter"`
	SPL               float64 `json:"spl"`
	Leq               float64 `json:"leq"`
	IsRollingLeq      bool    `json:"isRollingLeq"`
	RollingLeqMinutes int     `json:"rollingLeqMinutes"`
	Leq1m             float64 `json:"leq1m"`
	Leq10m            float64 `json:"leq10m"`
	SEL               float64 `json:"sel"`
	ElapsedTime       float64 `json:"elapsedTime"`
}

// ApplyDefaults fills fields a sparse payload omitted. Numeric fields keep
// their zero values; only the identity fields have non-zero defaults.
func (u *Update) ApplyDefaults() {
	if u.MeterNumber == 0 {
		u.MeterNumber = meterNumber
	}
	if u.Weighting == "" {
		u.Weighting = "A"
	}
	if u.Filter == "" {
		u.Filter = "Slow"
	}
}

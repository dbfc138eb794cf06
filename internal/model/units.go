package model

// Unit conversion constants. The unit system is fixed at ingestion (km,
// kWh, kW, €, tonnes or passengers, hours, calendar years); these are the
// only conversions the model performs.
const (
	HoursPerYear  = 8760.0
	GramsPerTonne = 1e6
)

// Package model defines the typed inputs and outputs shared by the
// optimiser, the orchestrator and the adapters: hourly series, the aligned
// horizon, the installation parameters and the published schedule.
package model

// Package prediction provides demand forecasters for the scheduler. A
// forecaster returns the expected household consumption per hour starting
// at the current hour.
package prediction

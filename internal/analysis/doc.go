// Package analysis implements the tracker performance pipeline: snapshot
// preparation from plant measurements, feature scaling, density clustering,
// per-orientation outlier detection, and median-based performance labels.
package analysis

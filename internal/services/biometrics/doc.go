// Package biometrics extracts physiological signals (heart rate, breathing,
// facial expressions) from recorded video via an external analysis service.
//
// The stage is strictly advisory: the pipeline runs it out of band and a
// failed or disabled extraction never blocks a recording from completing.
// Provider responses use inconsistent key spellings, so the client folds them
// onto canonical series names at the boundary and rejects payloads whose
// series lengths disagree with the timestamp axis.
package biometrics

// Package audio provides playback devices for synthesized artifacts.
// OtoDevice drives the system speaker through oto/v3; SimulatedDevice keeps
// real timing without producing sound and is used for dry runs and tests.
package audio

// Package netmon tracks connectivity from two sources: passive interface
// signals (kernel uevents on Linux, or injected events) and an active
// periodic probe against a lightweight HTTP endpoint. Passive signals win
// for the raw online flag; probe results win for cloud-operation
// suitability. Listeners are notified once per genuine transition, never on
// repeated identical signals.
package netmon

// Package events provides the single subscribe/notify primitive shared by
// the network monitor and the operation queue. Having one notify path keeps
// the "notify on every real change, never on a no-op" rule in one place.
package events

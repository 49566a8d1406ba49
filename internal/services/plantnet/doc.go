// Package plantnet talks to the PlantNet identification API.
//
// Client.Identify submits one image per call and returns the ranked species
// candidates. Failures are tagged with the services error markers: rejected
// credentials map to ErrAuth, images the service cannot parse map to
// ErrUnsupportedFormat, and timeouts, throttling or 5xx answers map to
// ErrTransient after bounded exponential backoff. A rate limiter paces every
// attempt and a circuit breaker short-circuits calls while the service keeps
// failing.
package plantnet

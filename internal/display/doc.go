// Package display keeps one lifecycle controller per queued call.
// It reconciles controllers against the queue by call id, reports
// show/update/close events to sinks, and routes the HUD's user actions
// (dismiss, attach, add waypoint) onto the queue.
package display

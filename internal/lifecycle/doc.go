// Package lifecycle owns the timed expiry of a single on-screen call.
//
// A Controller moves from Active to exactly one terminal state: Expired,
// after which it asks its Remover to drop the call by id, or Cancelled, when
// its owner tears it down first. Teardown cancels the pending timer
// synchronously, so no removal is ever issued after Stop returns.
package lifecycle

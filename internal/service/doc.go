// Package service exposes the queue mutation and read entry points consumed
// by the HTTP layer and the tick processor. Every mutation flows through the
// same envelope: rate limit, validate, execute atomically, audit, notify
// connected clients.
package service

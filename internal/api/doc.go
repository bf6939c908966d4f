// Package api provides the HTTP handlers for the queue service.
package api

// Package tags normalizes the free-form tag strings attached to tracks.
package tags

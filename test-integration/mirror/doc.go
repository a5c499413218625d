// Package mirror contains end-to-end tests that run the mirror server against
// local upstream repositories.
package mirror

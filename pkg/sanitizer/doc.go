// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent - applying them twice produces the same result.
// Invalid input degrades to an empty string rather than an error.
package sanitizer

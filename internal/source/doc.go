// Package source owns the local source set and its visual handles.
//
// Ownership boundary:
// - source identity and position shape
// - registry add/remove/clear primitives
// - marker layer collaborator interface
package source

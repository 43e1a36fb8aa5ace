// Package artifact handles the on-disk analysis artifacts: the path layout
// of the analysis directory, atomic JSON document IO, and the typed errors
// shared by producers and consumers of the artifacts.
//
// Documents are written via a temp file in the destination directory
// followed by an atomic rename, so a reader never observes a partially
// written artifact. Reads classify failures as NotFoundError or
// MalformedError so callers can distinguish "run the parser first" from
// "the artifact is corrupt".
package artifact

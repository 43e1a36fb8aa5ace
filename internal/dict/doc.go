// Package dict implements the content-addressed interning tables and the
// dictionaries built from them.
//
// A Table assigns stable integer indices to structural records: interning a
// record returns the index of an existing structurally equal entry, or
// appends a new one. Tables are strictly append-only; indices are positional,
// so the persisted form is the ordered entry list, never a derived hash.
//
// A Dictionary is a fixed set of category tables scoped to one compilation
// unit or to the global namespace. File-local dictionaries may reference the
// global dictionary's indices; the global dictionary never references
// file-local indices. That asymmetry is load-bearing: global records must be
// assignable before any file-local record that uses them.
//
// GlobalDeclarations adds the cross-file linker: struct definitions from
// separate files are merged into one global table, with per-file
// backtracking when a conjectured key for a recursive struct turns out
// wrong.
package dict

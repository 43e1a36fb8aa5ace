// Package ir provides the canonical record types for proofdex.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// record layer foundational with no circular dependencies.
//
// Key design constraints:
//   - A record is tags (ordered strings) + args (ordered table indices),
//     nothing else. Identity is structural, never pointer-based.
//   - Cross-dictionary references are explicit (RefKind), never inferred
//     from index magnitude.
//   - Canonical serialization (RFC 8785) is the only form used for digests.
//   - No floats anywhere; indices and lines are int.
package ir

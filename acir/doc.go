// Package acir wraps the native library's ACIR composer behind a safe
// lifecycle type. A Composer owns exactly one native handle: created by
// New, driven through the proof operations, and released exactly once by
// Close, which is safe to defer through any early-return path.
//
// Every operation follows the native convention's two failure channels.
// The authoritative signal for buffer-producing calls is the null-ness of
// the primary output pointer; the diagnostic string, when present on a
// failure, rides along on the returned error. A diagnostic next to a
// structurally successful result is advisory and goes to the logger.
//
// VerifyProof is the one deliberate exception to error symmetry: an
// invalid proof is a false result, not an error. Only a native fault
// (a diagnostic or a trap) makes VerifyProof fail.
//
// A Composer serializes its native calls behind one mutex, so a handle
// never sees concurrent calls; parallel proving takes independent
// composers on independent library instances.
package acir

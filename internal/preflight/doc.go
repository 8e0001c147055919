// Package preflight provides readiness checks for the directories, binaries,
// and credentials loom depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and folds the results into its status
//     output, so a missing TTS binary is visible before the first job fails.
//   - The CLI "loom health" command combines RunAll with the network-touching
//     CheckGeneration to report end-to-end readiness.
//
// Checks never block daemon startup; a failed check is reported, not fatal.
package preflight

// Package panel serves the AC dashboard.
//
// A small dashboard is embedded into the binary with go:embed so the bridge
// is usable with no files on disk. Setting api.static_dir replaces it with a
// dashboard served from the filesystem (no recompile while iterating).
//
// Unknown paths fall back to index.html so client-side routing works.
// Responses carry no-cache headers; the dashboard is small and changes with
// the bridge version.
package panel

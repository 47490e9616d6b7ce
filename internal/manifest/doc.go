// Package manifest holds the installation catalog: one YAML descriptor per
// managed application, embedded into the binary and validated against a JSON
// schema before use.
//
// A descriptor tells the pipeline which GitHub repository to follow, which
// release asset to pick, how the unpacked files are laid out and how the
// launcher should start the result.
package manifest

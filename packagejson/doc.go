// Package packagejson reads the dependency sections of an npm package.json
// and pins caret and tilde ranges to the exact version they start from.
//
// Apply rewrites versions in place inside the original text so the file
// keeps its formatting, key order and trailing newline.
package packagejson

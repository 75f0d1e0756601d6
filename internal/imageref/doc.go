// Package imageref defines the image reference passed between pipeline
// stages and the directory scan used by discovery.
package imageref

// Package preprocess normalizes scanned document images before they are sent
// for transcription.
//
// Sources in any supported format are flattened onto white, converted to
// grayscale, downscaled to fit the configured maximum dimension and encoded
// as JPEG. The optional threshold mode binarizes pages with an adaptive mean
// threshold after a median blur, which helps faded handwriting.
package preprocess

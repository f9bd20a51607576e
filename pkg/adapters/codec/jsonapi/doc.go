// Package jsonapi encodes domain values into JSON:API request documents and
// maps JSON:API resource objects from backend responses back into domain
// values.
package jsonapi

// Package domain defines the values that flow through event pipelines.
//
// Events are the tracked happenings submitted on the ordered lane. Regions,
// messages and screens are values mapped back from backend responses.
// PipelineState is the observational snapshot of one pipeline instance.
package domain

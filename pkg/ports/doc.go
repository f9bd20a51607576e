// Package ports defines the interfaces between the orchestration core and
// its collaborators: codecs, transport, storage, event bus, metrics, region
// monitoring and device probing.
package ports

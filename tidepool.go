// Package tidepool provides a pooled, fault-contained content extraction
// engine. Raw HTML or PDF input is run through interchangeable extraction
// strategies (CSS selectors, regex patterns, a WebAssembly component, a
// headless browser); each strategy owns a bounded pool of reusable extractor
// instances guarded by a per-strategy circuit breaker, and a cascade walks
// the strategies in priority order until one succeeds.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, rod/, wazero/) or, for
// pure domain logic, after their function (pool/, cascade/).
package tidepool

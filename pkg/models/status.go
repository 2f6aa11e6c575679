package models

// PageStatus represents the crawl status of a URL in the state store
type PageStatus string

const (
	PageStatusUnset    PageStatus = ""          // Zero value = unset/unknown
	PageStatusPending  PageStatus = "pending"   // URL queued but not fetched
	PageStatusSuccess  PageStatus = "success"   // Fetched (and extracted, in the extract phase)
	PageStatusEmpty    PageStatus = "empty"     // Fetched but no readable text
	PageStatusFailure  PageStatus = "failure"   // Fetch or parse failed
	PageStatusNotFound PageStatus = "not_found" // URL not in store
	PageStatusDBError  PageStatus = "db_error"  // Store error occurred
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusPending, PageStatusSuccess, PageStatusEmpty, PageStatusFailure:
		return true
	}
	return false
}

// RunState is the phase a crawl run is in.
type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStateDiscovering RunState = "discovering"
	RunStateFiltering   RunState = "filtering"
	RunStateFetching    RunState = "fetching"
	RunStateExtracting  RunState = "extracting"
	RunStateWritten     RunState = "written"
	RunStateFailed      RunState = "failed"
)

// String implements fmt.Stringer for logging
func (s RunState) String() string {
	if s == "" {
		return string(RunStateIdle)
	}
	return string(s)
}

// IsTerminal reports whether the run has finished, successfully or not.
func (s RunState) IsTerminal() bool {
	return s == RunStateWritten || s == RunStateFailed
}

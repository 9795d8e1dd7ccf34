package pipeline

import (
	"fmt"
	"strings"
)

// RemoteFetchError means the statistics API rejected both the primary and
// the fallback request.
type RemoteFetchError struct {
	Status int
	URL    string
	Body   string // first 2000 chars of the response
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("eurostat request failed: %d\nURL: %s\nResponse (first 2000 chars): %s",
		e.Status, e.URL, e.Body)
}

// MalformedPayloadError means the payload has no dimension descriptor or no
// value array; Keys helps spot API error documents.
type MalformedPayloadError struct {
	Keys []string
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("unexpected payload keys: [%s]", strings.Join(e.Keys, " "))
}

// UnsupportedDimensionIndexError means a dimension's category index is
// neither a code→position map nor an ordered list.
type UnsupportedDimensionIndexError struct {
	Dimension string
}

func (e *UnsupportedDimensionIndexError) Error() string {
	return fmt.Sprintf("unsupported category.index for dimension %q", e.Dimension)
}

// ValueLengthMismatchError means a dense value array disagrees with the
// product of the dimension sizes.
type ValueLengthMismatchError struct {
	Got      int
	Expected int
}

func (e *ValueLengthMismatchError) Error() string {
	return fmt.Sprintf("value length mismatch: got %d, expected %d", e.Got, e.Expected)
}

// UnsupportedValueEncodingError means the value array is neither a dense
// list nor a sparse index map.
type UnsupportedValueEncodingError struct{}

func (e *UnsupportedValueEncodingError) Error() string {
	return "unsupported 'value' encoding: not a list or index map"
}

// ReportNotPassingError means a load was attempted against a quality report
// whose status marker is not PASS.
type ReportNotPassingError struct {
	Report string
}

func (e *ReportNotPassingError) Error() string {
	return fmt.Sprintf("latest quality report is not PASS: %s", e.Report)
}

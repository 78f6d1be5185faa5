package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is a resolved download range with inclusive bounds.
type ByteRange struct {
	Start int64
	End   int64
}

// ResolveRange resolves an HTTP Range header value against a file
// size. The policy is deliberately lenient: a range the server cannot
// honor (wrong unit, malformed spec, start beyond the end or the file,
// end beyond the file, multi-range) degrades to the full range
// [0, size-1] rather than failing the request. The caller always
// responds 206 when a Range header was present.
//
// Supported form is "bytes=<start>-<end>"; a missing start means 0 and
// a missing end means size-1.
func ResolveRange(rangeHeader string, size int64) *ByteRange {
	full := &ByteRange{Start: 0, End: size - 1}
	if size <= 0 {
		return &ByteRange{Start: 0, End: 0}
	}

	const bytesPrefix = "bytes="
	if !strings.HasPrefix(rangeHeader, bytesPrefix) {
		return full
	}

	spec := strings.TrimSpace(strings.TrimPrefix(rangeHeader, bytesPrefix))

	// Multi-range requests degrade to the full file
	if strings.Contains(spec, ",") {
		return full
	}

	parts := strings.Split(spec, "-")
	if len(parts) != 2 {
		return full
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	start := int64(0)
	end := size - 1

	if startStr != "" {
		v, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || v < 0 {
			return full
		}
		start = v
	}

	if endStr != "" {
		v, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || v < 0 {
			return full
		}
		end = v
	}

	if start > end || start >= size || end >= size {
		return full
	}

	return &ByteRange{Start: start, End: end}
}

// ContentLength returns the number of bytes in this range.
func (r *ByteRange) ContentLength() int64 {
	return r.End - r.Start + 1
}

// ContentRange is a parsed upload Content-Range header:
// "bytes <start>-<end>/<total>" with inclusive bounds.
type ContentRange struct {
	Start int64
	End   int64
	Total int64
}

// Length returns the number of payload bytes the range declares.
func (c *ContentRange) Length() int64 {
	return c.End - c.Start + 1
}

// ParseContentRange parses a chunk upload's Content-Range header.
// Unlike download ranges there is no leniency here: a chunk with a
// malformed or out-of-bounds range is rejected outright.
func ParseContentRange(header string) (*ContentRange, error) {
	const bytesPrefix = "bytes "
	if !strings.HasPrefix(header, bytesPrefix) {
		return nil, fmt.Errorf("invalid Content-Range: missing 'bytes ' prefix")
	}

	spec := strings.TrimSpace(strings.TrimPrefix(header, bytesPrefix))

	rangePart, totalPart, found := strings.Cut(spec, "/")
	if !found {
		return nil, fmt.Errorf("invalid Content-Range: missing total size")
	}

	startStr, endStr, found := strings.Cut(rangePart, "-")
	if !found {
		return nil, fmt.Errorf("invalid Content-Range: expected start-end")
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return nil, fmt.Errorf("invalid Content-Range start: %q", startStr)
	}

	end, err := strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
	if err != nil || end < start {
		return nil, fmt.Errorf("invalid Content-Range end: %q", endStr)
	}

	total, err := strconv.ParseInt(strings.TrimSpace(totalPart), 10, 64)
	if err != nil || total <= 0 {
		return nil, fmt.Errorf("invalid Content-Range total: %q", totalPart)
	}

	if end >= total {
		return nil, fmt.Errorf("invalid Content-Range: end %d beyond total %d", end, total)
	}

	return &ContentRange{Start: start, End: end, Total: total}, nil
}

// ContentRangeHeader returns the Content-Range header value for this
// range in the form "bytes start-end/total".
func (r *ByteRange) ContentRangeHeader(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

package utils

import "testing"

func TestResolveRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
	}{
		{"interior range", "bytes=200-299", 1000, 200, 299},
		{"first bytes", "bytes=0-99", 1000, 0, 99},
		{"last byte", "bytes=999-999", 1000, 999, 999},
		{"open end", "bytes=500-", 1000, 500, 999},
		{"open start", "bytes=-500", 1000, 0, 500},
		{"whole file explicit", "bytes=0-999", 1000, 0, 999},
		{"end beyond size degrades to full", "bytes=900-1500", 1000, 0, 999},
		{"start beyond size degrades to full", "bytes=2000-2100", 1000, 0, 999},
		{"start after end degrades to full", "bytes=300-200", 1000, 0, 999},
		{"wrong unit degrades to full", "items=0-10", 1000, 0, 999},
		{"garbage degrades to full", "bytes=abc-def", 1000, 0, 999},
		{"multi-range degrades to full", "bytes=0-100,200-300", 1000, 0, 999},
		{"negative start degrades to full", "bytes=--5-10", 1000, 0, 999},
		{"empty spec degrades to full", "bytes=", 1000, 0, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRange(tt.header, tt.size)
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ResolveRange(%q, %d) = [%d, %d], want [%d, %d]",
					tt.header, tt.size, got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestResolveRange_ContentLength(t *testing.T) {
	r := ResolveRange("bytes=200-299", 1000)
	if got := r.ContentLength(); got != 100 {
		t.Errorf("ContentLength() = %d, want 100", got)
	}
}

func TestResolveRange_ContentRangeHeader(t *testing.T) {
	r := ResolveRange("bytes=0-499", 1000)
	if got := r.ContentRangeHeader(1000); got != "bytes 0-499/1000" {
		t.Errorf("ContentRangeHeader() = %q, want %q", got, "bytes 0-499/1000")
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantStart int64
		wantEnd   int64
		wantTotal int64
		wantErr   bool
	}{
		{"first chunk", "bytes 0-4/10", 0, 4, 10, false},
		{"second chunk", "bytes 5-9/10", 5, 9, 10, false},
		{"single byte", "bytes 0-0/1", 0, 0, 1, false},
		{"large offsets", "bytes 2097152-4194303/10485760", 2097152, 4194303, 10485760, false},
		{"missing prefix", "0-4/10", 0, 0, 0, true},
		{"wrong unit", "items 0-4/10", 0, 0, 0, true},
		{"missing total", "bytes 0-4", 0, 0, 0, true},
		{"end before start", "bytes 5-2/10", 0, 0, 0, true},
		{"end beyond total", "bytes 0-10/10", 0, 0, 0, true},
		{"zero total", "bytes 0-4/0", 0, 0, 0, true},
		{"negative start", "bytes -1-4/10", 0, 0, 0, true},
		{"garbage", "bytes x-y/z", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContentRange(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseContentRange(%q) expected error, got %+v", tt.header, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseContentRange(%q) error = %v", tt.header, err)
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd || got.Total != tt.wantTotal {
				t.Errorf("ParseContentRange(%q) = %+v, want {%d %d %d}",
					tt.header, got, tt.wantStart, tt.wantEnd, tt.wantTotal)
			}
		})
	}
}

func TestContentRange_Length(t *testing.T) {
	cr := &ContentRange{Start: 5, End: 9, Total: 10}
	if got := cr.Length(); got != 5 {
		t.Errorf("Length() = %d, want 5", got)
	}
}

package export

import (
	"reflect"
	"testing"

	"packetlens/pkg/model"
)

func sampleRecords() []model.FlowRecord {
	return []model.FlowRecord{
		{
			ID:               "f1",
			Started:          1700000000.25,
			Ended:            1700000000.75,
			DurationMS:       500,
			Method:           "GET",
			URL:              "https://example.com/api/users?page=2",
			Host:             "example.com",
			Path:             "/api/users",
			Scheme:           "https",
			StatusCode:       200,
			RequestHeaders:   []model.HeaderEntry{{Name: "Accept", Value: "application/json"}},
			ResponseHeaders:  []model.HeaderEntry{{Name: "Content-Type", Value: "application/json"}},
			ResponseBodySize: 12,
			ResponseBody:     `{"ok":true}`,
		},
		{
			ID:                   "f2",
			Started:              1700000001,
			Ended:                1700000001,
			Method:               "POST",
			URL:                  "http://example.org/submit",
			Host:                 "example.org",
			Path:                 "/submit",
			Scheme:               "http",
			StatusCode:           0,
			RequestHeaders:       []model.HeaderEntry{{Name: "Content-Type", Value: "text/plain"}},
			RequestBody:          "hello",
			RequestBodySize:      5,
			RequestBodyTruncated: true,
			Error:                "connection reset",
		},
	}
}

func TestNativeRoundTripIsIdentity(t *testing.T) {
	original := sampleRecords()

	data, err := ExportNative(original)
	if err != nil {
		t.Fatalf("ExportNative() error: %v", err)
	}
	restored, err := ImportNative(data)
	if err != nil {
		t.Fatalf("ImportNative() error: %v", err)
	}
	if !reflect.DeepEqual(original, restored) {
		t.Errorf("round trip changed records:\n got %+v\nwant %+v", restored, original)
	}
}

func TestExportNative_EmptyStore(t *testing.T) {
	data, err := ExportNative(nil)
	if err != nil {
		t.Fatalf("ExportNative(nil) error: %v", err)
	}
	restored, err := ImportNative(data)
	if err != nil {
		t.Fatalf("ImportNative() error: %v", err)
	}
	if len(restored) != 0 {
		t.Errorf("restored %d records from empty export", len(restored))
	}
}

func TestImportNative_MalformedInput(t *testing.T) {
	for _, bad := range []string{"", "{", `{"not":"an array"}`, "xx"} {
		if _, err := ImportNative([]byte(bad)); err == nil {
			t.Errorf("ImportNative(%q) returned nil error", bad)
		}
	}
}

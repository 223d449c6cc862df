package blob

import "testing"

func TestLocatorRoundTrip(t *testing.T) {
	loc := Locator("s3", "pastes", "3f2504e0-4f89-11d3-9a0c-0305e82c3301")
	if loc != "s3://pastes/3f2504e0-4f89-11d3-9a0c-0305e82c3301" {
		t.Fatalf("unexpected locator %q", loc)
	}
	scheme, container, key, err := ParseLocator(loc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if scheme != "s3" || container != "pastes" || key != "3f2504e0-4f89-11d3-9a0c-0305e82c3301" {
		t.Fatalf("unexpected parts %q %q %q", scheme, container, key)
	}
}

func TestParseLocatorRejectsIncomplete(t *testing.T) {
	for _, loc := range []string{"", "s3://bucket", "s3:///key", "bucket/key", "%zz"} {
		if _, _, _, err := ParseLocator(loc); err == nil {
			t.Fatalf("expected error for %q", loc)
		}
	}
}

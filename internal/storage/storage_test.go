package storage

import "testing"

func TestPageNormalize(t *testing.T) {
	cases := []struct {
		in         Page
		wantNumber int
		wantLimit  int
		wantOffset int
	}{
		{Page{}, 1, DefaultPageLimit, 0},
		{Page{Number: 3, Limit: 10}, 3, 10, 20},
		{Page{Number: -1, Limit: 1000}, 1, MaxPageLimit, 0},
	}
	for _, c := range cases {
		got := c.in.Normalize()
		if got.Number != c.wantNumber || got.Limit != c.wantLimit {
			t.Fatalf("normalize %+v: got %+v", c.in, got)
		}
		if off := c.in.Offset(); off != c.wantOffset {
			t.Fatalf("offset %+v: expected %d got %d", c.in, c.wantOffset, off)
		}
	}
}

package post

import (
	"reflect"
	"testing"
)

func TestSnapshotDedupeKeepsFirstOccurrence(t *testing.T) {
	in := Snapshot{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}, {ID: "1", Text: "c"}}

	got := in.Dedupe()
	want := Snapshot{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedupe() = %v, want %v", got, want)
	}
}

func TestSnapshotRecent(t *testing.T) {
	in := Snapshot{{ID: "1"}, {ID: "2"}, {ID: "3"}}

	cases := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: 2, want: 2},
		{n: 5, want: 3},
		{n: -1, want: 0},
	}
	for _, tc := range cases {
		if got := in.Recent(tc.n); len(got) != tc.want {
			t.Fatalf("Recent(%d) len = %d, want %d", tc.n, len(got), tc.want)
		}
	}

	got := in.Recent(2)
	got[0].ID = "changed"
	if in[0].ID != "1" {
		t.Fatal("Recent must not alias the source snapshot")
	}
}

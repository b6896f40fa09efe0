package keywords

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "drops short tokens punctuation and stop words",
			in:   "I want to FINISH the quarterly report, before Friday!",
			want: []string{"finish", "quarterly", "report", "friday"},
		},
		{
			name: "spanish stop words and accents",
			in:   "Quiero terminar el informe también mañana",
			want: []string{"terminar", "informe", "mañana"},
		},
		{
			name: "non latin scripts keep their letters",
			in:   "Привет, мир! Учёба важна.",
			want: []string{"привет", "учёба", "важна"},
		},
		{
			name: "deduplicates preserving order",
			in:   "running, Running... running plan",
			want: []string{"running", "plan"},
		},
		{
			name: "empty",
			in:   "  ?! ",
			want: []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract(tc.in)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("Extract(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestOverlap(t *testing.T) {
	query := Set(Extract("weekly running plan for the marathon"))
	if got := Overlap(Extract("My marathon training plan is slipping"), query); got != 2 {
		t.Fatalf("expected overlap 2, got %d", got)
	}
	if got := Overlap(Extract("Grocery list"), query); got != 0 {
		t.Fatalf("expected overlap 0, got %d", got)
	}
}

package recurrence

import (
	"errors"
	"testing"
	"time"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func formatAll(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(DateLayout)
	}
	return out
}

func TestExpandCustom(t *testing.T) {
	parent := date(t, "2026-01-05")
	rule := Rule{Type: TypeCustom, Days: []time.Weekday{time.Monday, time.Wednesday}, EndDate: date(t, "2026-01-19")}

	dates, truncated, err := rule.Expand(parent)
	if err != nil {
		t.Fatal(err)
	}
	if truncated {
		t.Error("truncated = true")
	}
	want := []string{"2026-01-07", "2026-01-12", "2026-01-14", "2026-01-19"}
	got := formatAll(dates)
	if len(got) != len(want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExpandWeekly(t *testing.T) {
	parent := date(t, "2026-03-04")
	end := date(t, "2026-06-30")
	dates, _, err := Rule{Type: TypeWeekly, EndDate: end}.Expand(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) == 0 {
		t.Fatal("no dates")
	}
	for _, d := range dates {
		if d.Weekday() != parent.Weekday() {
			t.Errorf("%s is a %s, want %s", d.Format(DateLayout), d.Weekday(), parent.Weekday())
		}
		if !d.After(parent) || d.After(end) {
			t.Errorf("%s outside (parent, end]", d.Format(DateLayout))
		}
	}
	if first := dates[0].Format(DateLayout); first != "2026-03-11" {
		t.Errorf("first = %s, want 2026-03-11", first)
	}
}

func TestExpandDaily(t *testing.T) {
	dates, _, err := Rule{Type: TypeDaily, EndDate: date(t, "2026-01-10")}.Expand(date(t, "2026-01-05"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dates) != 5 {
		t.Errorf("len = %d, want 5", len(dates))
	}
}

func TestExpandCapsInstances(t *testing.T) {
	parent := date(t, "2026-01-01")
	dates, truncated, err := Rule{Type: TypeDaily, EndDate: parent.AddDate(1, 6, 0)}.Expand(parent)
	if err != nil {
		t.Fatal(err)
	}
	if !truncated {
		t.Error("truncated = false")
	}
	if len(dates) != MaxInstances {
		t.Errorf("len = %d, want %d", len(dates), MaxInstances)
	}
}

func TestValidate(t *testing.T) {
	parent := date(t, "2026-01-05")
	tests := []struct {
		name string
		rule Rule
		want error
	}{
		{"end equals parent", Rule{Type: TypeDaily, EndDate: parent}, ErrEndNotAfterStart},
		{"end before parent", Rule{Type: TypeDaily, EndDate: parent.AddDate(0, 0, -1)}, ErrEndNotAfterStart},
		{"exactly two years", Rule{Type: TypeWeekly, EndDate: parent.AddDate(2, 0, 0)}, nil},
		{"over two years", Rule{Type: TypeWeekly, EndDate: parent.AddDate(2, 0, 1)}, ErrSpanTooLong},
		{"custom without days", Rule{Type: TypeCustom, EndDate: parent.AddDate(0, 1, 0)}, ErrNoDays},
		{"custom bad weekday", Rule{Type: TypeCustom, Days: []time.Weekday{7}, EndDate: parent.AddDate(0, 1, 0)}, ErrInvalidWeekday},
		{"none", Rule{Type: TypeNone, EndDate: parent.AddDate(0, 1, 0)}, ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rule.Validate(parent); !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWeekdays(t *testing.T) {
	if _, err := Weekdays([]int{1, 7}); !errors.Is(err, ErrInvalidWeekday) {
		t.Errorf("err = %v, want ErrInvalidWeekday", err)
	}
	days, err := Weekdays([]int{0, 6})
	if err != nil {
		t.Fatal(err)
	}
	if days[0] != time.Sunday || days[1] != time.Saturday {
		t.Errorf("days = %v", days)
	}
	if idx := Indices(days); idx[0] != 0 || idx[1] != 6 {
		t.Errorf("Indices = %v", idx)
	}
}

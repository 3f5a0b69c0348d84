package interval

import (
	"testing"
	"time"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

func TestFromSeconds_RoundTrip(t *testing.T) {
	for _, iv := range Catalog() {
		got, err := FromSeconds(iv.Seconds())
		if err != nil {
			t.Fatalf("FromSeconds(%d) returned error: %v", iv.Seconds(), err)
		}
		if got != iv {
			t.Errorf("FromSeconds(%d) = %v, want %v", iv.Seconds(), got, iv)
		}
	}
}

func TestFromSeconds_RejectsNonMembers(t *testing.T) {
	invalid := []int{-1, -300, 1, 299, 301, 900000, 17999, 18001, 42}
	for _, n := range invalid {
		got, err := FromSeconds(n)
		if err == nil {
			t.Errorf("FromSeconds(%d) = %v, want error", n, got)
			continue
		}
		if !hostErrors.IsCode(err, hostErrors.CodeIntervalInvalid) {
			t.Errorf("FromSeconds(%d) error code = %s, want interval.invalid", n, hostErrors.GetCode(err))
		}
		if got != Indefinite {
			t.Errorf("FromSeconds(%d) fallback = %v, want Indefinite", n, got)
		}
	}
}

func TestCatalog_OrderedAscending(t *testing.T) {
	cat := Catalog()
	if len(cat) != 8 {
		t.Fatalf("catalog has %d entries, want 8", len(cat))
	}
	if cat[0] != Indefinite {
		t.Errorf("first catalog entry = %v, want Indefinite", cat[0])
	}
	for i := 1; i < len(cat); i++ {
		if cat[i].Seconds() <= cat[i-1].Seconds() {
			t.Errorf("catalog not ascending at index %d: %d <= %d", i, cat[i].Seconds(), cat[i-1].Seconds())
		}
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		iv   Interval
		want int
	}{
		{Indefinite, 0},
		{FiveMinutes, 300},
		{TenMinutes, 600},
		{FifteenMinutes, 900},
		{ThirtyMinutes, 1800},
		{OneHour, 3600},
		{TwoHours, 7200},
		{FiveHours, 18000},
	}
	for _, tt := range tests {
		if got := tt.iv.Seconds(); got != tt.want {
			t.Errorf("%v.Seconds() = %d, want %d", tt.iv, got, tt.want)
		}
	}
}

func TestDuration(t *testing.T) {
	if got := FiveMinutes.Duration(); got != 5*time.Minute {
		t.Errorf("FiveMinutes.Duration() = %v, want 5m", got)
	}
	if got := Indefinite.Duration(); got != 0 {
		t.Errorf("Indefinite.Duration() = %v, want 0", got)
	}
}

func TestValid(t *testing.T) {
	if !OneHour.Valid() {
		t.Error("OneHour should be valid")
	}
	if Interval(42).Valid() {
		t.Error("42 seconds should not be valid")
	}
	if Interval(-300).Valid() {
		t.Error("negative interval should not be valid")
	}
}

func TestString_Labels(t *testing.T) {
	tests := []struct {
		iv   Interval
		want string
	}{
		{Indefinite, "indefinitely"},
		{FiveMinutes, "5 minutes"},
		{OneHour, "1 hour"},
		{FiveHours, "5 hours"},
	}
	for _, tt := range tests {
		if got := tt.iv.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}

	if got := Interval(17).String(); got != "invalid interval (17 seconds)" {
		t.Errorf("invalid String() = %q", got)
	}
}

func TestCatalogCopyIsIndependent(t *testing.T) {
	a := Catalog()
	a[0] = Interval(999)
	b := Catalog()
	if b[0] != Indefinite {
		t.Error("mutating a returned catalog slice must not affect later calls")
	}
}

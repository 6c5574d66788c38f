package metadata

import (
	"errors"
	"math"
	"testing"

	"github.com/biancann/footfolio/internal/tracking"
)

func TestLevelBoundaries(t *testing.T) {
	cases := map[float64]string{
		0:     "Leisure Walker",
		1999:  "Leisure Walker",
		2000:  "Explorer",
		4999:  "Explorer",
		5000:  "Trailblazer",
		9999:  "Trailblazer",
		10000: "Distance Champion",
		19999: "Distance Champion",
		20000: "Marathon Voyager",
		42195: "Marathon Voyager",
	}
	for m, want := range cases {
		if got := Level(m); got != want {
			t.Fatalf("Level(%v) = %q, want %q", m, got, want)
		}
	}
}

func TestBuildEquatorScenario(t *testing.T) {
	samples := []tracking.Sample{
		{Lat: 0, Lng: 0, CapturedAtMillis: 0},
		{Lat: 0, Lng: 0.001, CapturedAtMillis: 5000},
	}
	total := tracking.PathDistanceM(samples)
	if math.Abs(total-111.19) > 1.12 {
		t.Fatalf("unexpected distance %v", total)
	}

	md, err := Build(Input{Samples: samples, TotalDistanceM: total, NextTokenID: 6}, "ipfs://image")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if md.Name != "FootFolio #7" {
		t.Fatalf("unexpected name %q", md.Name)
	}
	if md.Image != "ipfs://image" {
		t.Fatalf("unexpected image %q", md.Image)
	}

	want := []Attribute{
		{TraitDistance, "0.11"},
		{TraitDuration, "5 seconds"},
		{TraitPoints, "2"},
		{TraitLevel, "Leisure Walker"},
	}
	if len(md.Attributes) != len(want) {
		t.Fatalf("unexpected attributes %+v", md.Attributes)
	}
	for i := range want {
		if md.Attributes[i] != want[i] {
			t.Fatalf("attribute %d = %+v, want %+v", i, md.Attributes[i], want[i])
		}
	}
}

func TestBuildInsufficientSamples(t *testing.T) {
	_, err := Build(Input{Samples: []tracking.Sample{{Lat: 1, Lng: 1}}}, "ipfs://x")
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected insufficient samples, got %v", err)
	}
}

func TestDurationRounding(t *testing.T) {
	secs, _ := DurationSeconds([]tracking.Sample{{CapturedAtMillis: 1000}, {CapturedAtMillis: 2600}})
	if secs != 2 {
		t.Fatalf("expected 1.6s to round to 2, got %d", secs)
	}
	secs, _ = DurationSeconds([]tracking.Sample{{CapturedAtMillis: 1000}, {CapturedAtMillis: 2400}})
	if secs != 1 {
		t.Fatalf("expected 1.4s to round to 1, got %d", secs)
	}
}

func TestTotals(t *testing.T) {
	md := Metadata{Attributes: []Attribute{{TraitDistance, "1.25 km"}, {TraitPoints, "40"}}}
	km, pts := md.Totals()
	if km != 1.25 || pts != 40 {
		t.Fatalf("unexpected totals %v %v", km, pts)
	}
	km, pts = Metadata{}.Totals()
	if km != 0 || pts != 0 {
		t.Fatalf("expected zero totals")
	}
}

package metadata

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/biancann/footfolio/internal/tracking"
)

const (
	CollectionName = "FootFolio"

	TraitDistance = "Distance"
	TraitDuration = "Duration"
	TraitPoints   = "Points"
	TraitLevel    = "Level"
)

var ErrInsufficientSamples = errors.New("at least two samples are needed to compute duration")

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the token metadata document pinned next to the path image.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Attr returns the value of the named trait.
func (m Metadata) Attr(trait string) (string, bool) {
	for _, a := range m.Attributes {
		if a.TraitType == trait {
			return a.Value, true
		}
	}
	return "", false
}

type Input struct {
	Samples        []tracking.Sample
	TotalDistanceM float64
	// NextTokenID is the contract's next token counter, read right before
	// building.
	NextTokenID uint64
}

type level struct {
	minM  float64
	label string
}

var levels = []level{
	{20000, "Marathon Voyager"},
	{10000, "Distance Champion"},
	{5000, "Trailblazer"},
	{2000, "Explorer"},
	{0, "Leisure Walker"},
}

// Level bands a walk distance in meters; lower bounds are inclusive.
func Level(distanceM float64) string {
	for _, l := range levels {
		if distanceM >= l.minM {
			return l.label
		}
	}
	return levels[len(levels)-1].label
}

// TokenName is the display name of the token minted after nextTokenID.
func TokenName(nextTokenID uint64) string {
	return fmt.Sprintf("%s #%d", CollectionName, nextTokenID+1)
}

func DurationSeconds(samples []tracking.Sample) (int64, error) {
	if len(samples) < 2 {
		return 0, ErrInsufficientSamples
	}
	ms := samples[len(samples)-1].CapturedAtMillis - samples[0].CapturedAtMillis
	return int64(math.Round(float64(ms) / 1000)), nil
}

func Build(in Input, imageURI string) (Metadata, error) {
	secs, err := DurationSeconds(in.Samples)
	if err != nil {
		return Metadata{}, err
	}
	km := in.TotalDistanceM / 1000

	return Metadata{
		Name:        TokenName(in.NextTokenID),
		Description: fmt.Sprintf("A %.2f km walk traced across %d GPS points, minted with %s.", km, len(in.Samples), CollectionName),
		Image:       imageURI,
		Attributes: []Attribute{
			{TraitType: TraitDistance, Value: fmt.Sprintf("%.2f", km)},
			{TraitType: TraitDuration, Value: fmt.Sprintf("%d seconds", secs)},
			{TraitType: TraitPoints, Value: strconv.Itoa(len(in.Samples))},
			{TraitType: TraitLevel, Value: Level(in.TotalDistanceM)},
		},
	}, nil
}

// Totals reads the Distance (km) and Points traits back out of a document.
// Missing or malformed traits count as zero.
func (m Metadata) Totals() (distanceKm float64, points int64) {
	if v, ok := m.Attr(TraitDistance); ok {
		distanceKm, _ = strconv.ParseFloat(leadingNumber(v), 64)
	}
	if v, ok := m.Attr(TraitPoints); ok {
		points, _ = strconv.ParseInt(leadingNumber(v), 10, 64)
	}
	return distanceKm, points
}

// leadingNumber trims v to its numeric prefix, so "1.25 km" reads as 1.25.
func leadingNumber(v string) string {
	end := 0
	for end < len(v) {
		c := v[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	return v[:end]
}

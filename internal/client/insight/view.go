// Package insight computes the mood history view: chart positions, label
// frequencies and the server-generated insight.
package insight

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/gateway"
)

// Mode selects how the history is presented.
type Mode int

const (
	ModeTimeline Mode = iota
	ModeMap
)

func (m Mode) String() string {
	if m == ModeMap {
		return "map"
	}
	return "timeline"
}

const defaultValue = 3

var moodValues = map[string]float64{
	"calm":    5,
	"neutral": 3,
	"sad":     1,
	"angry":   2,
	"anxious": 2.5,
}

// MoodValue maps a label to its chart position. Unknown and empty labels map to 3.
func MoodValue(label string) float64 {
	if v, ok := moodValues[strings.ToLower(strings.TrimSpace(label))]; ok {
		return v
	}
	return defaultValue
}

// Point is one charted snapshot.
type Point struct {
	At    time.Time
	Label string
	Value float64
}

// Timeline returns one point per snapshot, oldest first.
func Timeline(moods []gateway.MoodSnapshot) []Point {
	points := make([]Point, 0, len(moods))
	for _, m := range moods {
		points = append(points, Point{At: m.CreatedAt, Label: m.DetectedEmotion, Value: MoodValue(m.DetectedEmotion)})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

// Frequency is the number of snapshots with one label.
type Frequency struct {
	Label string
	Count int
}

// Frequencies counts lower-cased labels, most frequent first. Ties keep the
// order in which labels were first seen; a missing label counts as "unknown".
func Frequencies(moods []gateway.MoodSnapshot) []Frequency {
	index := make(map[string]int)
	var out []Frequency
	for _, m := range moods {
		label := strings.ToLower(strings.TrimSpace(m.DetectedEmotion))
		if label == "" {
			label = "unknown"
		}
		if i, ok := index[label]; ok {
			out[i].Count++
			continue
		}
		index[label] = len(out)
		out = append(out, Frequency{Label: label, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Gateway is the subset of the API client the view uses.
type Gateway interface {
	MoodHistory(ctx context.Context, limit int) ([]gateway.MoodSnapshot, error)
	MoodInsight(ctx context.Context, moods []gateway.MoodSnapshot) (string, error)
}

// View holds the loaded history and the insight for it.
type View struct {
	gw     Gateway
	logger *zap.Logger

	mu             sync.Mutex
	moods          []gateway.MoodSnapshot
	mode           Mode
	insight        string
	insightFor     string
	insightPending bool
	err            error
}

// New returns an empty view in timeline mode.
func New(gw Gateway, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{gw: gw, logger: logger.Named("insight")}
}

// Load fetches the full history.
func (v *View) Load(ctx context.Context) error {
	moods, err := v.gw.MoodHistory(ctx, gateway.FullHistoryLimit)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.err = err
		return err
	}
	v.moods = moods
	v.err = nil
	return nil
}

// SetMode switches presentation. Entering map mode requests an insight when
// history is non-empty and no insight exists for the current history.
func (v *View) SetMode(ctx context.Context, mode Mode) error {
	v.mu.Lock()
	v.mode = mode
	if mode != ModeMap || len(v.moods) == 0 || v.insightPending {
		v.mu.Unlock()
		return nil
	}
	key := fingerprint(v.moods)
	if key == v.insightFor {
		v.mu.Unlock()
		return nil
	}
	moods := make([]gateway.MoodSnapshot, len(v.moods))
	copy(moods, v.moods)
	v.insightPending = true
	v.mu.Unlock()

	text, err := v.gw.MoodInsight(ctx, moods)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.insightPending = false
	if err != nil {
		v.err = err
		v.logger.Debug("insight request failed", zap.Error(err))
		return err
	}
	v.insight = text
	v.insightFor = key
	v.err = nil
	return nil
}

// fingerprint identifies the insight window of a history set.
func fingerprint(moods []gateway.MoodSnapshot) string {
	recent := gateway.MostRecent(moods, gateway.InsightWindow)
	ids := make([]string, len(recent))
	for i, m := range recent {
		ids[i] = m.ID
	}
	return strings.Join(ids, ",")
}

func (v *View) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Moods returns a copy of the loaded history, newest first.
func (v *View) Moods() []gateway.MoodSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]gateway.MoodSnapshot, len(v.moods))
	copy(out, v.moods)
	return out
}

func (v *View) Insight() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.insight
}

func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Package habits learns the user's work rhythms from passive observation:
// when they are active, when they prefer quiet, which tasks repeat and in
// what order. The learned patterns veto spontaneous speech at bad moments.
package habits

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	memoryVersion = "1.0"

	// Per-hour activity timestamps and sequence logs are trimmed so a
	// long-lived process does not grow the file without bound.
	maxTimestampsPerHour = 1000
	maxSequences         = 2000
	maxSwitches          = 500

	sequenceWindow = 5 * time.Minute
)

// ActivityContext is the observable context of one user activity.
type ActivityContext struct {
	App      string
	FileType string
	Task     string
}

// Workflow is a learned two-step task sequence.
type Workflow struct {
	From       string `json:"from"`
	To         string `json:"to"`
	AvgGapSecs int    `json:"avg_gap_seconds"`
}

// Patterns is the analysis cache derived from raw observations.
type Patterns struct {
	PeakHours             []int             `json:"peak_coding_hours"`
	QuietHours            []int             `json:"preferred_silence_hours"`
	CommonWorkflows       []Workflow        `json:"common_workflows"`
	AppPreferences        map[string]string `json:"app_preferences"`
	TypicalSessionMinutes int               `json:"typical_session_length"`
}

type sequence struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	GapSecs float64 `json:"gap_seconds"`
}

type contextSwitch struct {
	From string `json:"from"`
	To   string `json:"to"`
	At   int64  `json:"at"`
}

type observedTask struct {
	signature string
	activity  string
	at        time.Time
}

// Memory accumulates observations and answers "is now a good moment".
// All methods are safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	path string
	now  func() time.Time

	workSchedule  map[int][]int64
	appUsage      map[string]map[string]int
	silencePrefs  map[int][]float64
	repeatedTasks map[string]int
	sequences     []sequence
	switches      []contextSwitch
	patterns      Patterns

	sessionStart time.Time
	observed     []observedTask
	interactions int
}

// Option customizes a Memory.
type Option func(*Memory)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// New creates a Memory backed by the JSON file at path and loads any
// previously learned patterns. A missing file is a fresh start, not an
// error; a corrupt file is reported but the Memory is still usable.
func New(path string, opts ...Option) (*Memory, error) {
	m := &Memory{
		path:          path,
		now:           time.Now,
		workSchedule:  make(map[int][]int64),
		appUsage:      make(map[string]map[string]int),
		silencePrefs:  make(map[int][]float64),
		repeatedTasks: make(map[string]int),
		patterns:      Patterns{AppPreferences: make(map[string]string)},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessionStart = m.now()

	if err := m.load(); err != nil {
		return m, fmt.Errorf("load habit memory: %w", err)
	}
	return m, nil
}

// Signature builds the canonical task identity from an activity and its
// context. Empty context fields are omitted.
func Signature(activity string, ctx ActivityContext) string {
	sig := activity
	if ctx.App != "" {
		sig += "|" + ctx.App
	}
	if ctx.FileType != "" {
		sig += "|" + ctx.FileType
	}
	if ctx.Task != "" {
		sig += "|" + ctx.Task
	}
	return sig
}

// ObserveActivity records one user activity: updates the hourly schedule,
// app usage, task repetition counts, and short adjacency sequences.
func (m *Memory) ObserveActivity(activity string, ctx ActivityContext) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	hour := now.Hour()

	m.workSchedule[hour] = append(m.workSchedule[hour], now.Unix())
	if len(m.workSchedule[hour]) > maxTimestampsPerHour {
		m.workSchedule[hour] = m.workSchedule[hour][len(m.workSchedule[hour])-maxTimestampsPerHour:]
	}

	if ctx.App != "" {
		if m.appUsage[activity] == nil {
			m.appUsage[activity] = make(map[string]int)
		}
		m.appUsage[activity][ctx.App]++
	}

	sig := Signature(activity, ctx)
	m.repeatedTasks[sig]++

	if n := len(m.observed); n > 0 {
		prev := m.observed[n-1]
		if gap := now.Sub(prev.at); gap < sequenceWindow {
			m.sequences = append(m.sequences, sequence{
				From:    prev.signature,
				To:      sig,
				GapSecs: gap.Seconds(),
			})
			if len(m.sequences) > maxSequences {
				m.sequences = m.sequences[len(m.sequences)-maxSequences:]
			}
		}
	}
	m.observed = append(m.observed, observedTask{signature: sig, activity: activity, at: now})
}

// ObserveInteraction records that the user talked to Alisa directly.
func (m *Memory) ObserveInteraction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions++
}

// ObserveSilence records a silence period that just ended, attributed to
// the current hour.
func (m *Memory) ObserveSilence(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hour := m.now().Hour()
	m.silencePrefs[hour] = append(m.silencePrefs[hour], d.Minutes())
}

// ObserveContextSwitch records a transition between work contexts.
func (m *Memory) ObserveContextSwitch(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switches = append(m.switches, contextSwitch{From: from, To: to, At: m.now().Unix()})
	if len(m.switches) > maxSwitches {
		m.switches = m.switches[len(m.switches)-maxSwitches:]
	}
}

// AnalyzePatterns recomputes the pattern cache from raw observations.
func (m *Memory) AnalyzePatterns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzeLocked()
}

func (m *Memory) analyzeLocked() {
	m.patterns.PeakHours = topHoursByCount(m.workSchedule)
	m.patterns.QuietHours = topHoursByAvg(m.silencePrefs)
	m.patterns.CommonWorkflows = commonWorkflows(m.sequences)
	m.patterns.AppPreferences = appPreferences(m.appUsage)
	m.patterns.TypicalSessionMinutes = int(m.now().Sub(m.sessionStart).Minutes())
}

// topHoursByCount returns the three busiest hours, ascending.
func topHoursByCount(schedule map[int][]int64) []int {
	type hc struct {
		hour, count int
	}
	counts := make([]hc, 0, len(schedule))
	for hour, stamps := range schedule {
		counts = append(counts, hc{hour, len(stamps)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].hour < counts[j].hour
	})
	if len(counts) > 3 {
		counts = counts[:3]
	}
	hours := make([]int, 0, len(counts))
	for _, c := range counts {
		hours = append(hours, c.hour)
	}
	sort.Ints(hours)
	return hours
}

// topHoursByAvg returns the three hours with the longest average silence,
// ascending.
func topHoursByAvg(prefs map[int][]float64) []int {
	type ha struct {
		hour int
		avg  float64
	}
	avgs := make([]ha, 0, len(prefs))
	for hour, durations := range prefs {
		if len(durations) == 0 {
			continue
		}
		var sum float64
		for _, d := range durations {
			sum += d
		}
		avgs = append(avgs, ha{hour, sum / float64(len(durations))})
	}
	sort.Slice(avgs, func(i, j int) bool {
		if avgs[i].avg != avgs[j].avg {
			return avgs[i].avg > avgs[j].avg
		}
		return avgs[i].hour < avgs[j].hour
	})
	if len(avgs) > 3 {
		avgs = avgs[:3]
	}
	hours := make([]int, 0, len(avgs))
	for _, a := range avgs {
		hours = append(hours, a.hour)
	}
	sort.Ints(hours)
	return hours
}

// commonWorkflows returns the five most frequent task adjacencies seen at
// least twice, with their mean gap.
func commonWorkflows(seqs []sequence) []Workflow {
	type key struct{ from, to string }
	counts := make(map[key]int)
	gaps := make(map[key]float64)
	for _, s := range seqs {
		k := key{s.From, s.To}
		counts[k]++
		gaps[k] += s.GapSecs
	}

	keys := make([]key, 0, len(counts))
	for k, n := range counts {
		if n >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		return keys[i].to < keys[j].to
	})
	if len(keys) > 5 {
		keys = keys[:5]
	}

	flows := make([]Workflow, 0, len(keys))
	for _, k := range keys {
		flows = append(flows, Workflow{
			From:       k.from,
			To:         k.to,
			AvgGapSecs: int(gaps[k] / float64(counts[k])),
		})
	}
	return flows
}

func appPreferences(usage map[string]map[string]int) map[string]string {
	prefs := make(map[string]string, len(usage))
	for activity, apps := range usage {
		best, bestCount := "", -1
		for app, n := range apps {
			if n > bestCount || (n == bestCount && app < best) {
				best, bestCount = app, n
			}
		}
		if best != "" {
			prefs[activity] = best
		}
	}
	return prefs
}

// ShouldInterrupt reports whether learned patterns permit interrupting the
// user right now. The reason names the veto, or confirms the go-ahead.
func (m *Memory) ShouldInterrupt() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hour := m.now().Hour()

	if containsInt(m.patterns.QuietHours, hour) {
		return false, "user_prefers_silence_at_this_hour"
	}
	if containsInt(m.patterns.PeakHours, hour) && m.interactions < 2 {
		return false, "peak_working_hour_minimal_interaction"
	}
	if m.minutesSinceActivityLocked() < 2 {
		return false, "user_was_just_active"
	}
	return true, "good_time_to_interact"
}

func (m *Memory) minutesSinceActivityLocked() float64 {
	last := m.sessionStart
	if n := len(m.observed); n > 0 {
		last = m.observed[n-1].at
	}
	return m.now().Sub(last).Minutes()
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// Suggestions advises the companion on how to behave right now, derived
// from the pattern cache.
type Suggestions struct {
	BeQuiet                bool   `json:"be_quiet"`
	ExpectCoding           bool   `json:"expect_coding"`
	LikelyNextTask         string `json:"likely_next_task,omitempty"`
	NextTaskExpectedInSecs int    `json:"next_task_expected_in_seconds,omitempty"`
	SuggestedSilenceMins   int    `json:"suggested_silence_minutes"`
}

// Suggest returns behavior advice for the current hour and session.
func (m *Memory) Suggest() Suggestions {
	m.mu.Lock()
	defer m.mu.Unlock()

	hour := m.now().Hour()
	s := Suggestions{SuggestedSilenceMins: 5}

	if containsInt(m.patterns.QuietHours, hour) {
		s.BeQuiet = true
		if durations := m.silencePrefs[hour]; len(durations) > 0 {
			var sum float64
			for _, d := range durations {
				sum += d
			}
			s.SuggestedSilenceMins = int(sum / float64(len(durations)))
		}
	}
	s.ExpectCoding = containsInt(m.patterns.PeakHours, hour)

	if n := len(m.observed); n > 0 {
		current := m.observed[n-1].signature
		for _, w := range m.patterns.CommonWorkflows {
			if w.From == current {
				s.LikelyNextTask = w.To
				s.NextTaskExpectedInSecs = w.AvgGapSecs
				break
			}
		}
	}
	return s
}

// Insights is a debugging summary of what has been learned.
type Insights struct {
	PeakHours           []int             `json:"peak_hours"`
	QuietHours          []int             `json:"quiet_hours"`
	TotalTasksObserved  int               `json:"total_tasks_observed"`
	UniqueTasks         int               `json:"unique_tasks"`
	CommonWorkflows     int               `json:"common_workflows"`
	AppPreferences      map[string]string `json:"app_preferences"`
	SessionInteractions int               `json:"session_interactions"`
}

// Snapshot returns the current insights.
func (m *Memory) Snapshot() Insights {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, n := range m.repeatedTasks {
		total += n
	}
	prefs := make(map[string]string, len(m.patterns.AppPreferences))
	for k, v := range m.patterns.AppPreferences {
		prefs[k] = v
	}
	return Insights{
		PeakHours:           append([]int(nil), m.patterns.PeakHours...),
		QuietHours:          append([]int(nil), m.patterns.QuietHours...),
		TotalTasksObserved:  total,
		UniqueTasks:         len(m.repeatedTasks),
		CommonWorkflows:     len(m.patterns.CommonWorkflows),
		AppPreferences:      prefs,
		SessionInteractions: m.interactions,
	}
}

type memoryFile struct {
	Version         string                    `json:"version"`
	LastSaved       int64                     `json:"last_saved"`
	WorkSchedule    map[string][]int64        `json:"work_schedule"`
	AppUsage        map[string]map[string]int `json:"app_usage"`
	SilencePrefs    map[string][]float64      `json:"silence_preferences"`
	RepeatedTasks   map[string]int            `json:"repeated_tasks"`
	TaskSequences   []sequence                `json:"task_sequences"`
	ContextSwitches []contextSwitch           `json:"context_switches"`
	Patterns        Patterns                  `json:"patterns"`
}

// Save persists the learned patterns. The write goes through a temp file
// and rename so a crash never leaves a half-written memory.
func (m *Memory) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Memory) saveLocked() error {
	file := memoryFile{
		Version:         memoryVersion,
		LastSaved:       m.now().Unix(),
		WorkSchedule:    make(map[string][]int64, len(m.workSchedule)),
		AppUsage:        m.appUsage,
		SilencePrefs:    make(map[string][]float64, len(m.silencePrefs)),
		RepeatedTasks:   m.repeatedTasks,
		TaskSequences:   m.sequences,
		ContextSwitches: m.switches,
		Patterns:        m.patterns,
	}
	for hour, stamps := range m.workSchedule {
		file.WorkSchedule[fmt.Sprintf("%d", hour)] = stamps
	}
	for hour, durations := range m.silencePrefs {
		file.SilencePrefs[fmt.Sprintf("%d", hour)] = durations
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal habit memory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write habit memory: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replace habit memory: %w", err)
	}
	return nil
}

func (m *Memory) load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var file memoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", m.path, err)
	}

	for key, stamps := range file.WorkSchedule {
		var hour int
		if _, err := fmt.Sscanf(key, "%d", &hour); err == nil && hour >= 0 && hour < 24 {
			m.workSchedule[hour] = stamps
		}
	}
	for key, durations := range file.SilencePrefs {
		var hour int
		if _, err := fmt.Sscanf(key, "%d", &hour); err == nil && hour >= 0 && hour < 24 {
			m.silencePrefs[hour] = durations
		}
	}
	if file.AppUsage != nil {
		m.appUsage = file.AppUsage
	}
	if file.RepeatedTasks != nil {
		m.repeatedTasks = file.RepeatedTasks
	}
	m.sequences = file.TaskSequences
	m.switches = file.ContextSwitches
	m.patterns = file.Patterns
	if m.patterns.AppPreferences == nil {
		m.patterns.AppPreferences = make(map[string]string)
	}
	return nil
}

// EndSession refreshes the pattern cache, saves, and resets per-session
// counters. Called on shutdown.
func (m *Memory) EndSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analyzeLocked()
	err := m.saveLocked()

	m.sessionStart = m.now()
	m.observed = nil
	m.interactions = 0
	return err
}

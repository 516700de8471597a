// Package scheduler runs time-of-day lighting events against the
// coordinator: set a group or light's channels, or trigger a blackout.
package scheduler

import (
	"sort"
	"strings"
	"sync"
	"time"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

// Event is one parsed schedule entry.
type Event struct {
	Hour     int
	Minute   int
	Second   int
	Set      map[string]map[string]uint8
	Blackout bool
}

// Scheduler runs scheduled lighting events against a coordinator.State.
type Scheduler struct {
	events   []Event
	state    *coordinator.State
	log      *logger.Log
	location *time.Location

	mu       sync.RWMutex
	lastRun  string
	stopChan chan struct{}
	running  bool
}

// New parses cfg's events and builds a Scheduler. Events with an
// unparseable time are skipped with a warning rather than failing the
// whole configuration.
func New(cfg *gatewayconfig.ScheduleConfig, state *coordinator.State, log *logger.Log) (*Scheduler, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
	}

	log = log.Module("scheduler")

	events := make([]Event, 0, len(cfg.Events))
	for _, e := range cfg.Events {
		parsed, err := parseTime(e.Time)
		if err != nil {
			log.With(logger.Fields{"time": e.Time, "error": err}).Warn("invalid schedule time")
			continue
		}
		parsed.Set = e.Set
		parsed.Blackout = e.Blackout
		events = append(events, parsed)
	}

	sort.Slice(events, func(i, j int) bool {
		return timeToSeconds(events[i]) < timeToSeconds(events[j])
	})

	return &Scheduler{
		events:   events,
		state:    state,
		log:      log,
		location: loc,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the 1Hz check loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.loop()
	s.log.With(logger.Fields{"events": len(s.events), "timezone": s.location.String()}).Info("scheduler started")
}

// Stop ends the check loop. Calling Stop when not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.check()
		case <-s.stopChan:
			return
		}
	}
}

// check runs the first event whose HH:MM:SS matches now, de-duplicated so
// the same second never fires twice; a second event configured for the
// same time is not run.
func (s *Scheduler) check() {
	now := time.Now().In(s.location)
	nowStr := now.Format("15:04:05")

	s.mu.Lock()
	if s.lastRun == nowStr {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	h, m, sec := now.Hour(), now.Minute(), now.Second()
	for _, e := range s.events {
		if e.Hour == h && e.Minute == m && e.Second == sec {
			s.execute(e)
			s.mu.Lock()
			s.lastRun = nowStr
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) execute(e Event) {
	s.log.With(logger.Fields{"time": formatTime(e)}).Info("executing scheduled event")

	if e.Blackout {
		if err := s.state.Blackout(); err != nil {
			s.log.With(logger.Fields{"error": err}).Error("schedule blackout failed")
		}
		return
	}

	for target, values := range e.Set {
		group, light := parseTarget(target)
		if light == "" {
			if err := s.state.SetGroup(group, values); err != nil {
				s.log.With(logger.Fields{"target": target, "error": err}).Error("schedule set group failed")
			}
		} else {
			if err := s.state.SetLight(group, light, values); err != nil {
				s.log.With(logger.Fields{"target": target, "error": err}).Error("schedule set light failed")
			}
		}
	}
}

// NextEventInfo describes the next event to fire, wrapping to tomorrow's
// first event once every event today has passed.
type NextEventInfo struct {
	Time     string        `json:"time"`
	In       time.Duration `json:"in"`
	InStr    string        `json:"in_str"`
	Blackout bool          `json:"blackout"`
	Targets  []string      `json:"targets,omitempty"`
}

// EventInfo describes one configured schedule event.
type EventInfo struct {
	Time     string   `json:"time"`
	Blackout bool     `json:"blackout"`
	Targets  []string `json:"targets,omitempty"`
}

// NextEvent returns the next event to fire, or nil if none are
// configured.
func (s *Scheduler) NextEvent() *NextEventInfo {
	if len(s.events) == 0 {
		return nil
	}

	now := time.Now().In(s.location)
	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()

	for _, e := range s.events {
		if eSec := timeToSeconds(e); eSec > nowSec {
			in := time.Duration(eSec-nowSec) * time.Second
			return &NextEventInfo{
				Time:     formatTime(e),
				In:       in,
				InStr:    in.String(),
				Blackout: e.Blackout,
				Targets:  targetList(e.Set),
			}
		}
	}

	e := s.events[0]
	in := time.Duration((24*3600-nowSec)+timeToSeconds(e)) * time.Second
	return &NextEventInfo{
		Time:     formatTime(e),
		In:       in,
		InStr:    in.String(),
		Blackout: e.Blackout,
		Targets:  targetList(e.Set),
	}
}

// Events returns every configured event, in time-of-day order.
func (s *Scheduler) Events() []EventInfo {
	result := make([]EventInfo, len(s.events))
	for i, e := range s.events {
		result[i] = EventInfo{
			Time:     formatTime(e),
			Blackout: e.Blackout,
			Targets:  targetList(e.Set),
		}
	}
	return result
}

func parseTime(s string) (Event, error) {
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return Event{}, err
		}
	}
	return Event{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func formatTime(e Event) string {
	return time.Date(0, 1, 1, e.Hour, e.Minute, e.Second, 0, time.UTC).Format("15:04:05")
}

func timeToSeconds(e Event) int {
	return e.Hour*3600 + e.Minute*60 + e.Second
}

func parseTarget(target string) (group, light string) {
	parts := strings.SplitN(target, "/", 2)
	group = parts[0]
	if len(parts) == 2 {
		light = parts[1]
	}
	return
}

func targetList(set map[string]map[string]uint8) []string {
	targets := make([]string, 0, len(set))
	for t := range set {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

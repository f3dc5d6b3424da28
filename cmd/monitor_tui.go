// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/radarstat/internal/bridge"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	ctx    context.Context
	bridge *bridge.Bridge

	connInfo  string
	connected bool

	// Snapshots refreshed from the bridge state
	live     r60afd1.LiveSnapshot
	settings r60afd1.SettingsSnapshot
	product  r60afd1.ProductSnapshot
	stats    r60afd1.Counters

	eventLog      []logEntry
	maxLogEntries int
	showFrames    bool

	// Settings delta input
	deltaInput textinput.Model
	editing    bool
	applying   bool

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorBatchMsg []monitorEvent

type deltaResultMsg struct {
	delta  string
	result r60afd1.Result
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(ctx context.Context, b *bridge.Bridge, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = `{"fall_duration": 30}`
	ti.CharLimit = 512
	ti.Width = 60
	ti.Prompt = "delta> "

	m := monitorModel{
		ctx:           ctx,
		bridge:        b,
		connInfo:      connInfo,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		deltaInput:    ti,
		width:         80,
		height:        24,
	}
	m.refresh()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.refresh()
		return m, monitorTickCmd()

	case monitorBatchMsg:
		for _, ev := range msg {
			m.processEvent(ev)
		}
		m.refresh()

	case deltaResultMsg:
		m.applying = false
		m.logResult(msg)
		m.refresh()
	}

	if m.editing {
		var cmd tea.Cmd
		m.deltaInput, cmd = m.deltaInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			m.editing = false
			m.deltaInput.Blur()
			m.deltaInput.Reset()
			return m, nil
		case "enter":
			delta := strings.TrimSpace(m.deltaInput.Value())
			m.editing = false
			m.deltaInput.Blur()
			m.deltaInput.Reset()
			if delta == "" {
				return m, nil
			}
			if !m.connected {
				m.addLogEntry("Cannot apply settings: not connected", true)
				return m, nil
			}
			m.applying = true
			m.addLogEntry("Applying "+delta, false)
			return m, applyDeltaCmd(m.ctx, m.bridge.Reconciler(), delta)
		}
		var cmd tea.Cmd
		m.deltaInput, cmd = m.deltaInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "s":
		if m.applying {
			m.addLogEntry("A settings batch is still being applied", true)
			return m, nil
		}
		m.editing = true
		return m, m.deltaInput.Focus()
	case "f":
		m.showFrames = !m.showFrames
		if m.showFrames {
			m.addLogEntry("Logging every frame", false)
		} else {
			m.addLogEntry("Logging alarms and unknown frames only", false)
		}
	}
	return m, nil
}

func applyDeltaCmd(ctx context.Context, r *r60afd1.Reconciler, delta string) tea.Cmd {
	return func() tea.Msg {
		result, err := r.ApplyJSON(ctx, []byte(delta))
		return deltaResultMsg{delta: delta, result: result, err: err}
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) refresh() {
	state := m.bridge.State()
	m.live = state.LiveSnapshot()
	m.settings = state.SettingsSnapshot()
	m.product = state.ProductSnapshot()
	m.stats = m.bridge.Statistics()
}

func (m *monitorModel) processEvent(ev monitorEvent) {
	switch {
	case ev.up != "":
		m.connected = true
		m.connInfo = ev.up
		m.addLogEntryAt(ev.at, "Connected: "+ev.up, false)

	case ev.down != nil:
		m.connected = false
		m.addLogEntryAt(ev.at, fmt.Sprintf("Connection lost (%v) - reconnecting...", ev.down), true)

	case ev.frame != nil:
		name := r60afd1.FrameName(ev.frame)
		value := r60afd1.FormatValue(ev.frame)
		switch {
		case name == "UNKNOWN":
			m.addLogEntryAt(ev.at, fmt.Sprintf("Unknown frame 0x%02X/0x%02X payload=% X",
				ev.frame.Control(), ev.frame.Command(), ev.frame.Payload()), true)
		case name == "FALL_ALARM" || name == "STAY_STILL_ALARM":
			isAlarm := ev.frame.Length() > 0 && ev.frame.Payload()[0] == 1
			m.addLogEntryAt(ev.at, fmt.Sprintf("%s %s", name, value), isAlarm)
		case m.showFrames:
			m.addLogEntryAt(ev.at, strings.TrimSpace(fmt.Sprintf("%s %s", name, value)), false)
		}
	}
}

func (m *monitorModel) logResult(msg deltaResultMsg) {
	if msg.err != nil {
		m.addLogEntry(fmt.Sprintf("Settings not applied: %v", msg.err), true)
		return
	}
	r := msg.result
	for _, key := range r.Applied {
		if v, ok := r.Clamped[key]; ok {
			m.addLogEntry(fmt.Sprintf("%s applied (clamped to %s)", key, v), false)
		} else {
			m.addLogEntry(key+" applied", false)
		}
	}
	for key, err := range r.Failed {
		m.addLogEntry(fmt.Sprintf("%s failed: %v", key, err), true)
	}
	for _, key := range r.Ignored {
		m.addLogEntry(key+" ignored", true)
	}
	if r.Restarting {
		m.addLogEntry("Device identity stored; restart to use it", false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.addLogEntryAt(time.Now(), message, isError)
}

func (m *monitorModel) addLogEntryAt(at time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{timestamp: at, message: message, isError: isError})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

type monitorStyles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	box     lipgloss.Style
}

func newMonitorStyles() monitorStyles {
	return monitorStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := newMonitorStyles()

	var s strings.Builder
	s.WriteString(st.title.Render("RADARSTAT - " + r60afd1.DeviceType + " MONITOR"))
	s.WriteString("\n")

	status := st.value.Render("connected")
	if !m.connected {
		status = st.warning.Render("connecting...")
	}
	s.WriteString(st.header.Render(fmt.Sprintf("Device: %s | Connection: %s | ", m.live.DeviceID, m.connInfo)))
	s.WriteString(status)
	s.WriteString(st.header.Render(" | 's' settings, 'f' frames, 'q' quit"))
	s.WriteString("\n\n")

	panelWidth := (m.width - 6) / 3
	if panelWidth < 28 {
		panelWidth = 28
	}
	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		st.box.Width(panelWidth).Render(m.renderLive(st)),
		st.box.Width(panelWidth).Render(m.renderSettings(st)),
		st.box.Width(panelWidth).Render(m.renderProduct(st)),
	)
	s.WriteString(panels)
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar(st))
	s.WriteString("\n")

	if m.editing {
		s.WriteString(st.box.Width(m.width - 4).Render(m.deltaInput.View()))
		s.WriteString("\n")
	} else if m.applying {
		s.WriteString(st.warning.Render("Applying settings..."))
		s.WriteString("\n")
	}

	s.WriteString(m.renderEventLog(st))
	return s.String()
}

func row(st monitorStyles, label, value string) string {
	return fmt.Sprintf("%s %s\n", st.label.Render(label), st.value.Render(value))
}

func alarmRow(st monitorStyles, label string, on bool) string {
	if on {
		return fmt.Sprintf("%s %s\n", st.label.Render(label), st.err.Render("ALARM"))
	}
	return row(st, label, "clear")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (m monitorModel) renderLive(st monitorStyles) string {
	l := m.live
	var c strings.Builder
	c.WriteString(st.label.Render("LIVE"))
	c.WriteString("\n")
	c.WriteString(row(st, "Presence:", yesNo(l.Presence)))
	c.WriteString(alarmRow(st, "Fall:", l.FallAlarm))
	c.WriteString(alarmRow(st, "Stay still:", l.StayStillAlarm))
	c.WriteString(row(st, "Movement:", r60afd1.FormatMovementState(l.MovementState)))
	c.WriteString(row(st, "Body movement:", fmt.Sprintf("%d", l.BodyMovement)))
	c.WriteString(row(st, "Trajectory:", fmt.Sprintf("x=%d y=%d", l.TrajectoryX, l.TrajectoryY)))
	c.WriteString(row(st, "Height count:", fmt.Sprintf("%d", l.TotalHeightCount)))
	c.WriteString(row(st, "Height %:", fmt.Sprintf("%d/%d/%d/%d",
		l.HeightProp0To05, l.HeightProp05To1, l.HeightProp1To15, l.HeightProp15To2)))
	c.WriteString(row(st, "Non-presence:", r60afd1.FormatSeconds(l.NonPresenceTime)))
	c.WriteString(row(st, "Heartbeat:", fmt.Sprintf("%d", l.Heartbeat)))
	c.WriteString(row(st, "Status:", fmt.Sprintf("%d", l.WorkingStatus)))
	c.WriteString(row(st, "Scenario:", fmt.Sprintf("%d", l.Scenario)))
	return c.String()
}

func (m monitorModel) renderSettings(st monitorStyles) string {
	s := m.settings
	var c strings.Builder
	c.WriteString(st.label.Render("SETTINGS"))
	c.WriteString("\n")
	c.WriteString(row(st, "Angles:", fmt.Sprintf("%d/%d/%d", s.InstallationAngleX, s.InstallationAngleY, s.InstallationAngleZ)))
	c.WriteString(row(st, "Height:", fmt.Sprintf("%d cm", s.InstallationHeight)))
	c.WriteString(row(st, "Fall detection:", onOff(s.FallDetectionSwitch)))
	c.WriteString(row(st, "Sensitivity:", fmt.Sprintf("%d", s.FallDetectionSensitivity)))
	c.WriteString(row(st, "Fall duration:", fmt.Sprintf("%d s", s.FallDuration)))
	c.WriteString(row(st, "Breaking height:", fmt.Sprintf("%d cm", s.FallBreakingHeight)))
	c.WriteString(row(st, "Still distance:", fmt.Sprintf("%d cm", s.SittingStillDistance)))
	c.WriteString(row(st, "Moving distance:", fmt.Sprintf("%d cm", s.MovingDistance)))
	c.WriteString(row(st, "Stay still:", onOff(s.StayStillSwitch)))
	c.WriteString(row(st, "Still duration:", fmt.Sprintf("%d s", s.StayStillDuration)))
	c.WriteString(row(st, "Height accum.:", fmt.Sprintf("%d s", s.HeightAccumulationTime)))
	c.WriteString(row(st, "Non-presence:", fmt.Sprintf("%d s", s.NonPresenceTime)))
	return c.String()
}

func (m monitorModel) renderProduct(st monitorStyles) string {
	p := m.product
	unknown := func(v string) string {
		if v == "" {
			return "-"
		}
		return v
	}
	var c strings.Builder
	c.WriteString(st.label.Render("PRODUCT"))
	c.WriteString("\n")
	c.WriteString(row(st, "Model:", unknown(p.ProductModel)))
	c.WriteString(row(st, "ID:", unknown(p.ProductID)))
	c.WriteString(row(st, "Hardware:", unknown(p.HardwareModel)))
	c.WriteString(row(st, "Firmware:", unknown(p.FirmwareVersion)))
	c.WriteString(row(st, "Operating:", r60afd1.FormatSeconds(p.OperatingTime)))
	return c.String()
}

func (m monitorModel) renderStatisticsBar(st monitorStyles) string {
	c := m.stats
	var validPercent float64
	if c.TotalFrames > 0 {
		validPercent = float64(c.ValidFrames) * 100.0 / float64(c.TotalFrames)
	}

	errors := st.value.Render("0")
	if n := c.Errors(); n > 0 {
		errors = st.err.Render(fmt.Sprintf("%d", n))
	}
	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		st.label.Render("Total:"), st.value.Render(fmt.Sprintf("%d", c.TotalFrames)),
		st.label.Render("Valid:"), st.value.Render(fmt.Sprintf("%.1f%%", validPercent)),
		st.label.Render("Errors:"), errors,
		st.label.Render("Unknown:"), st.value.Render(fmt.Sprintf("%d", c.UnknownFrames)),
		st.label.Render("Skipped:"), st.value.Render(fmt.Sprintf("%d B", c.SkippedBytes)),
		st.label.Render("Rate:"), st.value.Render(fmt.Sprintf("%.1f fr/s", c.FrameRate)),
	)
	return st.box.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog(st monitorStyles) string {
	var s strings.Builder
	s.WriteString(st.label.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := m.height - 28
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(st.header.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := st.warning
			if entry.isError {
				icon = "x"
				style = st.err
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				st.header.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return st.box.Width(m.width - 4).Render(s.String())
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/openbeamline/motord/pkg/motorrec"
	"github.com/openbeamline/motord/pkg/pvwire"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	discoveryTimeoutSeconds = 3 // Discovery ends N seconds after last record seen
	pingIntervalSeconds     = 5 // Send ping requests every N seconds
)

// Focus states
const (
	focusRecordList = iota
	focusValInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// recordItem is one discovered positioner record.
type recordItem struct {
	knownRecord
	lastSeen time.Time
}

// Implement list.Item interface
func (r recordItem) Title() string { return r.name }
func (r recordItem) Description() string {
	if r.description != "" {
		return r.description
	}
	return fmt.Sprintf("0x%016X", r.address)
}
func (r recordItem) FilterValue() string { return r.name }

// fieldSample is the last monitored value of one field.
type fieldSample struct {
	value     float64
	precision int64
	at        time.Time
}

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	// Connection manager (for sending requests and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Record tracking
	records    []recordItem
	recordList list.Model

	// Discovery state
	discoveryDone    bool
	lastRecordSeen   time.Time
	discoveryRecords map[uint64]*recordItem

	// Monitoring
	stats         *pvwire.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	fields        map[uint64]map[string]fieldSample // per record address

	// Subscription state
	subscribedAddr uint64
	hasSub         bool

	// Control
	valInput     textinput.Model
	focusedField int

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool

	// Ping state
	lastPingTime    time.Time
	serverUptime    uint64 // milliseconds, from stateless ping responses
	hasServerUptime bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorDataMsg struct {
	packet    *pvwire.Packet
	decodeErr error
}

type monitorSyncMsg struct {
	invalidBytes int
}

type monitorBatchMsg struct {
	messages []monitorDataMsg
	syncMsg  *monitorSyncMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connMgr *connectionManager, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "0.0"
	ti.CharLimit = 16
	ti.Width = 12

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	recordList := list.New([]list.Item{}, delegate, 30, 10)
	recordList.Title = "Records"
	recordList.SetShowStatusBar(false)
	recordList.SetShowHelp(false)
	recordList.SetFilteringEnabled(false)

	return monitorModel{
		connMgr:          connMgr,
		connInfo:         connInfo,
		records:          make([]recordItem, 0),
		recordList:       recordList,
		discoveryRecords: make(map[uint64]*recordItem),
		stats:            pvwire.NewStatistics(),
		eventLog:         make([]eventLogEntry, 0),
		maxLogEntries:    100,
		fields:           make(map[uint64]map[string]fieldSample),
		valInput:         ti,
		focusedField:     focusRecordList,
		width:            80,
		height:           24,
	}
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
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case monitorTickMsg:
		m.stats.CalculateRates()
		// Check discovery timeout
		if !m.discoveryDone && !m.lastRecordSeen.IsZero() {
			if time.Since(m.lastRecordSeen) > time.Duration(discoveryTimeoutSeconds)*time.Second {
				m.finishDiscovery()
			}
		}
		// Periodic stateless ping keeps the link verified and fetches
		// the server uptime.
		if m.discoveryDone && time.Since(m.lastPingTime) >= time.Duration(pingIntervalSeconds)*time.Second {
			m.lastPingTime = time.Now()
			m.connMgr.sendPacket(pvwire.NewPingRequest(pvwire.AddressStateless))
		}
		return m, monitorTickCmd()

	case monitorBatchMsg:
		if msg.syncMsg != nil {
			m.synchronized = true
			if msg.syncMsg.invalidBytes > 0 {
				m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.syncMsg.invalidBytes), false)
			} else {
				m.addLogEntry("Synchronized", false)
			}
		}
		for _, data := range msg.messages {
			m.processMonitorData(data)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		// New connection means new session state; rediscover and
		// resubscribe from scratch
		m.resetDiscovery()
		m.addLogEntry("Reconnected - starting discovery", false)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusValInput {
		m.valInput, cmd = m.valInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusRecordList {
		m.recordList, cmd = m.recordList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.focusedField == focusValInput && msg.String() == "q" {
			break // let the input take the character
		}
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		return m.toggleFocus(), nil

	case "enter":
		if m.discoveryDone {
			return m.handleEnter()
		}

	case "up", "k", "down", "j":
		if m.focusedField == focusRecordList {
			m.recordList, _ = m.recordList.Update(msg)
			return m, nil
		}
	}

	// Pass through to focused component
	if m.focusedField == focusValInput {
		var cmd tea.Cmd
		m.valInput, cmd = m.valInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *monitorModel) toggleFocus() *monitorModel {
	if !m.discoveryDone || len(m.records) == 0 {
		m.focusedField = focusRecordList
		return m
	}

	if m.focusedField == focusRecordList {
		m.focusedField = focusValInput
		m.valInput.Focus()
	} else {
		m.focusedField = focusRecordList
		m.valInput.Blur()
	}
	return m
}

func (m *monitorModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.connectionLost {
		m.addLogEntry("Cannot send request: connection lost", true)
		return m, nil
	}

	selected := m.getSelectedRecord()
	if selected == nil {
		return m, nil
	}

	switch m.focusedField {
	case focusRecordList:
		m.switchSubscription(selected.address)
	case focusValInput:
		return m.sendDesiredValue(selected)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	helpText := "q=quit"
	if m.discoveryDone {
		helpText = "q=quit Tab=switch Enter=select/write"
	}
	s.WriteString(titleStyle.Render("MOTORD MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", connStatus, helpText)))
	s.WriteString("\n")

	if m.hasServerUptime {
		s.WriteString(fmt.Sprintf(" %s %s",
			labelStyle.Render("Server Uptime:"),
			valueStyle.Render(formatUptime(m.serverUptime))))
	}
	s.WriteString("\n\n")

	if !m.discoveryDone {
		s.WriteString(warningStyle.Render("Discovering records..."))
		s.WriteString("\n")
		s.WriteString(fmt.Sprintf("Found: %d record(s)\n\n", len(m.discoveryRecords)))
		s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))
		return s.String()
	}

	// Layout: left panel (records) | right panel (fields)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusRecordList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	recordPanel := listStyle.Render(m.recordList.View())

	fieldContent := m.renderFieldPanel(labelStyle, valueStyle, warningStyle, headerStyle, focusedBoxStyle)
	fieldPanel := boxStyle.Width(rightWidth).Render(fieldContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, recordPanel, " ", fieldPanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderFieldPanel(labelStyle, valueStyle, warningStyle, headerStyle, focusedBoxStyle lipgloss.Style) string {
	var s strings.Builder

	selected := m.getSelectedRecord()
	if selected == nil {
		s.WriteString(headerStyle.Render("No record selected"))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s (0x%016X)\n", labelStyle.Render("Record:"), selected.name, selected.address))
	if selected.egu != "" {
		s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Units:"), valueStyle.Render(selected.egu)))
	}
	s.WriteString("\n")

	samples := m.fields[selected.address]
	if !m.hasSub || m.subscribedAddr != selected.address {
		s.WriteString(warningStyle.Render("Not subscribed - press Enter on the record to subscribe"))
		s.WriteString("\n\n")
	} else if len(samples) == 0 {
		s.WriteString(headerStyle.Render("Waiting for monitor events..."))
		s.WriteString("\n\n")
	} else {
		// Fixed field order, four columns per row
		col := 0
		for _, f := range motorrec.Fields() {
			sample, ok := samples[f.String()]
			if !ok {
				continue
			}
			s.WriteString(fmt.Sprintf("%s %s  ",
				labelStyle.Render(fmt.Sprintf("%-5s", f.String())),
				valueStyle.Render(fmt.Sprintf("%10.*f", int(sample.precision), sample.value))))
			col++
			if col%4 == 0 {
				s.WriteString("\n")
			}
		}
		if col%4 != 0 {
			s.WriteString("\n")
		}

		if moving, ok := samples["MOVN"]; ok && moving.value != 0 {
			s.WriteString(warningStyle.Render("MOVING"))
		}
		s.WriteString("\n")
	}

	// Desired-position input
	s.WriteString(labelStyle.Render("New VAL: "))
	if m.focusedField == focusValInput {
		s.WriteString(m.valInput.View())
	} else {
		val := m.valInput.Value()
		if val == "" {
			val = m.valInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}

	return s.String()
}

func (m monitorModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalPackets > 0 {
		validPercent = float64(m.stats.ValidPackets) * 100.0 / float64(m.stats.TotalPackets)
		totalErrors := m.stats.CRCErrors + m.stats.DecodeErrors + m.stats.ParseErrors + m.stats.Rejects
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalPackets)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalPackets)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return valueStyle.Render("0.0%")
		}(),
		labelStyle.Render("Events:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.MonitorEvents)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkt/s", m.stats.PacketRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processMonitorData(msg monitorDataMsg) {
	if msg.decodeErr != nil {
		if m.synchronized {
			m.stats.Update(nil, msg.decodeErr)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		}
		return
	}

	if msg.packet == nil {
		return
	}

	m.stats.Update(msg.packet, nil)

	address := msg.packet.Address()

	switch msg.packet.Type() {
	case pvwire.MsgRecordAnnounce:
		m.handleRecordAnnounce(msg.packet)

	case pvwire.MsgMonitorEvent, pvwire.MsgReadResponse:
		// Read responses prime the field display; monitor events keep it live
		m.handleMonitorEvent(msg.packet, address)

	case pvwire.MsgWriteResponse:
		payload := msg.packet.PayloadMap()
		field, _ := pvwire.GetMapString(payload, pvwire.KeyField)
		if reason, rejected := pvwire.GetMapString(payload, pvwire.KeyError); rejected {
			m.addLogEntry(fmt.Sprintf("Write %s rejected: %s", field, reason), true)
		} else {
			value, _ := pvwire.GetMapFloat(payload, pvwire.KeyValue)
			m.addLogEntry(fmt.Sprintf("Write accepted: %s = %g", field, value), false)
		}

	case pvwire.MsgErrorReject:
		m.addLogEntry(rejectError(msg.packet).Error(), true)

	case pvwire.MsgPingResponse:
		if address == pvwire.AddressStateless {
			uptime, ok := pvwire.GetMapUint(msg.packet.PayloadMap(), 0)
			if ok {
				m.serverUptime = uptime
				m.hasServerUptime = true
			}
		}
	}
}

func (m *monitorModel) handleRecordAnnounce(packet *pvwire.Packet) {
	address := packet.Address()

	// End-of-discovery marker: stateless address
	if address == pvwire.AddressStateless {
		if !m.discoveryDone {
			m.finishDiscovery()
		}
		return
	}

	if _, exists := m.discoveryRecords[address]; !exists {
		payload := packet.PayloadMap()
		name, _ := pvwire.GetMapString(payload, pvwire.KeyName)
		egu, _ := pvwire.GetMapString(payload, pvwire.KeyEGU)
		prec, _ := pvwire.GetMapInt(payload, pvwire.KeyPrec)
		desc, _ := pvwire.GetMapString(payload, pvwire.KeyDescription)
		m.discoveryRecords[address] = &recordItem{
			knownRecord: knownRecord{
				address:     address,
				name:        name,
				egu:         egu,
				precision:   prec,
				description: desc,
			},
			lastSeen: time.Now(),
		}
		m.addLogEntry(fmt.Sprintf("Record discovered: %s (0x%016X)", name, address), false)
	}
	m.lastRecordSeen = time.Now()
}

func (m *monitorModel) handleMonitorEvent(packet *pvwire.Packet, address uint64) {
	payload := packet.PayloadMap()
	field, ok := pvwire.GetMapString(payload, pvwire.KeyField)
	if !ok {
		return
	}
	value, _ := pvwire.GetMapFloat(payload, pvwire.KeyValue)
	precision, _ := pvwire.GetMapInt(payload, pvwire.KeyPrecision)

	if m.fields[address] == nil {
		m.fields[address] = make(map[string]fieldSample)
	}
	prev, had := m.fields[address][field]
	m.fields[address][field] = fieldSample{value: value, precision: precision, at: time.Now()}

	// Log motion start/stop transitions
	if field == "MOVN" && (!had || prev.value != value) {
		if value != 0 {
			m.addLogEntry(fmt.Sprintf("0x%016X: move started", address), false)
		} else if had {
			m.addLogEntry(fmt.Sprintf("0x%016X: move done", address), false)
		}
	}
}

//////////////////////////////////////////////////////////////
// Requests
//////////////////////////////////////////////////////////////

func (m *monitorModel) switchSubscription(address uint64) {
	if m.hasSub && m.subscribedAddr == address {
		return
	}

	if m.hasSub {
		m.connMgr.sendPacket(pvwire.NewMonitorCancel(m.subscribedAddr))
	}

	// Empty field filter subscribes to every field of the record
	if err := m.connMgr.sendPacket(pvwire.NewMonitorRequest(address, "")); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to subscribe to 0x%016X: %v", address, err), true)
		return
	}
	m.subscribedAddr = address
	m.hasSub = true
	m.addLogEntry(fmt.Sprintf("Subscribed to 0x%016X", address), false)

	// Prime the display; monitor events only arrive on changes
	for _, f := range []string{"VAL", "RBV", "DVAL", "DRBV", "HLM", "LLM", "MOVN", "DMOV", "STAT"} {
		m.connMgr.sendPacket(pvwire.NewReadRequest(address, f))
	}
}

func (m *monitorModel) sendDesiredValue(selected *recordItem) (tea.Model, tea.Cmd) {
	valStr := m.valInput.Value()
	if valStr == "" {
		return m, nil
	}

	value, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid position value: %s", valStr), true)
		return m, nil
	}

	if err := m.connMgr.sendPacket(pvwire.NewWriteRequest(selected.address, "VAL", value)); err != nil {
		m.addLogEntry(fmt.Sprintf("Failed to send write: %v", err), true)
		return m, nil
	}

	m.addLogEntry(fmt.Sprintf("Sent VAL = %g to %s", value, selected.name), false)
	return m, nil
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *monitorModel) getSelectedRecord() *recordItem {
	if len(m.records) == 0 {
		return nil
	}

	idx := m.recordList.Index()
	if idx < 0 || idx >= len(m.records) {
		return nil
	}

	return &m.records[idx]
}

func (m *monitorModel) finishDiscovery() {
	if m.discoveryDone {
		return
	}

	m.discoveryDone = true

	m.records = make([]recordItem, 0, len(m.discoveryRecords))
	for _, rec := range m.discoveryRecords {
		m.records = append(m.records, *rec)
	}

	m.updateRecordList()

	m.addLogEntry(fmt.Sprintf("Discovery complete: %d record(s)", len(m.records)), false)

	// Subscribe to the initially selected record
	if selected := m.getSelectedRecord(); selected != nil {
		m.switchSubscription(selected.address)
	}
}

func (m *monitorModel) resetDiscovery() {
	m.discoveryDone = false
	m.discoveryRecords = make(map[uint64]*recordItem)
	m.records = make([]recordItem, 0)
	m.lastRecordSeen = time.Time{}
	m.fields = make(map[uint64]map[string]fieldSample)
	m.synchronized = false
	m.hasSub = false
	m.updateRecordList()
}

func (m *monitorModel) updateRecordList() {
	items := make([]list.Item, len(m.records))
	for i, r := range m.records {
		items[i] = r
	}
	m.recordList.SetItems(items)
}

func (m *monitorModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.recordList.SetSize(28, listHeight)
}

// formatUptime formats uptime in milliseconds to a human-friendly string
func formatUptime(ms uint64) string {
	if ms == 0 {
		return "0 seconds"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/openbeamline/motord/pkg/pvwire"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and driving positioners",
	Long: `Monitor positioner records via an interactive terminal UI.

The TUI discovers records first, then subscribes to field monitors of the
selected record. Every field of the record is shown live, with a text
input for commanding a new desired position (VAL).

Features:
  - Record discovery (RECORD_ANNOUNCE)
  - Live field display via monitor subscriptions
  - Desired-position writes
  - Packet statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Tab switches between the record list and the position input. Arrow keys
navigate the record list; Enter on a record switches the subscription.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	done     chan struct{}
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// sendPacket encodes and writes one packet on the current connection.
func (cm *connectionManager) sendPacket(p *pvwire.Packet) error {
	conn := cm.getConn()
	if conn == nil {
		return ErrConnectionClosed
	}
	wire, err := pvwire.NewEncoder().Encode(p)
	if err != nil {
		return err
	}
	_, err = conn.Write(wire)
	return err
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := openConnection()
	if err != nil {
		return err
	}

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		done:     make(chan struct{}),
	}

	m := initialMonitorModel(cm, connInfo)

	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	go cm.readerLoop()

	// Kick off discovery before the TUI starts drawing
	cm.sendPacket(pvwire.NewDiscoveryRequest())

	if _, err := p.Run(); err != nil {
		close(cm.done)
		cm.getConn().Close()
		return fmt.Errorf("TUI error: %v", err)
	}

	close(cm.done)
	cm.getConn().Close()
	return nil
}

// readerLoop handles reading from the connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		select {
		case <-cm.done:
			return
		default:
		}

		connLost := cm.readFromConnection()

		if connLost {
			cm.p.Send(connectionLostMsg{})

			if !cm.reconnect() {
				return
			}
		}
	}
}

// readFromConnection reads packets from the connection until it fails.
// Returns true if the connection was lost, false if shutdown was requested.
func (cm *connectionManager) readFromConnection() bool {
	decoder := pvwire.NewDecoder()
	synchronized := false
	invalidBytesBeforeSync := 0

	batchChan := make(chan monitorDataMsg, 100)
	syncChan := make(chan monitorSyncMsg, 1)
	readerDone := make(chan struct{})

	// Reader goroutine, decodes packets and queues them for batching
	go func() {
		defer close(readerDone)
		buf := make([]byte, 128)
		for {
			select {
			case <-cm.done:
				return
			default:
			}

			conn := cm.getConn()
			if conn == nil {
				return
			}

			n, err := conn.Read(buf)
			if err != nil {
				select {
				case <-cm.done:
					return
				default:
					if err == ErrConnectionClosed {
						return
					}
					// Transient serial error, retry shortly
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}

			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])

				if decodeErr != nil {
					if synchronized {
						select {
						case batchChan <- monitorDataMsg{decodeErr: decodeErr}:
						default:
						}
					} else {
						invalidBytesBeforeSync++
					}
				} else if packet != nil {
					if !synchronized {
						synchronized = true
						select {
						case syncChan <- monitorSyncMsg{invalidBytes: invalidBytesBeforeSync}:
						default:
						}
					}

					select {
					case batchChan <- monitorDataMsg{packet: packet}:
					default:
					}
				}
			}
		}
	}()

	// Batch sender goroutine, flushes queued updates to the TUI at a fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.done:
				return
			case <-readerDone:
				return
			case <-ticker.C:
				var batch monitorBatchMsg

				select {
				case sync := <-syncChan:
					batch.syncMsg = &sync
				default:
				}

			drainLoop:
				for {
					select {
					case msg := <-batchChan:
						batch.messages = append(batch.messages, msg)
					default:
						break drainLoop
					}
				}

				if batch.syncMsg != nil || len(batch.messages) > 0 {
					cm.p.Send(batch)
				}
			}
		}
	}()

	<-readerDone

	select {
	case <-cm.done:
		return false
	default:
		return true
	}
}

// reconnect attempts to reconnect with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.done:
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := openConnection()
		if err == nil {
			cm.setConn(conn, connInfo)

			cm.p.Send(reconnectedMsg{connInfo: connInfo})

			cm.sendPacket(pvwire.NewDiscoveryRequest())

			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

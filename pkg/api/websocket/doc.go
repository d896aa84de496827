// Package websocket provides real-time event streaming via WebSocket.
//
// Clients connect to /api/v1/notebook/ws to receive every cell state change
// as a JSON event, in the order the orchestrator published them.
package websocket

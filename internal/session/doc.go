// Package session turns a room of symmetric peers into one client/server
// connection.
//
// A Session is either the server of a room (Listen) or a client of it
// (Connect). The server is the one peer that published the server role tag;
// clients discover it from the room's peer set, or from the first message it
// sends if that arrives before the join confirmation.
//
// Delivery guarantees are those of the underlying room. Sends are
// fire-and-forget: OnDataSent fires once the room resolved a send, in no
// particular order relative to other sends, with no retry and no
// backpressure signal. Sends in flight when a session ends are best effort.
//
// Directory calls and Handler callbacks never overlap: they run in the order
// the session queued them, so the LeaveGroup of a Stop reaches the directory
// before the JoinGroup of a following Connect.
package session

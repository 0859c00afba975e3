// Package tcp provides a framed request/response client over a plain
// TCP socket.
//
// Peers exchange payloads wrapped in head/tail markers by the packet
// codec. Send frames and writes one payload; Read polls the socket
// with a short deadline, reassembles frames across arbitrary TCP
// segmentation, and hands back one complete payload per call. A Read
// that finds no complete frame within the poll window returns nil
// without error, so callers can poll from their own loop without
// blocking.
package tcp

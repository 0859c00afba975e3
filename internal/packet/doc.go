// Package packet implements the framing codec used by stream transports.
//
// TCP and Serial deliver arbitrary byte chunking with no message
// boundaries, so each payload is wrapped between a head marker and a tail
// marker before transmission. On receive, a buffer that may hold zero,
// one, or several concatenated frames is split back into individual
// frames and unwrapped.
//
// Broker-backed transports (MQTT) already provide message boundaries and
// do not use this codec.
//
// The codec is stateless: Codec is a value type holding only the two
// marker byte sequences, and every method is a pure function of its
// inputs. Default markers are the ASCII STX (0x02) and ETX (0x03)
// control bytes.
package packet

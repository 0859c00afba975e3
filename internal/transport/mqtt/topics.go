package mqtt

import "fmt"

// Topic prefixes for the transport's own housekeeping topics.
const (
	// TopicPrefix is the base for all commlink topics.
	TopicPrefix = "commlink"

	// TopicPrefixStatus is the base for client presence topics.
	TopicPrefixStatus = "commlink/status"
)

// Topics provides builders for the transport's housekeeping topics.
// Using these helpers keeps status and will topics consistent between
// the online publish, the graceful offline publish, and the LWT.
type Topics struct{}

// Status returns the presence topic for one client.
//
// Example: commlink/status/commlink-3fa85f64
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixStatus, clientID)
}

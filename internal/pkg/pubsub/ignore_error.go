package pubsub

import "fmt"

// MessageIgnoreError tells the consumer to neither ACK nor NACK, so the message
// comes back after the ack deadline.
type MessageIgnoreError struct {
	Err error
}

func (e *MessageIgnoreError) Error() string {
	return fmt.Sprintf("message ignored for redelivery: %v", e.Err)
}

func (e *MessageIgnoreError) Unwrap() error {
	return e.Err
}

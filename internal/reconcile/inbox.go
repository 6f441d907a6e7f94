package reconcile

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/arlobright/signalbox/internal/messaging"
	"github.com/arlobright/signalbox/internal/models"
)

// MessageHandler processes one delivered message. Returning an error
// marks the delivery failed with the error text; the cursor still
// advances so one poison message cannot wedge the listener.
type MessageHandler func(msg *models.Message) error

// NewInboxCycle returns a recipient listener's cycle: drain everything
// past the persisted cursor, mark each message received, hand it to the
// handler, and advance the cursor. Poll and push are two views over the
// same log, so running this cycle on startup, after reconnects, and on
// events gives at-most-once processing per message without relying on
// the lossy push path.
func NewInboxCycle(msgLog *messaging.Log, agent string, handler MessageHandler, out io.Writer) func(context.Context) error {
	return func(ctx context.Context) error {
		cursor, err := msgLog.Cursor(agent)
		if err != nil {
			return err
		}
		msgs, err := msgLog.ListPending(agent, cursor)
		if err != nil {
			return err
		}

		for i := range msgs {
			msg := &msgs[i]
			if err := msgLog.MarkReceived(msg.ID, agent); err != nil {
				return fmt.Errorf("reconcile: inbox %s: %w", agent, err)
			}
			if handler != nil {
				if herr := handler(msg); herr != nil {
					log.Printf("reconcile: inbox %s: message %d handler: %v", agent, msg.ID, herr)
					if ferr := msgLog.MarkFailed(msg.ID, agent, herr.Error()); ferr != nil {
						log.Printf("reconcile: inbox %s: mark failed %d: %v", agent, msg.ID, ferr)
					}
				}
			}
			if err := msgLog.SetCursor(agent, msg.ID); err != nil {
				return fmt.Errorf("reconcile: inbox %s: %w", agent, err)
			}
			if out != nil {
				fmt.Fprintf(out, "[%s] #%d from %s: %s\n", agent, msg.ID, msg.FromAgent, msg.Body)
			}
		}
		return nil
	}
}

package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// StepPrinterFunc returns a watermill handler that renders a streamed turn to w.
// Reasoning deltas are printed inside a marked thinking section, content deltas
// verbatim. The final event makes sure the output ends in a newline.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true
	inThinking := false
	sawDelta := false

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\nerror: %s\n", p_.ErrorString)
			if err != nil {
				return err
			}

		case *EventThinkingPartial:
			if !inThinking {
				inThinking = true
				if _, err := fmt.Fprintf(w, "\n--- Thinking ---\n"); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventPartialCompletion:
			if inThinking {
				inThinking = false
				if _, err := fmt.Fprintf(w, "\n--- Reply ---\n"); err != nil {
					return err
				}
			}
			if isFirst && name != "" {
				isFirst = false
				_, err = fmt.Fprintf(w, "\n%s: \n", name)
				if err != nil {
					return err
				}
			}
			sawDelta = true
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventFinal:
			// Non-streaming turns never produce deltas, print the full text here.
			if !sawDelta && p_.Text != "" {
				if _, err := fmt.Fprintf(w, "%s", p_.Text); err != nil {
					return err
				}
			}
			if !strings.HasSuffix(p_.Text, "\n") {
				_, err = fmt.Fprintf(w, "\n")
				if err != nil {
					return err
				}
			}
			sawDelta = false
			inThinking = false

		case *EventInterrupt:
			_, err = fmt.Fprintf(w, "\n[interrupted]\n")
			if err != nil {
				return err
			}
			sawDelta = false
			inThinking = false

		case *EventPartialCompletionStart:
		}

		return nil
	}
}

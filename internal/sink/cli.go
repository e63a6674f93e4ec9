package sink

import (
	"context"
	"fmt"
	"io"
	"os"

	"tradecast/internal/format"
	"tradecast/internal/interfaces"
	"tradecast/internal/types"
)

// CLISink writes narratives to a terminal, splitting long messages the
// same way a network publisher would so the output previews real
// segment boundaries.
type CLISink struct {
	sinkID string
	out    io.Writer
}

var _ interfaces.Sink = (*CLISink)(nil)

func NewCLISink(sinkID string) *CLISink {
	return &CLISink{sinkID: sinkID, out: os.Stdout}
}

// NewCLISinkWriter is the testing constructor.
func NewCLISinkWriter(sinkID string, out io.Writer) *CLISink {
	return &CLISink{sinkID: sinkID, out: out}
}

func (s *CLISink) SinkID() string { return s.sinkID }

func (s *CLISink) CanPublish(ctx context.Context) bool { return true }

func (s *CLISink) Publish(ctx context.Context, msg types.Message) error {
	segments := format.Split(msg)
	for _, seg := range segments {
		if _, err := fmt.Fprintf(s.out, "%s\n%s\n", seg.Timestamp.Format("2006-01-02 15:04:05"), seg.Content); err != nil {
			return fmt.Errorf("write segment: %w", err)
		}
		if _, err := fmt.Fprintln(s.out, "---"); err != nil {
			return fmt.Errorf("write separator: %w", err)
		}
	}
	return nil
}

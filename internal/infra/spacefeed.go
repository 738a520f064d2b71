package infra

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// feedLine is the helper's wire shape for one normalized event. The helper
// process owns the actual space-change transport; spacepal only consumes
// these lines.
type feedLine struct {
	Event  string                   `json:"event"`
	Space  *domain.SpaceDescriptor  `json:"space,omitempty"`
	Spaces []domain.SpaceDescriptor `json:"spaces,omitempty"`
}

// parseFeedLine decodes one helper line into a normalized event. ok is
// false for blank, malformed, or unknown lines - the feed skips those
// rather than failing.
func parseFeedLine(line []byte) (domain.SpaceEvent, bool) {
	var raw feedLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return domain.SpaceEvent{}, false
	}
	switch raw.Event {
	case "spaceChanged":
		if raw.Space == nil {
			return domain.SpaceEvent{}, false
		}
		return domain.SpaceEvent{Kind: domain.SpaceEventChanged, Space: *raw.Space}, true
	case "spaceList":
		return domain.SpaceEvent{Kind: domain.SpaceEventList, Spaces: raw.Spaces}, true
	default:
		return domain.SpaceEvent{}, false
	}
}

// HelperSpaceFeed implements domain.SpaceFeed by running the external
// space-observer helper and reading newline-delimited JSON events from its
// stdout. Refresh writes a command line to the helper's stdin.
type HelperSpaceFeed struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan domain.SpaceEvent
	logger *zap.Logger
}

// NewHelperSpaceFeed starts the helper and begins pumping its events.
func NewHelperSpaceFeed(helperPath string, args []string, logger *zap.Logger) (*HelperSpaceFeed, error) {
	cmd := exec.Command(helperPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open helper stdout: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open helper stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start space helper: %w", err)
	}

	f := &HelperSpaceFeed{
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan domain.SpaceEvent, 16),
		logger: logger,
	}
	go f.pump(stdout)
	return f, nil
}

func (f *HelperSpaceFeed) pump(stdout io.Reader) {
	defer close(f.events)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		event, ok := parseFeedLine(scanner.Bytes())
		if !ok {
			continue
		}
		f.events <- event
	}
	if err := scanner.Err(); err != nil && f.logger != nil {
		f.logger.Warn("space helper stream ended", zap.Error(err))
	}
}

// Events returns the normalized event stream.
func (f *HelperSpaceFeed) Events() <-chan domain.SpaceEvent {
	return f.events
}

// Refresh asks the helper to re-announce the space list and current space.
func (f *HelperSpaceFeed) Refresh() error {
	if _, err := io.WriteString(f.stdin, "refresh\n"); err != nil {
		return fmt.Errorf("failed to request refresh: %w", err)
	}
	return nil
}

// Close shuts the helper down and waits for it to exit.
func (f *HelperSpaceFeed) Close() error {
	_ = f.stdin.Close()
	if f.cmd.Process != nil {
		_ = f.cmd.Process.Kill()
	}
	return f.cmd.Wait()
}

// Ensure HelperSpaceFeed implements domain.SpaceFeed.
var _ domain.SpaceFeed = (*HelperSpaceFeed)(nil)

package session

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/KaramelBytes/plotdesk-cli/internal/groups"
	"github.com/KaramelBytes/plotdesk-cli/internal/logging"
	"github.com/KaramelBytes/plotdesk-cli/internal/render"
	"github.com/KaramelBytes/plotdesk-cli/internal/schema"
	"github.com/KaramelBytes/plotdesk-cli/internal/sheet"
)

// FailureMessage is the single user-facing message for any failed upload or
// render. Causes go to the log, never to the stored state.
const FailureMessage = "Analysis failed. Check the uploaded file and try again."

// Phase describes where a session currently stands.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFileLoaded Phase = "file_loaded"
	PhaseRequesting Phase = "requesting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// State is the full client-side session: the uploaded file, what was
// inferred from it, user overrides, and the outcome of the latest render.
type State struct {
	Category  schema.Category
	FileName  string
	FileData  []byte
	Rows      int
	Headers   []string
	GroupCol  string
	Groups    []string
	Colors    map[string]string
	Title     string
	XLabel    string
	YLabel    string
	Loading   bool
	Err       string
	Artifacts []string
}

// Phase derives the lifecycle position from the state fields.
func (s *State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseRequesting
	case s.Err != "":
		return PhaseFailed
	case len(s.Artifacts) > 0:
		return PhaseSucceeded
	case len(s.FileData) > 0:
		return PhaseFileLoaded
	default:
		return PhaseIdle
	}
}

// Controller owns one session state. Every mutation happens under the lock
// and applies a whole transition at once, so readers never observe a
// half-switched session.
type Controller struct {
	mu     sync.Mutex
	state  State
	seq    uint64
	logger *slog.Logger
}

// New returns a controller starting Idle on the given category.
func New(category schema.Category) *Controller {
	return &Controller{
		state:  State{Category: category, Colors: map[string]string{}},
		logger: logging.New("session"),
	}
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyState(c.state)
}

func copyState(s State) State {
	out := s
	out.FileData = append([]byte(nil), s.FileData...)
	out.Headers = append([]string(nil), s.Headers...)
	out.Groups = append([]string(nil), s.Groups...)
	out.Artifacts = append([]string(nil), s.Artifacts...)
	out.Colors = make(map[string]string, len(s.Colors))
	for k, v := range s.Colors {
		out.Colors[k] = v
	}
	return out
}

// Upload parses the spreadsheet and repopulates the session from it: groups
// reinferred for the current category, colors reseeded, any previous result
// or error cleared. Label overrides are kept since they do not depend on the
// file. A parse failure leaves the session file-less with the generic
// failure message set.
func (c *Controller) Upload(name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := sheet.Read(name, data)
	if err != nil {
		c.logger.Warn("upload failed",
			slog.String("file", name),
			slog.String("error", err.Error()))
		c.state.FileName = ""
		c.state.FileData = nil
		c.state.Rows = 0
		c.state.Headers = nil
		c.state.GroupCol = ""
		c.state.Groups = nil
		c.state.Colors = map[string]string{}
		c.state.Loading = false
		c.state.Err = FailureMessage
		c.state.Artifacts = nil
		return fmt.Errorf("read spreadsheet: %w", err)
	}

	gs := groups.Infer(t, c.state.Category)
	col := ""
	if _, fixed := groups.FixedGroups(c.state.Category); !fixed {
		col = groups.DetectColumn(t.Headers)
	}
	c.state.FileName = name
	c.state.FileData = append([]byte(nil), data...)
	c.state.Rows = len(t.Rows)
	c.state.Headers = append([]string(nil), t.Headers...)
	c.state.GroupCol = col
	c.state.Groups = gs
	c.state.Colors = groups.SeedColors(gs)
	c.state.Loading = false
	c.state.Err = ""
	c.state.Artifacts = nil
	c.logger.Info("file loaded",
		slog.String("file", name),
		slog.Int("rows", len(t.Rows)),
		slog.Int("groups", len(gs)))
	return nil
}

// SwitchCategory resets the whole session and installs the new category.
// Nothing from the previous category survives, including the loaded file.
func (c *Controller) SwitchCategory(cat schema.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++ // orphan any in-flight render
	c.state = State{Category: cat, Colors: map[string]string{}}
	c.logger.Info("category switched", slog.String("category", string(cat)))
}

// Clear resets the session to Idle keeping the current category.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++ // orphan any in-flight render
	c.state = State{Category: c.state.Category, Colors: map[string]string{}}
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// SetColor overrides one group's color. The group must exist in the current
// session and the value must be a #rrggbb hex color.
func (c *Controller) SetColor(group, hex string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Colors[group]; !ok {
		return fmt.Errorf("unknown group %q", group)
	}
	if !hexColor.MatchString(hex) {
		return fmt.Errorf("invalid color %q for group %q (want #rrggbb)", hex, group)
	}
	c.state.Colors[group] = hex
	return nil
}

// SetLabels stores the optional title and axis overrides. Values are kept
// verbatim; trimming happens when the request form is built.
func (c *Controller) SetLabels(title, xLabel, yLabel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Title = title
	c.state.XLabel = xLabel
	c.state.YLabel = yLabel
}

// BeginRender validates the chart choice, marks the session as requesting
// and returns the request plus its sequence number. The response must come
// back through FinishRender or FailRender with that number; only the latest
// issued request can settle the session, anything older is dropped. With no
// file loaded it returns render.ErrNoFile and the state is untouched.
func (c *Controller) BeginRender(chart string) (*render.Request, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.state.FileData) == 0 {
		return nil, 0, render.ErrNoFile
	}
	req, err := render.NewRequest(
		c.state.FileName,
		c.state.FileData,
		c.state.Category,
		chart,
		c.state.Colors,
		c.state.Title,
		c.state.XLabel,
		c.state.YLabel,
	)
	if err != nil {
		return nil, 0, err
	}
	c.seq++
	c.state.Loading = true
	c.logger.Debug("render started",
		slog.Uint64("seq", c.seq),
		slog.String("chart", chart))
	return req, c.seq, nil
}

// FinishRender applies a successful response if it belongs to the latest
// issued request.
func (c *Controller) FinishRender(seq uint64, artifacts []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("stale render response dropped",
			slog.Uint64("seq", seq),
			slog.Uint64("latest", c.seq))
		return
	}
	c.state.Loading = false
	c.state.Err = ""
	c.state.Artifacts = append([]string(nil), artifacts...)
}

// FailRender applies a failed response if it belongs to the latest issued
// request. The stored message is always the generic one; the cause only
// goes to the log.
func (c *Controller) FailRender(seq uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("stale render response dropped",
			slog.Uint64("seq", seq),
			slog.Uint64("latest", c.seq))
		return
	}
	c.state.Loading = false
	c.state.Err = FailureMessage
	c.state.Artifacts = nil
	if cause != nil {
		c.logger.Warn("render failed",
			slog.Uint64("seq", seq),
			slog.String("error", cause.Error()))
	}
}

package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
	"unicode/utf8"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/issue"
	"github.com/nadmax/nexwatch/internal/metrics"
)

// ErrDecode is returned when a report's content is not valid UTF-8 text.
var ErrDecode = errors.New("report content is not valid UTF-8")

type Result struct {
	Report    Report
	Entry     Entry
	Attention bool
	Snapshot  Snapshot
}

type Handler struct {
	store       *SnapshotStore
	dispatcher  *alert.Dispatcher
	guidanceDir string
	out         io.Writer
	now         func() time.Time
}

// NewHandler wires a report handler. dispatcher may be nil when no notifiers are configured.
func NewHandler(store *SnapshotStore, dispatcher *alert.Dispatcher, guidanceDir string, out io.Writer) *Handler {
	if out == nil {
		out = os.Stdout
	}

	return &Handler{
		store:       store,
		dispatcher:  dispatcher,
		guidanceDir: guidanceDir,
		out:         out,
		now:         time.Now,
	}
}

// Process handles one newly created report file. Only read and decode failures are
// returned; snapshot and notification failures are logged so the notice still goes out.
func (h *Handler) Process(ctx context.Context, path string) (*Result, error) {
	r, err := ParseFilename(path)
	if errors.Is(err, ErrMalformedFilename) {
		log.Printf("[report] %s: %v; using %q as agent and status", r.Filename, err, r.Agent)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		metrics.RecordReportEvent("failed")
		return nil, fmt.Errorf("reading report %s: %w", r.Filename, err)
	}
	if !utf8.Valid(data) {
		metrics.RecordReportEvent("failed")
		return nil, fmt.Errorf("%w: %s", ErrDecode, r.Filename)
	}
	content := string(data)

	now := h.now()
	res := &Result{
		Report:    r,
		Attention: r.Tag.NeedsAttention(),
		Entry: Entry{
			Status:         r.Tag,
			LastReport:     r.Filename,
			Timestamp:      now,
			NeedsAttention: r.Tag.NeedsAttention(),
		},
	}

	snap, err := h.store.Update(r.Agent, res.Entry)
	if err != nil {
		log.Printf("[report] failed to update status for %s: %v", r.Agent, err)
	} else {
		res.Snapshot = snap
		metrics.UpdateAgentsNeedingAttention(snap.NeedingAttention())
	}

	if !res.Attention {
		metrics.RecordReportEvent("informational")
		fmt.Fprintln(h.out, InfoNotice(r, now))
		return res, nil
	}

	metrics.RecordReportEvent("attention")
	fmt.Fprint(h.out, AttentionNotice(r, content, h.guidanceDir, now))

	if h.dispatcher != nil {
		a := alert.New(alert.SourceReports, []issue.Issue{
			issue.ReportFlagged(r.Agent, string(r.Tag), path),
		}, now)
		if _, err := h.dispatcher.Dispatch(ctx, a); err != nil {
			log.Printf("[report] alert for %s not fully delivered: %v", r.Agent, err)
		}
	}

	return res, nil
}

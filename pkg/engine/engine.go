package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/logging"
)

// Request is one report generation call.
type Request struct {
	Domain       string      `json:"domain"`
	Frameworks   []string    `json:"active_frameworks"`
	Findings     interface{} `json:"findings"`
	ContextNotes string      `json:"context_notes"`
}

// Engine builds compliance reports. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	normalizer *Normalizer
	log        *logging.Logger
	now        func() time.Time
	newID      func() string
}

type Option func(*Engine)

func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithClock sets the time source for generated_at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator sets the report id source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// New creates an engine that resolves control mappings against controls.
func New(controls *controlmap.ControlMap, opts ...Option) *Engine {
	e := &Engine{
		log:   logging.NewTestLog(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	e.normalizer = NewNormalizer(controls, e.log)
	return e
}

// Generate builds the report for req. The only error is a *MalformedInputError for
// findings that are not a mapping.
func (e *Engine) Generate(req Request) (*Report, []Warning, error) {
	active, assessed, warnings := resolveFrameworks(req.Frameworks)
	for _, w := range warnings {
		e.log.WithField("framework", w.Subject).Warnf("%s", w.Message)
	}

	findings, ws, err := e.normalizer.Normalize(req.Findings)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, ws...)

	costs, licensing := ExtractMSP(findings)
	report := synthesize(synthesis{
		id:           e.newID(),
		domain:       req.Domain,
		now:          e.now(),
		assessed:     assessed,
		findings:     findings,
		classes:      Classify(findings, active),
		counts:       Score(findings),
		costs:        costs,
		licensing:    licensing,
		contextNotes: req.ContextNotes,
		warnings:     warnings,
	})
	e.log.Debugf("report %s: %d checks, %d failed, frameworks %s",
		report.Metadata.ReportID, report.Metadata.TotalChecks, report.Metadata.Failed,
		strings.Join(assessed, ","))
	return report, warnings, nil
}

// Render generates the report and returns it as indented JSON. Malformed input and
// any internal failure come back as an error document, never as a panic.
func (e *Engine) Render(req Request) (out []byte) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Errorf("report generation failed: %v", p)
			out = errorDocument(ErrorDocument{
				Error:        fmt.Sprintf("Report generation failed: %v", p),
				Help:         findingsHelp,
				ReceivedType: typeName(req.Findings),
			})
		}
	}()

	report, _, err := e.Generate(req)
	if err != nil {
		doc := ErrorDocument{Error: err.Error(), Help: findingsHelp, ReceivedType: typeName(req.Findings)}
		var malformed *MalformedInputError
		if errors.As(err, &malformed) {
			doc.Error = malformed.Message
			doc.ReceivedType = malformed.ReceivedType
		}
		return errorDocument(doc)
	}

	b, err := MarshalIndent(report)
	if err != nil {
		return errorDocument(ErrorDocument{
			Error:        fmt.Sprintf("Encoding report: %v", err),
			Help:         findingsHelp,
			ReceivedType: typeName(req.Findings),
		})
	}
	return b
}

func errorDocument(doc ErrorDocument) []byte {
	b, err := MarshalIndent(doc)
	if err != nil {
		return []byte(`{"error": "internal error"}`)
	}
	return b
}

// resolveFrameworks returns the known frameworks to score, the ids to list as
// assessed and a warning per unknown id. No ids means CMMC.
func resolveFrameworks(ids []string) ([]controlmap.Framework, []string, []Warning) {
	ids = lo.Filter(ids, func(s string, _ int) bool { return strings.TrimSpace(s) != "" })
	if len(ids) == 0 {
		return []controlmap.Framework{controlmap.CMMC}, []string{string(controlmap.CMMC)}, nil
	}

	var (
		active   []controlmap.Framework
		assessed []string
		warnings []Warning
		seen     = map[controlmap.Framework]bool{}
	)
	for _, id := range ids {
		f, known := controlmap.ParseFramework(id)
		if seen[f] {
			continue
		}
		seen[f] = true
		if !known {
			// unknown ids are listed as the caller wrote them
			assessed = append(assessed, strings.TrimSpace(id))
			warnings = append(warnings, unknownFramework(strings.TrimSpace(id)))
			continue
		}
		assessed = append(assessed, string(f))
		active = append(active, f)
	}
	return active, assessed, warnings
}

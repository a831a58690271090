// Package assistant ties the rule pipeline, the corrector, the optional
// external oracle and per-session state into the operations served over HTTP.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/corrector"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/oracle"
	"github.com/sqlassist/sqlassist/internal/schema"
	"github.com/sqlassist/sqlassist/internal/session"
	sessionpostgres "github.com/sqlassist/sqlassist/internal/session/postgres"
	"github.com/sqlassist/sqlassist/internal/sqltext"
)

// Generation modes.
const (
	ModeRules  = "rules"
	ModeOracle = "oracle"
)

// ProviderRules names the built-in rule pipeline in responses and metrics.
const ProviderRules = "rules"

var ErrUnknownMode = errors.New("unknown generation mode")

type Archiver interface {
	Archive(ctx context.Context, sessionKey, fileName string, content []byte) (string, error)
}

type UploadRecorder interface {
	RecordUpload(ctx context.Context, in sessionpostgres.Upload) error
}

type Service struct {
	Sessions session.Store
	// Oracle is the external model tried first in oracle mode. Nil disables
	// oracle mode: such requests run the rule pipeline.
	Oracle         oracle.Oracle
	OracleProvider string
	Describer      schema.CSVDescriber
	Archiver       Archiver
	Uploads        UploadRecorder
	HistoryLimit   int
	Logger         *slog.Logger
	Clock          func() time.Time
}

type GenerateRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

type GenerateResponse struct {
	Result             string                 `json:"result"`
	DetectedType       nl2sql.Kind            `json:"detected_type"`
	AdvancedOptions    nl2sql.Options         `json:"advanced_options"`
	HasAdvancedOptions bool                   `json:"has_advanced_options"`
	History            []session.HistoryEntry `json:"history"`
	UserIntent         nl2sql.Intent          `json:"user_intent"`
	Suggestion         string                 `json:"suggestion,omitempty"`
	Provider           string                 `json:"provider"`
	Outcome            string                 `json:"outcome"`
}

type UploadResult struct {
	schema.Display
	Format      string `json:"format"`
	ArchivedKey string `json:"archived_key,omitempty"`
}

// Generate turns text into SQL for session id and records generated
// statements in the session history and learning state.
func (s *Service) Generate(ctx context.Context, id string, req GenerateRequest) (GenerateResponse, error) {
	ctx = observability.ContextWithSessionID(ctx, id)
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = ModeRules
	}
	if mode != ModeRules && mode != ModeOracle {
		return GenerateResponse{}, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}

	state, err := s.state(ctx, id)
	if err != nil {
		return GenerateResponse{}, err
	}
	hints := state.Hints(req.Text)
	suggestion := state.Learning.Suggest(req.Text)

	var (
		generated nl2sql.Result
		provider  = ProviderRules
	)
	if mode == ModeOracle && s.Oracle != nil {
		generated, provider = s.generateWithOracle(ctx, req.Text, hints, state.CustomSchema)
	} else {
		generated = nl2sql.Generate(req.Text, hints)
	}
	observability.ObserveGeneration(generated.Kind.String(), generated.Outcome)

	recorded, err := s.Sessions.Update(ctx, id, func(st *session.State) error {
		if !generated.Generated() {
			return nil
		}
		st.AddHistory(session.HistoryEntry{
			Timestamp:       s.now().Format(session.TimestampLayout),
			Description:     req.Text,
			Query:           generated.Text,
			Type:            generated.Kind.String(),
			AdvancedOptions: generated.Options,
			UserIntent:      generated.Intent,
		})
		st.TrimHistory(s.HistoryLimit)
		st.Learning.Learn(req.Text, generated.Text, generated.Kind.String(), generated.Intent)
		return nil
	})
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("record generation: %w", err)
	}

	history := recorded.History
	if history == nil {
		history = []session.HistoryEntry{}
	}
	options := generated.Options
	if options == nil {
		options = nl2sql.Options{}
	}
	return GenerateResponse{
		Result:             generated.Text,
		DetectedType:       generated.Kind,
		AdvancedOptions:    options,
		HasAdvancedOptions: options.Any(generated.Kind),
		History:            history,
		UserIntent:         generated.Intent,
		Suggestion:         suggestion.Message(),
		Provider:           provider,
		Outcome:            generated.Outcome,
	}, nil
}

// generateWithOracle asks the external oracle first and falls back to the
// rule pipeline when it fails or answers with an empty statement. Oracle SQL
// gets the same terminating semicolon and explanation block as ruled SQL.
func (s *Service) generateWithOracle(ctx context.Context, text string, hints nl2sql.Hints, custom *schema.Schema) (nl2sql.Result, string) {
	var ruled nl2sql.Result
	rules := oracle.Func(func(context.Context, oracle.Request) (oracle.Result, error) {
		ruled = nl2sql.Generate(text, hints)
		return oracle.Result{SQL: ruled.Text, Provider: ProviderRules}, nil
	})
	primary := oracle.Func(func(ctx context.Context, req oracle.Request) (oracle.Result, error) {
		result, err := s.Oracle.Query(ctx, req)
		if err == nil && strings.TrimSpace(result.SQL) == "" {
			err = errors.New("oracle returned an empty statement")
		}
		observability.ObserveOracleRequest(s.oracleProvider(), err)
		return result, err
	})
	chain := &oracle.Fallback{
		Primary:   primary,
		Secondary: rules,
		OnError: func(err error) {
			s.logger().WarnContext(ctx, "oracle failed, using rule pipeline",
				slog.String("provider", s.oracleProvider()),
				slog.String("error", err.Error()),
			)
		},
	}

	result, err := chain.Query(ctx, oracle.Request{NaturalLanguage: text, Tables: tableContexts(custom)})
	if err != nil || result.Provider == ProviderRules {
		if err != nil {
			ruled = nl2sql.Generate(text, hints)
		}
		return ruled, ProviderRules
	}

	statement := strings.TrimSpace(result.SQL)
	kind := nl2sql.ParseKind(sqltext.LeadingWord(statement))
	intent := nl2sql.AnalyzeIntent(text, hints)
	if kind == nl2sql.KindUnknown {
		kind = intent.Classification.Kind
	}
	provider := result.Provider
	if provider == "" {
		provider = s.oracleProvider()
	}
	return nl2sql.Result{
		Text:    nl2sql.Annotate(statement, kind),
		Kind:    kind,
		Options: nl2sql.DetectOptions(text, kind),
		Intent:  intent,
		Outcome: nl2sql.OutcomeGenerated,
	}, provider
}

// tableContexts describes the session schema to the oracle, or the default
// sample schema when the session has none.
func tableContexts(custom *schema.Schema) []oracle.TableContext {
	source := schema.Default()
	if custom != nil && !custom.Empty() {
		source = *custom
	}
	names := source.TableNames()
	out := make([]oracle.TableContext, 0, len(names))
	for _, name := range names {
		out = append(out, oracle.TableContext{
			TableName: name,
			Columns:   append([]string(nil), source.Tables[name]...),
		})
	}
	return out
}

func (s *Service) History(ctx context.Context, id string) ([]session.HistoryEntry, error) {
	state, err := s.state(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.History == nil {
		return []session.HistoryEntry{}, nil
	}
	return state.History, nil
}

func (s *Service) ClearHistory(ctx context.Context, id string) error {
	_, err := s.Sessions.Update(ctx, id, func(st *session.State) error {
		st.ClearHistory()
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// UploadSchema infers a schema from an uploaded file and makes it the
// session's custom schema. Archiving and upload bookkeeping are best effort.
func (s *Service) UploadSchema(ctx context.Context, id, fileName string, content []byte) (UploadResult, error) {
	ctx = observability.ContextWithSessionID(ctx, id)
	format, err := schema.FormatOf(fileName)
	if err != nil {
		observability.ObserveSchemaUpload("unsupported", "rejected")
		return UploadResult{}, err
	}

	inferred, err := schema.Infer(ctx, fileName, content, schema.Options{Describer: s.Describer, Logger: s.logger()})
	if err != nil {
		observability.ObserveSchemaUpload(format, "error")
		return UploadResult{}, fmt.Errorf("infer schema: %w", err)
	}

	var archivedKey string
	if s.Archiver != nil {
		archivedKey, err = s.Archiver.Archive(ctx, id, fileName, content)
		if err != nil {
			archivedKey = ""
			s.logger().WarnContext(ctx, "schema archive failed",
				slog.String("file", fileName),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.setCustomSchema(ctx, id, inferred); err != nil {
		observability.ObserveSchemaUpload(format, "error")
		return UploadResult{}, err
	}

	if s.Uploads != nil {
		if err := s.Uploads.RecordUpload(ctx, sessionpostgres.Upload{
			SessionID:  id,
			FileName:   fileName,
			Format:     format,
			SizeBytes:  int64(len(content)),
			TableCount: len(inferred.Tables),
			ObjectKey:  archivedKey,
		}); err != nil {
			s.logger().WarnContext(ctx, "schema upload bookkeeping failed",
				slog.String("error", err.Error()),
			)
		}
	}

	observability.ObserveSchemaUpload(format, "ok")
	s.logger().InfoContext(ctx, "schema uploaded",
		slog.String("format", format),
		slog.Int("tables", len(inferred.Tables)),
	)
	return UploadResult{Display: inferred.Display(), Format: format, ArchivedKey: archivedKey}, nil
}

// SchemaFromText infers a schema from free text and makes it the session's
// custom schema.
func (s *Service) SchemaFromText(ctx context.Context, id, text string) (schema.Display, error) {
	inferred := schema.FromText(text)
	inferred.Normalize()
	if err := s.setCustomSchema(ctx, id, inferred); err != nil {
		return schema.Display{}, err
	}
	return inferred.Display(), nil
}

func (s *Service) ClearSchema(ctx context.Context, id string) error {
	_, err := s.Sessions.Update(ctx, id, func(st *session.State) error {
		st.CustomSchema = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear schema: %w", err)
	}
	return nil
}

func (s *Service) setCustomSchema(ctx context.Context, id string, inferred schema.Schema) error {
	_, err := s.Sessions.Update(ctx, id, func(st *session.State) error {
		custom := inferred
		st.CustomSchema = &custom
		return nil
	})
	if err != nil {
		return fmt.Errorf("store schema: %w", err)
	}
	return nil
}

// Correct checks query and adds suggestions learned from the session.
func (s *Service) Correct(ctx context.Context, id, query string) (corrector.Result, error) {
	state, err := s.state(ctx, id)
	if err != nil {
		return corrector.Result{}, err
	}
	result := corrector.WithLearning(corrector.Correct(query), query, state.Learning)

	outcome := "unchanged"
	switch {
	case result.CorrectedQuery == nil:
		outcome = "empty"
	case result.Corrected:
		outcome = "corrected"
	}
	observability.ObserveCorrection(outcome)
	return result, nil
}

// ExtractFields lists the columns selected by query.
func (s *Service) ExtractFields(query string) []string {
	return sqltext.SelectFields(query)
}

// state loads the session, treating an unknown session as empty.
func (s *Service) state(ctx context.Context, id string) (session.State, error) {
	state, err := s.Sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return session.State{}, nil
	}
	if err != nil {
		return session.State{}, fmt.Errorf("load session: %w", err)
	}
	return state, nil
}

func (s *Service) oracleProvider() string {
	if s.OracleProvider != "" {
		return s.OracleProvider
	}
	return "oracle"
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

package judge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/database/models"
	"github.com/openjudge-dev/openjudge/internal/pubsub"
	"github.com/openjudge-dev/openjudge/internal/sandbox"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxCodeBytes is the upper bound on submitted source code.
const MaxCodeBytes = 50000

var (
	ErrEmptyCode       = errors.New("code must not be empty")
	ErrCodeTooLarge    = errors.New("code exceeds the maximum allowed size")
	ErrUnknownLanguage = errors.New("unsupported language")

	ErrContestNotRunning   = errors.New("contest is not currently active")
	ErrNotRegistered       = errors.New("you are not registered for this contest")
	ErrProblemNotInContest = errors.New("problem not found in this contest")
)

// ValidateCode rejects empty or oversized code and unknown languages before
// any submission row is created.
func ValidateCode(code string, lang models.Language) error {
	if len(code) == 0 {
		return ErrEmptyCode
	}
	if len(code) > MaxCodeBytes {
		return ErrCodeTooLarge
	}
	if !lang.Valid() {
		return ErrUnknownLanguage
	}
	return nil
}

// Engine drives a submission through its test cases sequentially, derives the
// final verdict, and commits aggregate statistics in one transaction.
type Engine struct {
	db     *gorm.DB
	exec   sandbox.Executor
	broker *pubsub.Broker

	// One mutex per contest serializes the full re-rank pass.
	rankLocks *xsync.MapOf[string, *sync.Mutex]
}

func NewEngine(db *gorm.DB, exec sandbox.Executor) *Engine {
	return &Engine{
		db:        db,
		exec:      exec,
		broker:    pubsub.GetBroker(),
		rankLocks: xsync.NewMapOf[string, *sync.Mutex](),
	}
}

// caseUnit is one test case normalized for the judging loop, shared between
// practice and contest judging.
type caseUnit struct {
	ID       string
	Order    int
	Input    string
	Expected string
}

// caseOutcome is the judged result of one case. Measured marks whether the
// sandbox produced time/memory readings: a transport failure or compile error
// leaves them unset, and 0 ms is a legitimate measured value.
type caseOutcome struct {
	Unit         caseUnit
	Status       models.Verdict
	ActualOutput string
	TimeMS       int
	MemoryKB     int
	Measured     bool
	ErrorMessage string
}

// runOutcome aggregates one full judging pass.
type runOutcome struct {
	Results      []caseOutcome
	Passed       int
	Measured     int // cases with sandbox time/memory readings
	MaxTimeMS    int
	MaxMemoryKB  int
	FirstFailure models.Verdict // empty if every executed case passed
	FailureMsg   string
	CompileError bool
	CompileOut   string
}

// maxTimePtr and maxMemoryPtr return the maxima over all measured cases, or
// nil when no case produced a reading.
func (o *runOutcome) maxTimePtr() *int {
	if o.Measured == 0 {
		return nil
	}
	v := o.MaxTimeMS
	return &v
}

func (o *runOutcome) maxMemoryPtr() *int {
	if o.Measured == 0 {
		return nil
	}
	v := o.MaxMemoryKB
	return &v
}

// FinalVerdict applies the precedence rules: compilation error dominates,
// otherwise accepted iff every case passed and at least one ran, otherwise
// the verdict of the first non-accepted case in order.
func (o *runOutcome) FinalVerdict(totalCases int) models.Verdict {
	switch {
	case o.CompileError:
		return models.VerdictCompilationError
	case totalCases == 0:
		return models.VerdictInternalError
	case o.FirstFailure == "":
		return models.VerdictAccepted
	default:
		return o.FirstFailure
	}
}

// runCases executes the units in order. A sandbox failure degrades that one
// case to RUNTIME_ERROR and judging continues; a compilation error stops the
// loop, skipping every remaining case. onResult, when set, is called once per
// judged case before moving on.
func (e *Engine) runCases(ctx context.Context, units []caseUnit, timeLimitMS, memoryLimitMB int, lang models.Language, code string, onResult func(caseOutcome)) runOutcome {
	var out runOutcome

	for _, unit := range units {
		raw, err := e.exec.Execute(ctx, sandbox.ExecRequest{
			Code:           code,
			Language:       lang,
			Stdin:          unit.Input,
			ExpectedOutput: unit.Expected,
			// Sandbox units: limits arrive as ms and MB, leave as s and KB.
			CPUTimeLimitSecs: float64(timeLimitMS) / 1000.0,
			MemoryLimitKB:    memoryLimitMB * 1024,
		})
		if err != nil {
			zap.S().Warnf("sandbox execution failed for case %d: %v", unit.Order, err)
			result := caseOutcome{
				Unit:         unit,
				Status:       models.VerdictRuntimeError,
				ErrorMessage: "failed to execute code",
			}
			out.Results = append(out.Results, result)
			if out.FirstFailure == "" {
				out.FirstFailure = models.VerdictRuntimeError
				out.FailureMsg = result.ErrorMessage
			}
			if onResult != nil {
				onResult(result)
			}
			continue
		}

		resolved := sandbox.Resolve(raw)

		if resolved.Verdict == models.VerdictCompilationError {
			out.CompileError = true
			out.CompileOut = resolved.CompileOutput
			result := caseOutcome{
				Unit:         unit,
				Status:       models.VerdictCompilationError,
				ErrorMessage: "compilation error",
			}
			out.Results = append(out.Results, result)
			if onResult != nil {
				onResult(result)
			}
			break
		}

		result := caseOutcome{
			Unit:         unit,
			Status:       resolved.Verdict,
			ActualOutput: resolved.Stdout,
			TimeMS:       resolved.ExecutionTimeMS,
			MemoryKB:     resolved.MemoryUsedKB,
			Measured:     true,
		}
		out.Measured++
		if resolved.Stderr != "" {
			result.ErrorMessage = resolved.Stderr
		} else {
			result.ErrorMessage = resolved.Message
		}

		// Maxima run over every processed case, not just accepted ones.
		if result.TimeMS > out.MaxTimeMS {
			out.MaxTimeMS = result.TimeMS
		}
		if result.MemoryKB > out.MaxMemoryKB {
			out.MaxMemoryKB = result.MemoryKB
		}

		if resolved.Verdict == models.VerdictAccepted {
			out.Passed++
		} else if out.FirstFailure == "" {
			out.FirstFailure = resolved.Verdict
			out.FailureMsg = result.ErrorMessage
		}

		out.Results = append(out.Results, result)
		if onResult != nil {
			onResult(result)
		}
	}

	return out
}

// Judge runs one practice submission end to end: creates the submission and
// its per-case result rows, judges every active test case, then commits the
// final verdict and the statistics update in a single transaction.
func (e *Engine) Judge(ctx context.Context, user *models.User, problem *models.Problem, code string, lang models.Language) (*models.Submission, error) {
	if err := ValidateCode(code, lang); err != nil {
		return nil, err
	}

	cases, err := database.GetActiveTestCases(e.db, problem.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load test cases: %w", err)
	}

	sub := &models.Submission{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		ProblemID:      problem.ID,
		Code:           code,
		Language:       lang,
		Verdict:        models.VerdictRunning,
		TotalTestCases: len(cases),
	}
	if err := database.CreateSubmission(e.db, sub); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	units := make([]caseUnit, len(cases))
	for i, tc := range cases {
		units[i] = caseUnit{ID: tc.ID, Order: tc.Order, Input: tc.InputData, Expected: tc.ExpectedOutput}
	}

	outcome := e.runCases(ctx, units, problem.TimeLimitMS, problem.MemoryLimitMB, lang, code, func(result caseOutcome) {
		e.persistCaseResult(sub.ID, result)
		e.broker.PublishEvent(sub.ID, pubsub.Event{
			Kind:         "case_result",
			SubmissionID: sub.ID,
			Data:         string(result.Status),
		})
	})

	verdict := outcome.FinalVerdict(len(cases))

	// Final submission fields and the statistics update land atomically: no
	// reader sees an ACCEPTED submission without its counters applied.
	err = e.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"verdict":            verdict,
			"test_cases_passed":  outcome.Passed,
			"total_test_cases":   len(cases),
			"execution_time_ms":  outcome.maxTimePtr(),
			"memory_used_kb":     outcome.maxMemoryPtr(),
			"error_message":      outcome.FailureMsg,
			"compilation_output": outcome.CompileOut,
		}
		if err := tx.Model(&models.Submission{}).Where("id = ?", sub.ID).Updates(updates).Error; err != nil {
			return err
		}
		return applyProblemStats(tx, user.ID, problem, verdict == models.VerdictAccepted)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize submission: %w", err)
	}

	sub.Verdict = verdict
	sub.TestCasesPassed = outcome.Passed
	sub.ExecutionTimeMS = outcome.maxTimePtr()
	sub.MemoryUsedKB = outcome.maxMemoryPtr()
	sub.ErrorMessage = outcome.FailureMsg
	sub.CompilationOutput = outcome.CompileOut

	e.broker.PublishEvent(sub.ID, pubsub.Event{
		Kind:         "verdict",
		SubmissionID: sub.ID,
		Data:         string(verdict),
	})
	e.broker.CloseTopic(sub.ID)
	e.broker.PublishTransient(pubsub.SubmissionsTopic, pubsub.Event{
		Kind:         "judged",
		SubmissionID: sub.ID,
		UserID:       user.ID,
		ProblemID:    problem.ID,
		Data:         string(verdict),
	})

	return sub, nil
}

func (e *Engine) persistCaseResult(submissionID string, result caseOutcome) {
	row := models.TestCaseResult{
		ID:              uuid.NewString(),
		SubmissionID:    submissionID,
		TestCaseID:      result.Unit.ID,
		Order:           result.Unit.Order,
		Status:          result.Status,
		ActualOutput:    result.ActualOutput,
		ExecutionTimeMS: measuredPtr(result.TimeMS, result.Measured),
		MemoryUsedKB:    measuredPtr(result.MemoryKB, result.Measured),
		ErrorMessage:    result.ErrorMessage,
	}
	if err := e.db.Create(&row).Error; err != nil {
		zap.S().Errorf("failed to persist test case result for submission %s: %v", submissionID, err)
	}
}

// PreviewResult is one sample-case outcome from a run/preview request.
type PreviewResult struct {
	Order           int            `json:"order"`
	Status          models.Verdict `json:"status"`
	Input           string         `json:"input"`
	ExpectedOutput  string         `json:"expected_output"`
	ActualOutput    string         `json:"actual_output"`
	ExecutionTimeMS int            `json:"execution_time_ms"`
	MemoryUsedKB    int            `json:"memory_used_kb"`
	ErrorMessage    string         `json:"error_message"`
}

// Preview is the full response of a run/preview request.
type Preview struct {
	Verdict           models.Verdict  `json:"verdict"`
	Results           []PreviewResult `json:"results"`
	CompilationOutput string          `json:"compilation_output,omitempty"`
}

// RunSamples judges the problem's sample cases only and persists nothing.
func (e *Engine) RunSamples(ctx context.Context, problem *models.Problem, code string, lang models.Language) (*Preview, error) {
	if err := ValidateCode(code, lang); err != nil {
		return nil, err
	}

	cases, err := database.GetActiveTestCases(e.db, problem.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load sample test cases: %w", err)
	}

	units := make([]caseUnit, len(cases))
	for i, tc := range cases {
		units[i] = caseUnit{ID: tc.ID, Order: tc.Order, Input: tc.InputData, Expected: tc.ExpectedOutput}
	}

	outcome := e.runCases(ctx, units, problem.TimeLimitMS, problem.MemoryLimitMB, lang, code, nil)

	preview := &Preview{
		Verdict:           outcome.FinalVerdict(len(cases)),
		CompilationOutput: outcome.CompileOut,
		Results:           make([]PreviewResult, 0, len(outcome.Results)),
	}
	for _, r := range outcome.Results {
		preview.Results = append(preview.Results, PreviewResult{
			Order:           r.Unit.Order,
			Status:          r.Status,
			Input:           r.Unit.Input,
			ExpectedOutput:  r.Unit.Expected,
			ActualOutput:    r.ActualOutput,
			ExecutionTimeMS: r.TimeMS,
			MemoryUsedKB:    r.MemoryKB,
			ErrorMessage:    r.ErrorMessage,
		})
	}
	return preview, nil
}

func measuredPtr(v int, measured bool) *int {
	if !measured {
		return nil
	}
	return &v
}

func minutesSince(t time.Time) int {
	return int(time.Since(t).Minutes())
}

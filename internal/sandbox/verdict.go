package sandbox

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/openjudge-dev/openjudge/internal/database/models"
)

// Provider status ids. 1 and 2 are non-terminal.
const (
	statusInQueue    = 1
	statusProcessing = 2
)

// statusVerdicts is the closed mapping from provider status id to verdict.
// All signal/format runtime sub-codes collapse into RUNTIME_ERROR.
var statusVerdicts = map[int]models.Verdict{
	1:  models.VerdictPending,
	2:  models.VerdictRunning,
	3:  models.VerdictAccepted,
	4:  models.VerdictWrongAnswer,
	5:  models.VerdictTimeLimitExceeded,
	6:  models.VerdictCompilationError,
	7:  models.VerdictRuntimeError, // SIGSEGV
	8:  models.VerdictRuntimeError, // SIGXFSZ
	9:  models.VerdictRuntimeError, // SIGFPE
	10: models.VerdictRuntimeError, // SIGABRT
	11: models.VerdictRuntimeError, // NZEC
	12: models.VerdictRuntimeError, // other
	13: models.VerdictInternalError,
	14: models.VerdictRuntimeError, // exec format error
}

// Resolved is a raw provider result normalized for internal storage:
// canonical verdict, time in milliseconds, memory in KB.
type Resolved struct {
	Verdict           models.Verdict
	ExecutionTimeMS   int
	MemoryUsedKB      int
	Stdout            string
	Stderr            string
	CompileOutput     string
	Message           string
	StatusDescription string
}

// Resolve maps a raw result to a Resolved. Unrecognized status ids become
// INTERNAL_ERROR; malformed numeric fields degrade to zero, never error.
func Resolve(raw *RawResult) Resolved {
	verdict, ok := statusVerdicts[raw.Status.ID]
	if !ok {
		verdict = models.VerdictInternalError
	}

	return Resolved{
		Verdict:           verdict,
		ExecutionTimeMS:   int(math.Round(coerceFloat(raw.Time) * 1000)),
		MemoryUsedKB:      int(math.Round(coerceFloat(raw.Memory))),
		Stdout:            raw.Stdout,
		Stderr:            raw.Stderr,
		CompileOutput:     raw.CompileOutput,
		Message:           raw.Message,
		StatusDescription: raw.Status.Description,
	}
}

// coerceFloat accepts the upstream's loose numeric encodings: absent/null,
// a JSON number, or a number-as-string. Anything unparsable is zero.
func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

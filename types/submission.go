package types

import (
	"encoding/json"
	"strconv"
)

// Language identifies a supported submission language.
type Language string

const (
	LanguageJava   Language = "JAVA"
	LanguagePython Language = "PYTHON"
	LanguageKotlin Language = "KOTLIN"
	LanguageSwift  Language = "SWIFT"
)

// Submission is immutable for the duration of judging.
type Submission struct {
	SubmissionID  int64
	ProblemID     int64
	Username      string
	SourceCode    string
	Language      Language
	TimeLimitSec  int
	MemoryLimitMb int
}

// Validate enforces that every field is required and that the source code
// does not exceed maxSourceBytes: a submission missing any field, or one
// whose source is larger than the configured cap, fails before any sandbox
// is launched.
func (s Submission) Validate(maxSourceBytes int64) error {
	switch {
	case s.SubmissionID == 0:
		return errRequired("submissionId")
	case s.ProblemID == 0:
		return errRequired("problemId")
	case s.Username == "":
		return errRequired("username")
	case s.SourceCode == "":
		return errRequired("sourceCode")
	case s.Language == "":
		return errRequired("language")
	case s.TimeLimitSec <= 0:
		return errRequired("timeLimitSec")
	case s.MemoryLimitMb <= 0:
		return errRequired("memoryLimitMb")
	case maxSourceBytes > 0 && int64(len(s.SourceCode)) > maxSourceBytes:
		return errMalformed("sourceCode exceeds max size of " + strconv.FormatInt(maxSourceBytes, 10) + " bytes")
	}
	return nil
}

// EffectiveLimits are the per-language-inflated limits actually enforced
// on the sandbox.
type EffectiveLimits struct {
	TimeLimitSec  int
	MemoryLimitMb int
}

// Verdict is the closed set of terminal judging outcomes.
type Verdict string

const (
	VerdictAccepted            Verdict = "ACCEPTED"
	VerdictWrongAnswer         Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictMemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
	VerdictRuntimeError        Verdict = "RUNTIME_ERROR"
	VerdictCompileError        Verdict = "COMPILE_ERROR"
	VerdictServerError         Verdict = "SERVER_ERROR"
)

// TestCase is an ordered (input, expected output) pair.
type TestCase struct {
	Input    string
	Expected string
}

// ExecOutcome is what the sandbox executor returns for one run.
type ExecOutcome struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	WallExceeded bool
	UserTimeMs   int64
	SysTimeMs    int64
	CPUTimeMs    int64
	PeakMemoryKb int64
}

// ProgressEvent is a per-submission, ordered status message.
type ProgressEvent struct {
	SubmissionID int64  `json:"submissionId"`
	Username     string `json:"username"`
	Status       string `json:"submitStatus"`
	Progress     int    `json:"progressPercent"`
	CurrentTest  int    `json:"currentTest"`
	TotalTests   int    `json:"totalTests"`
	Timestamp    string `json:"timestamp"`
	RuntimeMs    *int64 `json:"runtimeMs"`
	MemoryKb     *int64 `json:"memoryKb"`
}

// IngressMessage is the ingress queue schema.
type IngressMessage struct {
	SubmissionID  *int64  `json:"submissionId"`
	ProblemID     *int64  `json:"problemId"`
	Username      *string `json:"username"`
	SourceCode    *string `json:"sourceCode"`
	Language      *string `json:"language"`
	TimeLimitSec  *int    `json:"timeLimitSec"`
	MemoryLimitMb *int    `json:"memoryLimitMb"`
}

// ToSubmission converts a wire message into a Submission, failing closed:
// any missing or invalid field, or a source over maxSourceBytes, rejects
// the message.
func (m IngressMessage) ToSubmission(maxSourceBytes int64) (Submission, error) {
	if m.SubmissionID == nil || m.ProblemID == nil || m.Username == nil ||
		m.SourceCode == nil || m.Language == nil || m.TimeLimitSec == nil || m.MemoryLimitMb == nil {
		return Submission{}, errMalformed("missing required field")
	}

	sub := Submission{
		SubmissionID:  *m.SubmissionID,
		ProblemID:     *m.ProblemID,
		Username:      *m.Username,
		SourceCode:    *m.SourceCode,
		Language:      Language(*m.Language),
		TimeLimitSec:  *m.TimeLimitSec,
		MemoryLimitMb: *m.MemoryLimitMb,
	}
	if err := sub.Validate(maxSourceBytes); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// EgressMessage is the result queue schema.
type EgressMessage struct {
	SubmissionID int64   `json:"submissionId"`
	ProblemID    int64   `json:"problemId"`
	Username     string  `json:"username"`
	SubmitStatus Verdict `json:"submitStatus"`
	RuntimeMs    *int64  `json:"runtimeMs"`
	MemoryKb     *int64  `json:"memoryKb"`
}

// Marshal encodes the egress message for publication.
func (m EgressMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

func errRequired(field string) error {
	return fieldError("submission: missing required field " + field)
}

func errMalformed(reason string) error {
	return fieldError("ingress message: " + reason)
}

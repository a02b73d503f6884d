package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

type Verdict string

const (
	VerdictPending             Verdict = "PENDING"
	VerdictRunning             Verdict = "RUNNING"
	VerdictAccepted            Verdict = "ACCEPTED"
	VerdictWrongAnswer         Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded   Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictMemoryLimitExceeded Verdict = "MEMORY_LIMIT_EXCEEDED"
	VerdictRuntimeError        Verdict = "RUNTIME_ERROR"
	VerdictCompilationError    Verdict = "COMPILATION_ERROR"
	VerdictInternalError       Verdict = "INTERNAL_ERROR"
)

// Terminal reports whether the verdict will never change again.
func (v Verdict) Terminal() bool {
	return v != VerdictPending && v != VerdictRunning
}

type Language string

const (
	LanguagePython     Language = "PYTHON"
	LanguageJava       Language = "JAVA"
	LanguageCPP        Language = "CPP"
	LanguageJavaScript Language = "JAVASCRIPT"
	LanguageC          Language = "C"
)

func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJava, LanguageCPP, LanguageJavaScript, LanguageC:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

type TestCaseType string

const (
	TestCaseSample TestCaseType = "SAMPLE"
	TestCaseHidden TestCaseType = "HIDDEN"
)

type SolveState string

const (
	SolveAttempted SolveState = "ATTEMPTED"
	SolveSolved    SolveState = "SOLVED"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleManager   Role = "MANAGER"
	RoleSuperUser Role = "SUPERUSER"
)

type ContestStatus string

const (
	ContestNotStarted ContestStatus = "NOT_STARTED"
	ContestActive     ContestStatus = "ACTIVE"
	ContestEnded      ContestStatus = "ENDED"
)

type ScoringType string

const (
	ScoringStandard ScoringType = "STANDARD"
	ScoringICPC     ScoringType = "ICPC"
)

type User struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Username     string     `gorm:"uniqueIndex" json:"username"`
	PasswordHash string     `json:"-"`
	Nickname     string     `json:"nickname"`
	Role         Role       `gorm:"default:USER" json:"role"`
	BannedUntil  *time.Time `json:"banned_until"`

	// Solve counters, mutated only through the statistics updater.
	TotalSolved  int `json:"total_solved"`
	EasySolved   int `json:"easy_solved"`
	MediumSolved int `json:"medium_solved"`
	HardSolved   int `json:"hard_solved"`
}

func (u *User) IsBanned() bool {
	return u.BannedUntil != nil && u.BannedUntil.After(time.Now())
}

type Problem struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Slug        string     `gorm:"uniqueIndex" json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `gorm:"index;default:MEDIUM" json:"difficulty"`

	Constraints  string `json:"constraints"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
	Examples     string `json:"examples"`

	TimeLimitMS   int `gorm:"default:2000" json:"time_limit_ms"`
	MemoryLimitMB int `gorm:"default:256" json:"memory_limit_mb"`

	TotalSubmissions    int `json:"total_submissions"`
	AcceptedSubmissions int `json:"accepted_submissions"`
	TotalSolved         int `json:"total_solved"`

	CreatedByID string `json:"created_by_id"`
	IsActive    bool   `gorm:"index;default:true" json:"is_active"`
}

// AcceptanceRate is derived, never stored.
func (p *Problem) AcceptanceRate() float64 {
	if p.TotalSubmissions == 0 {
		return 0
	}
	return math.Round(float64(p.AcceptedSubmissions)/float64(p.TotalSubmissions)*10000) / 100
}

type TestCase struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time

	ProblemID string       `gorm:"index" json:"problem_id"`
	TestType  TestCaseType `gorm:"default:HIDDEN" json:"test_type"`

	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`

	Order    int  `gorm:"index" json:"order"`
	IsActive bool `gorm:"default:true" json:"is_active"`
}

// ProblemSolveStatus tracks one user's progress on one practice problem.
// Status only ever moves ATTEMPTED -> SOLVED.
type ProblemSolveStatus struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID    string `gorm:"uniqueIndex:idx_user_problem" json:"user_id"`
	ProblemID string `gorm:"uniqueIndex:idx_user_problem" json:"problem_id"`

	Status        SolveState `gorm:"default:ATTEMPTED" json:"status"`
	FirstSolvedAt *time.Time `json:"first_solved_at"`
}

type Submission struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID    string  `gorm:"index" json:"user_id"`
	User      User    `json:"user"`
	ProblemID string  `gorm:"index" json:"problem_id"`
	Problem   Problem `json:"problem"`

	Code     string   `json:"code"`
	Language Language `json:"language"`

	Verdict Verdict `gorm:"index;default:PENDING" json:"verdict"`

	// Maxima across all executed test cases; nil when no case was measured.
	ExecutionTimeMS *int `json:"execution_time_ms"`
	MemoryUsedKB    *int `json:"memory_used_kb"`

	TestCasesPassed int `json:"test_cases_passed"`
	TotalTestCases  int `json:"total_test_cases"`

	ErrorMessage      string `json:"error_message"`
	CompilationOutput string `json:"compilation_output"`

	TestCaseResults []TestCaseResult `gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE" json:"test_case_results"`
}

func (s *Submission) IsAccepted() bool {
	return s.Verdict == VerdictAccepted
}

func (s *Submission) PassPercentage() float64 {
	if s.TotalTestCases == 0 {
		return 0
	}
	return math.Round(float64(s.TestCasesPassed)/float64(s.TotalTestCases)*10000) / 100
}

// TestCaseResult is the per-case outcome of one practice submission.
// Created PENDING, updated exactly once to a terminal status.
type TestCaseResult struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	SubmissionID string `gorm:"index" json:"submission_id"`
	TestCaseID   string `json:"test_case_id"`
	Order        int    `json:"order"`

	Status          Verdict `gorm:"default:PENDING" json:"status"`
	ActualOutput    string  `json:"actual_output"`
	ExecutionTimeMS *int    `json:"execution_time_ms"`
	MemoryUsedKB    *int    `json:"memory_used_kb"`
	ErrorMessage    string  `json:"error_message"`
}

type Contest struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Slug        string `gorm:"uniqueIndex" json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`

	StartTime       time.Time `gorm:"index" json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`

	Rules       string      `json:"rules"`
	ScoringType ScoringType `gorm:"default:STANDARD" json:"scoring_type"`

	IsPublic        bool `gorm:"default:true" json:"is_public"`
	IsActive        bool `gorm:"index;default:true" json:"is_active"`
	MaxParticipants *int `json:"max_participants"`

	TotalParticipants int    `json:"total_participants"`
	CreatedByID       string `json:"created_by_id"`
}

func (c *Contest) Status() ContestStatus {
	now := time.Now()
	switch {
	case now.Before(c.StartTime):
		return ContestNotStarted
	case now.After(c.EndTime):
		return ContestEnded
	default:
		return ContestActive
	}
}

func (c *Contest) IsRunning() bool {
	return c.Status() == ContestActive
}

type ContestRegistration struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time

	UserID    string `gorm:"uniqueIndex:idx_user_contest" json:"user_id"`
	ContestID string `gorm:"uniqueIndex:idx_user_contest;index" json:"contest_id"`
}

type ContestAnnouncement struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContestID string `gorm:"index" json:"contest_id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	CreatedByID string `json:"created_by_id"`
}

type ContestProblem struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ContestID string `gorm:"index" json:"contest_id"`

	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `gorm:"default:MEDIUM" json:"difficulty"`
	Points      int        `gorm:"default:100" json:"points"`

	Constraints  string `json:"constraints"`
	InputFormat  string `json:"input_format"`
	OutputFormat string `json:"output_format"`
	Examples     string `json:"examples"`

	TimeLimitMS   int `gorm:"default:2000" json:"time_limit_ms"`
	MemoryLimitMB int `gorm:"default:256" json:"memory_limit_mb"`

	Order int `gorm:"index" json:"order"`

	TotalSubmissions    int `json:"total_submissions"`
	AcceptedSubmissions int `json:"accepted_submissions"`
	TotalSolved         int `json:"total_solved"`

	CreatedByID string `json:"created_by_id"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`
}

func (p *ContestProblem) AcceptanceRate() float64 {
	if p.TotalSubmissions == 0 {
		return 0
	}
	return math.Round(float64(p.AcceptedSubmissions)/float64(p.TotalSubmissions)*10000) / 100
}

type ContestTestCase struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time

	ProblemID string       `gorm:"index" json:"problem_id"`
	TestType  TestCaseType `gorm:"default:HIDDEN" json:"test_type"`

	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`

	Order    int  `gorm:"index" json:"order"`
	IsActive bool `gorm:"default:true" json:"is_active"`
}

// ContestSubmission aggregates pass counters during judging without
// persisting one row per test case.
type ContestSubmission struct {
	ID        string `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ContestID string         `gorm:"index" json:"contest_id"`
	UserID    string         `gorm:"index" json:"user_id"`
	User      User           `json:"user"`
	ProblemID string         `gorm:"index" json:"problem_id"`
	Problem   ContestProblem `json:"problem"`

	Code     string   `json:"code"`
	Language Language `json:"language"`

	Verdict Verdict `gorm:"index;default:PENDING" json:"verdict"`

	ExecutionTimeMS *int `json:"execution_time_ms"`
	MemoryUsedKB    *int `json:"memory_used_kb"`

	TestCasesPassed int `json:"test_cases_passed"`
	TotalTestCases  int `json:"total_test_cases"`

	ErrorMessage      string `json:"error_message"`
	CompilationOutput string `json:"compilation_output"`
}

func (s *ContestSubmission) IsAccepted() bool {
	return s.Verdict == VerdictAccepted
}

// ContestParticipant caches one user's score, time and rank within one
// contest. Rank is a projection recomputed after every scoring submission.
type ContestParticipant struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ContestID string `gorm:"uniqueIndex:idx_contest_user;index" json:"contest_id"`
	UserID    string `gorm:"uniqueIndex:idx_contest_user" json:"user_id"`
	User      User   `json:"user"`

	TotalScore     int `json:"total_score"`
	ProblemsSolved int `json:"problems_solved"`

	// Minutes from contest start to the last submission of any kind.
	TotalTimeMinutes   int `json:"total_time_minutes"`
	PenaltyTimeMinutes int `json:"penalty_time_minutes"`

	Rank *int `json:"rank"`

	LastSubmissionAt *time.Time `json:"last_submission_time"`
}

// ContestProblemStatus tracks one participant's progress on one contest
// problem: attempts, wrong attempts before first acceptance, and points.
type ContestProblemStatus struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time
	UpdatedAt time.Time

	ParticipantID uint   `gorm:"uniqueIndex:idx_participant_problem" json:"participant_id"`
	ProblemID     string `gorm:"uniqueIndex:idx_participant_problem" json:"problem_id"`

	Status SolveState `gorm:"default:ATTEMPTED" json:"status"`

	Score         int `json:"score"`
	Attempts      int `json:"attempts"`
	WrongAttempts int `json:"wrong_attempts"`

	SolveTimeMinutes *int       `json:"solve_time_minutes"`
	FirstSolvedAt    *time.Time `json:"first_solved_at"`
}

// UserActivity is one row per (user, calendar day) for the heat map and
// streak computation. Date is stored as YYYY-MM-DD.
type UserActivity struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID string `gorm:"uniqueIndex:idx_user_date" json:"user_id"`
	Date   string `gorm:"uniqueIndex:idx_user_date" json:"date"`

	SubmissionsCount int `json:"submissions_count"`
	ProblemsSolved   int `json:"problems_solved"`
}

type AchievementType string

const (
	AchievementFirstSolve    AchievementType = "FIRST_SOLVE"
	AchievementSolve10       AchievementType = "SOLVE_10"
	AchievementSolve50       AchievementType = "SOLVE_50"
	AchievementSolve100      AchievementType = "SOLVE_100"
	AchievementSolveStreak7  AchievementType = "SOLVE_STREAK_7"
	AchievementSolveStreak30 AchievementType = "SOLVE_STREAK_30"
)

type Achievement struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time

	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        AchievementType `gorm:"uniqueIndex" json:"type"`
	Icon        string          `json:"icon"`
}

type UserAchievement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"earned_at"`

	UserID        string `gorm:"uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID uint   `gorm:"uniqueIndex:idx_user_achievement" json:"achievement_id"`

	Achievement Achievement `json:"achievement"`
}

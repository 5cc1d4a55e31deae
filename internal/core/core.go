package core

import "time"

// Stage is a step of the generation flow.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageSelectingKeyword  Stage = "selecting_keyword"
	StageGeneratingTopics  Stage = "generating_topics"
	StageSelectingTopic    Stage = "selecting_topic"
	StageGeneratingArticle Stage = "generating_article"
	StageGeneratingImage   Stage = "generating_image"
)

// Label returns the Korean label shown to the user for a stage.
func (s Stage) Label() string {
	switch s {
	case StageSelectingKeyword:
		return "키워드 선택"
	case StageGeneratingTopics:
		return "주제 생성"
	case StageSelectingTopic:
		return "주제 선택"
	case StageGeneratingArticle:
		return "글 생성"
	case StageGeneratingImage:
		return "이미지 생성"
	default:
		return "대기"
	}
}

// NoticeLevel distinguishes informational notices from actionable errors.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing notification emitted by the orchestrator.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Stage   Stage       `json:"stage"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// Article is a generated blog post.
type Article struct {
	Topic       string    `json:"topic"`        // Title the article was written for
	Keyword     string    `json:"keyword"`      // Keyword the topic was generated from
	Markdown    string    `json:"markdown"`     // Body as returned by the model
	HTML        string    `json:"html"`         // Rendered body
	Headings    []string  `json:"headings"`     // h2/h3 outline of the rendered body
	CharCount   int       `json:"char_count"`   // Plain text characters, whitespace excluded
	ModelUsed   string    `json:"model_used"`   // Text model that produced the body
	GeneratedAt time.Time `json:"generated_at"` // Timestamp when the article was generated
}

// ImageSource identifies where an image came from.
type ImageSource string

const (
	ImageSourceSearch    ImageSource = "pixabay"
	ImageSourceGenerated ImageSource = "generated"
)

// Image is the picture attached to an article.
type Image struct {
	Source    ImageSource `json:"source"`
	URL       string      `json:"url,omitempty"`        // Remote URL for searched images
	Path      string      `json:"path,omitempty"`       // Local file for generated images
	Prompt    string      `json:"prompt,omitempty"`     // Diffusion prompt or search query
	Tags      string      `json:"tags,omitempty"`       // Stock photo tags
	Views     int         `json:"views,omitempty"`      // Stock photo popularity
	Downloads int         `json:"downloads,omitempty"`  // Stock photo popularity
	CreatedAt time.Time   `json:"created_at,omitempty"` // Timestamp when the image was attached
}

// Session is the mutable state of one generation flow.
type Session struct {
	ID                string    `json:"id"`
	Keyword           string    `json:"keyword"`
	Category          string    `json:"category,omitempty"`
	Candidates        []string  `json:"candidates"`
	Duplicates        []string  `json:"duplicates"` // candidates the topic ledger flags
	Topic             string    `json:"topic"`
	Article           *Article  `json:"article,omitempty"`
	Image             *Image    `json:"image,omitempty"`
	Stage             Stage     `json:"stage"`
	LastCompleted     Stage     `json:"last_completed"`
	Running           bool      `json:"running"`
	Cancelled         bool      `json:"cancelled"`
	DuplicateOverride bool      `json:"duplicate_override"`
	Attempts          int       `json:"attempts"`
	Notices           []Notice  `json:"notices"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// NewSession returns a session in its default idle state.
func NewSession() Session {
	return Session{
		Stage:         StageIdle,
		LastCompleted: StageIdle,
		Candidates:    []string{},
		Duplicates:    []string{},
		Notices:       []Notice{},
	}
}

// Clone returns a deep copy that can be handed to other goroutines.
func (s Session) Clone() Session {
	out := s
	out.Candidates = append([]string{}, s.Candidates...)
	out.Duplicates = append([]string{}, s.Duplicates...)
	out.Notices = append([]Notice{}, s.Notices...)
	if s.Article != nil {
		a := *s.Article
		a.Headings = append([]string{}, s.Article.Headings...)
		out.Article = &a
	}
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	return out
}

// RunOutcome summarizes how a run ended.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeFailed    RunOutcome = "failed"
	OutcomeCancelled RunOutcome = "cancelled"
)

// RunReport is emitted once per orchestrator run.
type RunReport struct {
	SessionID         string        `json:"session_id"`
	Keyword           string        `json:"keyword"`
	Topic             string        `json:"topic"`
	Outcome           RunOutcome    `json:"outcome"`
	FailedStage       Stage         `json:"failed_stage,omitempty"`
	LastCompleted     Stage         `json:"last_completed"`
	Retries           int           `json:"retries"`
	DuplicateOverride bool          `json:"duplicate_override"`
	HasImage          bool          `json:"has_image"`
	Duration          time.Duration `json:"duration"`
	Error             string        `json:"error,omitempty"`
}

// StoreStats represents statistics about the local key/value store.
type StoreStats struct {
	KeyCount    int       `json:"key_count"`
	Credentials int       `json:"credentials"`
	SizeBytes   int64     `json:"size_bytes"`
	LastUpdated time.Time `json:"last_updated"`
}

// Profile is the backend user profile row.
type Profile struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"display_name"`
	PreferredCategory string    `json:"preferred_category"`
	PreventDuplicates bool      `json:"prevent_duplicates"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// KeywordUsage records that a keyword was used for a generated article.
type KeywordUsage struct {
	ID       int64     `json:"id"`
	UserID   string    `json:"user_id"`
	Keyword  string    `json:"keyword"`
	Category string    `json:"category"`
	UsedAt   time.Time `json:"used_at"`
}

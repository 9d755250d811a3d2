package search

// DocKind identifies the target entity of a search query.
type DocKind string

const (
	DocMessage DocKind = "message"
	DocAgent   DocKind = "agent"
	DocProject DocKind = "project"
)

// Importance mirrors the message importance enum.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
	ImportanceUrgent Importance = "urgent"
)

// ValidImportance reports whether s names a recognized importance level.
func ValidImportance(s string) (Importance, bool) {
	switch Importance(s) {
	case ImportanceLow, ImportanceNormal, ImportanceHigh, ImportanceUrgent:
		return Importance(s), true
	default:
		return "", false
	}
}

// Direction selects inbox or outbox when paired with an agent name facet.
type Direction string

const (
	DirectionInbox  Direction = "inbox"
	DirectionOutbox Direction = "outbox"
)

// Ranking selects the ordering family for a query.
type Ranking string

const (
	RankingRelevance Ranking = "relevance"
	RankingRecency   Ranking = "recency"
)

// Method identifies which query execution strategy the planner selected.
type Method string

const (
	MethodFts        Method = "fts"
	MethodLike       Method = "like"
	MethodFilterOnly Method = "filter_only"
	MethodEmpty      Method = "empty"
)

// TimeRange bounds created_ts, either side optional.
type TimeRange struct {
	MinTS *int64
	MaxTS *int64
}

// ScopeKind selects how a query is restricted to a viewer's visible rows.
type ScopeKind string

const (
	ScopeUnrestricted  ScopeKind = "unrestricted"
	ScopeCallerScoped  ScopeKind = "caller_scoped"
	ScopeProjectSet    ScopeKind = "project_set"
)

// ScopeSpec describes the scope facet of a SearchQuery.
type ScopeSpec struct {
	Kind       ScopeKind
	Agent      *AgentRef
	ProjectIDs []int64
}

// AgentRef identifies an agent by project and name.
type AgentRef struct {
	ProjectID int64
	AgentID   int64
}

// SearchQuery is the typed input to the planner.
type SearchQuery struct {
	Text    string
	DocKind DocKind

	ProjectID   *int64
	ProductID   *int64
	Importance  []Importance
	Direction   *Direction
	AgentName   *string
	ThreadID    *int64
	AckRequired *bool
	TimeRange   TimeRange

	Ranking Ranking
	Limit   int
	Cursor  string
	Explain bool

	Scope     ScopeSpec
	ScopeCtx  *ScopeContext
	Redaction RedactionPolicy
}

// ExplainInfo is the language-neutral explain payload attached to a Plan
// when the caller requested it.
type ExplainInfo struct {
	Method           Method
	UsedLikeFallback bool
	NormalizedQuery  string
	Facets           []string
	FacetCount       int
	ScopeLabel       string
	SQL              string
	EffectiveLimit   int
}

// Plan is the pure, deterministic output of Plan(). Two calls to Plan with
// an equal SearchQuery must produce byte-identical SQL and parameter lists.
type Plan struct {
	Method           Method
	SQL              string
	Params           []any
	FacetsApplied    []string
	ScopeEnforced    bool
	ScopeLabel       string
	NormalizedQuery  string
	UsedLikeFallback bool
	EffectiveLimit   int
	Explain          *ExplainInfo
}

// Result is the projected row returned to a caller for one search hit.
type Result struct {
	DocKind  DocKind
	ID       int64
	ProjectID *int64

	Title string
	Body  string

	Score       *float64
	Importance  *Importance
	AckRequired *bool
	CreatedTS   *int64
	ThreadID    *int64
	FromAgent   *string

	ReasonCodes  []string
	ScoreFactors []string

	Redacted       bool
	RedactionNote  string

	// SenderRef identifies the message's sender for scope evaluation; unset
	// for non-message doc kinds.
	SenderRef *AgentRef
}

const (
	minLimit     = 1
	maxLimit     = 1000
	defaultLimit = 50
	maxLikeTerms = 8
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n < minLimit {
		return minLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

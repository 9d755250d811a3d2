package search

import (
	"fmt"
	"strings"

	"agentmail-search/internal/logging"
)

// tableFor returns the base table and FTS virtual table name for a doc kind.
func tableFor(kind DocKind) (table, ftsTable string) {
	switch kind {
	case DocAgent:
		return "agents", "fts_agents"
	case DocProject:
		return "projects", "fts_projects"
	default:
		return "messages", "fts_messages"
	}
}

func hasAnyFacet(q *SearchQuery) bool {
	if q.ProjectID != nil || q.ProductID != nil || len(q.Importance) > 0 {
		return true
	}
	if q.AgentName != nil || q.ThreadID != nil || q.AckRequired != nil {
		return true
	}
	if q.TimeRange.MinTS != nil || q.TimeRange.MaxTS != nil {
		return true
	}
	return false
}

// Plan translates a SearchQuery into a deterministic Plan. Calling Plan
// twice with an equal SearchQuery always returns byte-identical SQL,
// parameters, facets_applied, and method.
func Plan(q SearchQuery) Plan {
	timer := logging.StartTimer(logging.CategorySearch, "Plan")
	defer timer.Stop()

	q.Limit = clampLimit(q.Limit)

	method, normalized, usedLike := selectMethod(&q)

	if method == MethodEmpty {
		p := Plan{
			Method:           MethodEmpty,
			SQL:              "",
			Params:           nil,
			FacetsApplied:    nil,
			ScopeEnforced:    false,
			ScopeLabel:       scopeLabel(q.Scope),
			NormalizedQuery:  normalized,
			UsedLikeFallback: false,
			EffectiveLimit:   q.Limit,
		}
		if q.Explain {
			p.Explain = &ExplainInfo{
				Method: MethodEmpty, UsedLikeFallback: false, NormalizedQuery: normalized,
				Facets: nil, FacetCount: 0, ScopeLabel: p.ScopeLabel, SQL: "", EffectiveLimit: q.Limit,
			}
		}
		return p
	}

	table, ftsTable := tableFor(q.DocKind)

	var params []any
	var whereParts []string
	var facetsApplied []string

	switch method {
	case MethodFts:
		whereParts = append(whereParts, fmt.Sprintf("%s MATCH ?", ftsTable))
		params = append(params, normalized)
	case MethodLike:
		likeParts := make([]string, 0, len(likeTermsFor(&q)))
		for _, term := range likeTermsFor(&q) {
			likeParts = append(likeParts, fmt.Sprintf("%s.title LIKE ? OR %s.body LIKE ?", table, table))
			pattern := "%" + term + "%"
			params = append(params, pattern, pattern)
		}
		if len(likeParts) > 0 {
			whereParts = append(whereParts, "("+strings.Join(likeParts, " OR ")+")")
		}
	}

	facetClauses, facetParams, applied := buildFacetClauses(&q, table)
	whereParts = append(whereParts, facetClauses...)
	params = append(params, facetParams...)
	facetsApplied = append(facetsApplied, applied...)

	if q.Scope.Kind == ScopeProjectSet && len(q.Scope.ProjectIDs) > 0 && q.ProjectID == nil {
		placeholders := make([]string, len(q.Scope.ProjectIDs))
		for i, id := range q.Scope.ProjectIDs {
			placeholders[i] = "?"
			params = append(params, id)
		}
		whereParts = append(whereParts, fmt.Sprintf("%s.project_id IN (%s)", table, strings.Join(placeholders, ", ")))
		facetsApplied = append(facetsApplied, "scope_project_set")
	}

	scopeEnforced := false
	if q.DocKind == DocMessage && q.ScopeCtx != nil {
		scopeSQL, scopeParams := BuildScopeSQLClauses(*q.ScopeCtx, table)
		if scopeSQL != "" {
			whereParts = append(whereParts, scopeSQL)
			params = append(params, scopeParams...)
			scopeEnforced = true
		}
	}

	recency := method != MethodFts || q.Ranking == RankingRecency
	orderSQL := orderClause(recency, table)

	if cursor, ok := DecodeCursor(q.Cursor); ok {
		if recency {
			whereParts = append(whereParts, fmt.Sprintf("(%s.created_ts, %s.id) < (?, ?)", table, table))
			params = append(params, cursor.Score(), cursor.ID)
		} else {
			whereParts = append(whereParts, fmt.Sprintf("(%s.score, %s.id) > (?, ?)", table, table))
			params = append(params, cursor.Score(), cursor.ID)
		}
	}

	sql := fmt.Sprintf("SELECT * FROM %s", table)
	if method == MethodFts {
		sql += fmt.Sprintf(" JOIN %s ON %s.id = %s.rowid", ftsTable, table, ftsTable)
	}
	if len(whereParts) > 0 {
		sql += " WHERE " + strings.Join(whereParts, " AND ")
	}
	sql += " ORDER BY " + orderSQL + " LIMIT ?"
	params = append(params, q.Limit)

	p := Plan{
		Method:           method,
		SQL:              sql,
		Params:           params,
		FacetsApplied:    facetsApplied,
		ScopeEnforced:    scopeEnforced,
		ScopeLabel:       scopeLabel(q.Scope),
		NormalizedQuery:  normalized,
		UsedLikeFallback: usedLike,
		EffectiveLimit:   q.Limit,
	}

	if q.Explain {
		p.Explain = &ExplainInfo{
			Method:           method,
			UsedLikeFallback: usedLike,
			NormalizedQuery:  normalized,
			Facets:           facetsApplied,
			FacetCount:       len(facetsApplied),
			ScopeLabel:       p.ScopeLabel,
			SQL:              sql,
			EffectiveLimit:   q.Limit,
		}
	}

	return p
}

func selectMethod(q *SearchQuery) (method Method, normalized string, usedLike bool) {
	if q.Text != "" {
		if s, ok := Sanitize(q.Text); ok {
			return MethodFts, s, false
		}
		if len(likeTermsFor(q)) > 0 {
			return MethodLike, "", true
		}
	}
	if hasAnyFacet(q) {
		return MethodFilterOnly, "", false
	}
	return MethodEmpty, "", false
}

func likeTermsFor(q *SearchQuery) []string {
	return ExtractLikeTerms(q.Text, maxLikeTerms)
}

func orderClause(recency bool, table string) string {
	if recency {
		return fmt.Sprintf("%s.created_ts DESC, %s.id DESC", table, table)
	}
	return fmt.Sprintf("%s.score ASC, %s.id ASC", table, table)
}

func scopeLabel(s ScopeSpec) string {
	switch s.Kind {
	case ScopeCallerScoped:
		return "caller_scoped"
	case ScopeProjectSet:
		return "project_set"
	default:
		return "unrestricted"
	}
}

// buildFacetClauses generates bound-parameter WHERE fragments for every
// recognized facet that is set on q, and the stable facet names applied.
func buildFacetClauses(q *SearchQuery, table string) (clauses []string, params []any, applied []string) {
	if q.ProjectID != nil {
		clauses = append(clauses, fmt.Sprintf("%s.project_id = ?", table))
		params = append(params, *q.ProjectID)
		applied = append(applied, "project_id")
	} else if q.ProductID != nil {
		clauses = append(clauses, fmt.Sprintf("%s.project_id IN (SELECT project_id FROM product_project_links WHERE product_id = ?)", table))
		params = append(params, *q.ProductID)
		applied = append(applied, "product_id")
	}

	if len(q.Importance) > 0 {
		placeholders := make([]string, len(q.Importance))
		for i, imp := range q.Importance {
			placeholders[i] = "?"
			params = append(params, string(imp))
		}
		clauses = append(clauses, fmt.Sprintf("%s.importance IN (%s)", table, strings.Join(placeholders, ", ")))
		applied = append(applied, "importance")
	}

	if q.AgentName != nil {
		outboxClause := fmt.Sprintf("%s.sender_agent_id IN (SELECT id FROM agents WHERE name = ?)", table)
		inboxClause := fmt.Sprintf("%s.id IN (SELECT message_id FROM message_recipients WHERE agent_id IN (SELECT id FROM agents WHERE name = ?))", table)
		switch {
		case q.Direction != nil && *q.Direction == DirectionOutbox:
			clauses = append(clauses, outboxClause)
			params = append(params, *q.AgentName)
		case q.Direction != nil && *q.Direction == DirectionInbox:
			clauses = append(clauses, inboxClause)
			params = append(params, *q.AgentName)
		default:
			clauses = append(clauses, fmt.Sprintf("(%s OR %s)", outboxClause, inboxClause))
			params = append(params, *q.AgentName, *q.AgentName)
		}
		applied = append(applied, "agent_name")
	}

	if q.ThreadID != nil {
		clauses = append(clauses, fmt.Sprintf("%s.thread_id = ?", table))
		params = append(params, *q.ThreadID)
		applied = append(applied, "thread_id")
	}

	if q.AckRequired != nil {
		clauses = append(clauses, fmt.Sprintf("%s.ack_required = ?", table))
		params = append(params, *q.AckRequired)
		applied = append(applied, "ack_required")
	}

	if q.TimeRange.MinTS != nil {
		clauses = append(clauses, fmt.Sprintf("%s.created_ts >= ?", table))
		params = append(params, *q.TimeRange.MinTS)
		applied = append(applied, "time_range_min")
	}
	if q.TimeRange.MaxTS != nil {
		clauses = append(clauses, fmt.Sprintf("%s.created_ts <= ?", table))
		params = append(params, *q.TimeRange.MaxTS)
		applied = append(applied, "time_range_max")
	}

	return clauses, params, applied
}

package database

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/xavierca1/leadpool/internal/entity"
)

// psql renders placeholders as $n. Builders nested into a psql statement keep
// squirrel's default "?" format; the outer statement numbers them.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// latestRecordJoin attaches each lead's latest live follow-up record as
// "cur", which carries the derived status and current owner.
const latestRecordJoin = `LEFT JOIN LATERAL (
		SELECT f.author_id, f.result, f.created_at
		FROM follow_up_records f
		WHERE f.lead_id = l.id AND f.deleted_at IS NULL
		ORDER BY f.id DESC
		LIMIT 1
	) cur ON TRUE`

// leadsFrom starts a SELECT over the lead pool joined with the latest record.
// Pass sq.Select for nested sub-selects and psql.Select for top-level ones.
func leadsFrom(b sq.SelectBuilder) sq.SelectBuilder {
	return b.From("leads l").JoinClause(latestRecordJoin)
}

// ScopePredicate is the SQL form of a caller's visibility, a condition over
// the current-owner column "cur.author_id".
func ScopePredicate(v entity.Visibility) sq.Sqlizer {
	if v.All {
		return sq.Expr("TRUE")
	}
	return sq.Eq{"cur.author_id": v.OwnerID}
}

// leadWhere is the shared WHERE clause of every lead read path, so the list,
// its total, the stats counters and the conversion count describe one set.
func leadWhere(v entity.Visibility, f entity.LeadFilter) sq.And {
	where := sq.And{sq.Eq{"l.deleted_at": nil}}

	if !v.All {
		where = append(where, ScopePredicate(v))
	}
	if f.Source != "" {
		where = append(where, sq.Eq{"l.source": f.Source})
	}
	if f.Status != "" {
		where = append(where, sq.Expr("COALESCE(cur.result, 'NEW') = ?", string(f.Status)))
	}
	if f.OwnerID != nil {
		where = append(where, sq.Eq{"cur.author_id": *f.OwnerID})
	}
	if f.Keyword != "" {
		p := likePattern(f.Keyword)
		where = append(where, sq.Or{
			sq.ILike{"l.name": p},
			sq.ILike{"l.phone": p},
			sq.ILike{"l.remark": p},
			sq.Expr(`EXISTS (SELECT 1 FROM follow_up_records fk
				WHERE fk.lead_id = l.id AND fk.deleted_at IS NULL AND fk.content ILIKE ?)`, p),
		})
	}
	return where
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(keyword string) string {
	return "%" + likeEscaper.Replace(keyword) + "%"
}

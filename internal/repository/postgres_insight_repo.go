package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/cleannote/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresInsightRepo はPostgreSQLを使用した週次インサイトリポジトリ。
type PostgresInsightRepo struct {
	db *sql.DB
}

// NewPostgresInsightRepo はPostgresInsightRepoを生成する。
func NewPostgresInsightRepo(db *sql.DB) *PostgresInsightRepo {
	return &PostgresInsightRepo{db: db}
}

// Upsert は(user_id, week_start)をキーに冪等にUPSERTする。
// まずINSERTを試み、一意制約違反（並行生成の競合か既存行）の場合は
// 同キーのUPDATEにフォールバックする。後勝ちセマンティクス。
func (r *PostgresInsightRepo) Upsert(ctx context.Context, insight *model.WeeklyInsight) (*model.WeeklyInsight, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weekly_insights (id, user_id, week_start, week_end, content, short_summary, generated_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		insight.ID, insight.UserID, insight.WeekStart, insight.WeekEnd,
		insight.Content, insight.ShortSummary, insight.GeneratedAt, insight.CreatedAt,
	)
	if err == nil {
		return r.FindByUserAndWeekStart(ctx, insight.UserID, insight.WeekStart)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return nil, fmt.Errorf("failed to insert weekly insight: %w", err)
	}

	// 既存行あり: find-then-updateにフォールバックする
	_, err = r.db.ExecContext(ctx,
		`UPDATE weekly_insights
		 SET week_end = $1, content = $2, short_summary = $3, generated_at = $4
		 WHERE user_id = $5 AND week_start = $6`,
		insight.WeekEnd, insight.Content, insight.ShortSummary, insight.GeneratedAt,
		insight.UserID, insight.WeekStart,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update weekly insight: %w", err)
	}

	return r.FindByUserAndWeekStart(ctx, insight.UserID, insight.WeekStart)
}

// FindByUserAndWeekStart はユーザーIDと週開始日でインサイトを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresInsightRepo) FindByUserAndWeekStart(ctx context.Context, userID, weekStart string) (*model.WeeklyInsight, error) {
	insight := &model.WeeklyInsight{}
	var shortSummary sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, week_start, week_end, content, short_summary, generated_at, created_at
		 FROM weekly_insights
		 WHERE user_id = $1 AND week_start = $2`,
		userID, weekStart,
	).Scan(&insight.ID, &insight.UserID, &insight.WeekStart, &insight.WeekEnd,
		&insight.Content, &shortSummary, &insight.GeneratedAt, &insight.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find weekly insight: %w", err)
	}

	insight.ShortSummary = nullStringPtr(shortSummary)
	return insight, nil
}

// ListByUser はユーザーの全インサイトを週開始日降順で返す。
func (r *PostgresInsightRepo) ListByUser(ctx context.Context, userID string) ([]*model.WeeklyInsight, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, week_start, week_end, content, short_summary, generated_at, created_at
		 FROM weekly_insights
		 WHERE user_id = $1
		 ORDER BY week_start DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query weekly insights: %w", err)
	}
	defer rows.Close()

	var insights []*model.WeeklyInsight
	for rows.Next() {
		insight := &model.WeeklyInsight{}
		var shortSummary sql.NullString
		if err := rows.Scan(&insight.ID, &insight.UserID, &insight.WeekStart, &insight.WeekEnd,
			&insight.Content, &shortSummary, &insight.GeneratedAt, &insight.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan weekly insight: %w", err)
		}
		insight.ShortSummary = nullStringPtr(shortSummary)
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weekly insights: %w", err)
	}

	return insights, nil
}

// compile-time interface check
var _ InsightRepository = (*PostgresInsightRepo)(nil)

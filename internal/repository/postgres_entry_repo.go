package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/hitoshi/cleannote/internal/model"
)

// entryColumns はentriesテーブルのSELECT句。scanEntryの列順と一致させること。
const entryColumns = `id, user_id, title_raw, content_raw, title_tidied, content_tidied, tidied_at,
	        mood_label, mood_score, category, day_date, week_index,
	        title_manual, mood_manual, category_manual, date_manual,
	        created_at, updated_at`

// PostgresEntryRepo はPostgreSQLを使用したエントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry は1行をmodel.Entryに変換する。NULL許容列はsql.Null系を経由する。
func scanEntry(s rowScanner) (*model.Entry, error) {
	entry := &model.Entry{}
	var (
		titleRaw      sql.NullString
		titleTidied   sql.NullString
		contentTidied sql.NullString
		tidiedAt      sql.NullTime
		moodLabel     sql.NullString
		moodScore     sql.NullFloat64
		category      sql.NullString
		dayDate       sql.NullTime
		weekIndex     sql.NullInt64
	)

	err := s.Scan(
		&entry.ID, &entry.UserID, &titleRaw, &entry.ContentRaw, &titleTidied, &contentTidied, &tidiedAt,
		&moodLabel, &moodScore, &category, &dayDate, &weekIndex,
		&entry.TitleManual, &entry.MoodManual, &entry.CategoryManual, &entry.DateManual,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.TitleRaw = nullStringPtr(titleRaw)
	entry.TitleTidied = nullStringPtr(titleTidied)
	entry.ContentTidied = nullStringPtr(contentTidied)
	entry.MoodLabel = nullStringPtr(moodLabel)
	entry.Category = nullStringPtr(category)
	if tidiedAt.Valid {
		t := tidiedAt.Time
		entry.TidiedAt = &t
	}
	if moodScore.Valid {
		v := moodScore.Float64
		entry.MoodScore = &v
	}
	if dayDate.Valid {
		t := dayDate.Time
		entry.DayDate = &t
	}
	if weekIndex.Valid {
		v := int(weekIndex.Int64)
		entry.WeekIndex = &v
	}

	return entry, nil
}

// nullStringPtr はsql.NullStringを*stringに変換する。
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullableInt は*intをINSERT/UPDATE用のany値に変換する。
func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// Create はエントリを作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (id, user_id, title_raw, content_raw, title_tidied, content_tidied, tidied_at,
		         mood_label, mood_score, category, day_date, week_index,
		         title_manual, mood_manual, category_manual, date_manual,
		         created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		entry.ID, entry.UserID, entry.TitleRaw, entry.ContentRaw, entry.TitleTidied, entry.ContentTidied, entry.TidiedAt,
		entry.MoodLabel, entry.MoodScore, entry.Category, entry.DayDate, nullableInt(entry.WeekIndex),
		entry.TitleManual, entry.MoodManual, entry.CategoryManual, entry.DateManual,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// FindByID は指定IDのエントリを取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`,
		id,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry by ID: %w", err)
	}
	return entry, nil
}

// Update はエントリを全カラム上書き更新する。
func (r *PostgresEntryRepo) Update(ctx context.Context, entry *model.Entry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE entries
		 SET title_raw = $1, content_raw = $2, title_tidied = $3, content_tidied = $4, tidied_at = $5,
		     mood_label = $6, mood_score = $7, category = $8, day_date = $9, week_index = $10,
		     title_manual = $11, mood_manual = $12, category_manual = $13, date_manual = $14,
		     updated_at = $15
		 WHERE id = $16`,
		entry.TitleRaw, entry.ContentRaw, entry.TitleTidied, entry.ContentTidied, entry.TidiedAt,
		entry.MoodLabel, entry.MoodScore, entry.Category, entry.DayDate, nullableInt(entry.WeekIndex),
		entry.TitleManual, entry.MoodManual, entry.CategoryManual, entry.DateManual,
		entry.UpdatedAt, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry not found: %s", entry.ID)
	}
	return nil
}

// Delete は指定IDのエントリを削除する。
func (r *PostgresEntryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("entry not found: %s", id)
	}
	return nil
}

// ListByUser はユーザーのエントリ一覧を作成日時降順で返す。
// opts.Searchはタイトル・本文（原文・整形済みの両方）へのILIKE部分一致、
// opts.From/Toは内容日（day_dateがあればそれ、なければcreated_at）の両端含む範囲。
func (r *PostgresEntryRepo) ListByUser(ctx context.Context, userID string, opts EntryListOptions) ([]*model.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id = $1`
	args := []any{userID}

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query += ` AND (title_raw ILIKE $` + strconv.Itoa(len(args)+1) +
			` OR title_tidied ILIKE $` + strconv.Itoa(len(args)+1) +
			` OR content_raw ILIKE $` + strconv.Itoa(len(args)+1) +
			` OR content_tidied ILIKE $` + strconv.Itoa(len(args)+1) + `)`
		args = append(args, pattern)
	}
	if opts.From != nil {
		query += ` AND COALESCE(day_date, created_at) >= $` + strconv.Itoa(len(args)+1)
		args = append(args, *opts.From)
	}
	if opts.To != nil {
		query += ` AND COALESCE(day_date, created_at) <= $` + strconv.Itoa(len(args)+1)
		args = append(args, *opts.To)
	}

	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(len(args)+1)
		args = append(args, opts.Limit)
	}

	return r.queryEntries(ctx, query, args...)
}

// ListSinceEitherDate はday_dateまたはcreated_atがsince以降のエントリを返す。
func (r *PostgresEntryRepo) ListSinceEitherDate(ctx context.Context, userID string, since time.Time) ([]*model.Entry, error) {
	return r.queryEntries(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE user_id = $1 AND (day_date >= $2 OR created_at >= $2)
		 ORDER BY created_at DESC`,
		userID, since,
	)
}

// ListBetweenEitherDate はday_dateまたはcreated_atが[from, to]に入るエントリを
// tidied_at降順（NULL末尾）、created_at降順で返す。
func (r *PostgresEntryRepo) ListBetweenEitherDate(ctx context.Context, userID string, from, to time.Time, limit int) ([]*model.Entry, error) {
	return r.queryEntries(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE user_id = $1
		   AND ((day_date >= $2 AND day_date <= $3) OR (created_at >= $2 AND created_at <= $3))
		 ORDER BY tidied_at DESC NULLS LAST, created_at DESC
		 LIMIT $4`,
		userID, from, to, limit,
	)
}

// ListByCreatedAtRange はcreated_atが[from, to]に入るエントリを昇順で返す。
func (r *PostgresEntryRepo) ListByCreatedAtRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Entry, error) {
	return r.queryEntries(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
		 ORDER BY created_at ASC`,
		userID, from, to,
	)
}

// queryEntries はクエリを実行して全行をmodel.Entryに変換する。
func (r *PostgresEntryRepo) queryEntries(ctx context.Context, query string, args ...any) ([]*model.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)

package store

import (
	"context"
	"database/sql"
	"fmt"

	"fknsrs.biz/p/ytstats/internal/ctxdb"
)

var schemaStatements = []string{
	`create table if not exists video_stats (
		id integer primary key autoincrement,
		video_id text not null unique,
		channel_id text,
		title text,
		description text,
		upload_time text,
		duration integer,
		watch_url text,
		view_count integer,
		like_count integer,
		dislike_count integer,
		comment_count integer,
		visibility text default null,
		is_short boolean default false,
		show text default null,
		episode_num integer default null,
		thumbnail_url text default null,
		exclude_from_stats integer default 0,
		tags text default null,
		subscriber_count integer default null,
		collected_at text,
		last_updated text
	)`,
	`create table if not exists traffic_sources (
		id integer primary key autoincrement,
		video_id text not null,
		traffic_source text,
		views integer,
		collected_at text,
		foreign key (video_id) references video_stats (video_id)
	)`,
	`create table if not exists channel_stats (
		id integer primary key autoincrement,
		channel_id text not null,
		title text,
		description text,
		subscriber_count integer,
		view_count integer,
		video_count integer,
		published_at text,
		collected_at text
	)`,
	`create index if not exists video_stats_show on video_stats (show)`,
	`create index if not exists traffic_sources_video_id on traffic_sources (video_id)`,
	`create index if not exists channel_stats_channel_id on channel_stats (channel_id)`,
}

// Migrate creates any missing tables. Statements are additive, so it's safe
// to run against an existing database on every startup.
func Migrate(ctx context.Context) error {
	return ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store.Migrate: %w", err)
			}
		}

		return nil
	})
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type LevelList []logrus.Level

func (a LevelList) MarshalText() ([]byte, error) {
	if len(a) == 0 {
		return []byte("-"), nil
	}

	var s string

	for i, e := range a {
		if i != 0 {
			s += ","
		}

		s += e.String()
	}

	return []byte(s), nil
}

func (a *LevelList) UnmarshalText(d []byte) error {
	if string(d) == "" || string(d) == "-" {
		*a = LevelList{}
		return nil
	}

	var aa LevelList

	for _, e := range strings.Split(string(d), ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		l, err := logrus.ParseLevel(e)
		if err != nil {
			return fmt.Errorf("config.LevelList.UnmarshalText: could not parse value as logrus level: %w", err)
		}

		aa = append(aa, l)
	}

	*a = aa

	return nil
}

type LogQueries struct {
	Enabled    bool
	SlowerThan time.Duration
}

func (l LogQueries) String() string {
	if l.Enabled {
		if l.SlowerThan != 0 {
			return ">" + l.SlowerThan.String()
		}

		return "all"
	}

	return "none"
}

func (l LogQueries) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogQueries) UnmarshalText(d []byte) error {
	s := string(d)

	switch s {
	case "all":
		l.Enabled = true
		l.SlowerThan = 0
		return nil
	case "", "none":
		l.Enabled = false
		l.SlowerThan = 0
		return nil
	default:
		if s[0] == '>' && len(s) > 1 {
			d, err := time.ParseDuration(s[1:])
			if err != nil {
				return fmt.Errorf("config.LogQueries.UnmarshalText: could not parse value as duration: %w", err)
			}
			l.Enabled = true
			l.SlowerThan = d
			return nil
		}

		return fmt.Errorf("config.LogQueries.UnmarshalText: unrecognised input %q; valid options are none, all, or >x where x is a duration", s)
	}
}

func (l *LogQueries) IsZero() bool {
	return l.Enabled == false && l.SlowerThan == 0
}

type Config struct {
	Config         string       `name:"config" toml:"config" yaml:"config" help:"Config file location."`
	LogLevel       logrus.Level `name:"log_level" toml:"log_level" yaml:"log_level" help:"Global log level."`
	LogDebugLevels LevelList    `name:"log_debug_levels" toml:"log_debug_levels" yaml:"log_debug_levels" help:"Which log levels to include stack data on."`
	LogQueries     LogQueries   `name:"log_queries" toml:"log_queries" yaml:"log_queries" help:"Log SQL queries."`
	LogSORM        bool         `name:"log_sorm" toml:"log_sorm" yaml:"log_sorm" help:"Log SORM queries."`

	Database     string `name:"database" toml:"database" yaml:"database" help:"SQLite database location."`
	CachePath    string `name:"cache_path" toml:"cache_path" yaml:"cache_path" help:"Location for HTTP client cache."`
	DataPath     string `name:"data_path" toml:"data_path" yaml:"data_path" help:"Location for captions and exports."`
	PatternsPath string `name:"patterns_path" toml:"patterns_path" yaml:"patterns_path" help:"Show pattern rules file."`

	APIKey      string `name:"api_key" toml:"api_key" yaml:"api_key" help:"YouTube Data API key."`
	AccessToken string `name:"access_token" toml:"access_token" yaml:"access_token" help:"OAuth access token for analytics and caption access."`
	ChannelID   string `name:"channel_id" toml:"channel_id" yaml:"channel_id" help:"Default channel to collect."`

	MaxVideos        int  `name:"max_videos" toml:"max_videos" yaml:"max_videos" help:"Maximum videos to process per run."`
	IncludeAnalytics bool `name:"include_analytics" toml:"include_analytics" yaml:"include_analytics" help:"Fetch traffic source analytics per video."`
	ForceRemap       bool `name:"force_remap" toml:"force_remap" yaml:"force_remap" help:"Re-apply show patterns to videos that already have a mapping."`

	CaptionLanguage string `name:"caption_language" toml:"caption_language" yaml:"caption_language" help:"Caption track language code."`
	CaptionFormat   string `name:"caption_format" toml:"caption_format" yaml:"caption_format" help:"Caption file format (vtt or txt)."`

	DashboardAddr   string `name:"dashboard_addr" toml:"dashboard_addr" yaml:"dashboard_addr" help:"Address to listen on for the dashboard server."`
	DashboardMinify bool   `name:"dashboard_minify" toml:"dashboard_minify" yaml:"dashboard_minify" help:"Minify HTML/CSS/JS output."`
}

func (c Config) DataFile(section, name string) string {
	return filepath.Join(c.DataPath, section, name)
}

func (c Config) CaptionsDir() string {
	return filepath.Join(c.DataPath, "captions")
}

func (c Config) ExportsDir() string {
	return filepath.Join(c.DataPath, "exports")
}

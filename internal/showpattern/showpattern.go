package showpattern

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"fknsrs.biz/p/ytstats/internal/apierr"
)

// Rule maps video titles onto a show name and episode number. Rules are
// evaluated in list order; the first rule that resolves a show name wins. A
// rule whose title expression matches but whose show name can't be resolved is
// treated as a gate and evaluation continues with the next rule.
type Rule struct {
	Name         string `yaml:"name"`
	Enabled      bool   `yaml:"enabled"`
	TitleRegex   string `yaml:"title_regex"`
	ShowGroup    int    `yaml:"show_group"`
	EpisodeRegex string `yaml:"episode_regex"`
	EpisodeGroup int    `yaml:"episode_group"`

	titleRe   *regexp.Regexp
	episodeRe *regexp.Regexp
}

type Options struct {
	UpdateOnlyEmpty bool `yaml:"update_only_empty"`
	MaxVideos       int  `yaml:"max_videos"`
}

type Config struct {
	ShowPatterns []Rule  `yaml:"show_patterns"`
	Options      Options `yaml:"options"`
}

type fileConfig struct {
	ShowPatterns []fileRule  `yaml:"show_patterns"`
	Options      fileOptions `yaml:"options"`
}

type fileRule struct {
	Name         string `yaml:"name"`
	Enabled      *bool  `yaml:"enabled"`
	TitleRegex   string `yaml:"title_regex"`
	ShowGroup    int    `yaml:"show_group"`
	EpisodeRegex string `yaml:"episode_regex"`
	EpisodeGroup int    `yaml:"episode_group"`
}

type fileOptions struct {
	UpdateOnlyEmpty *bool `yaml:"update_only_empty"`
	MaxVideos       int   `yaml:"max_videos"`
}

// Load reads and compiles the rule list. Any problem here is a configuration
// error and fatal to the run, per the batch contract.
func Load(path string) (*Config, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindConfig, fmt.Sprintf("showpattern.Load: could not open %q", path), err)
	}
	defer fd.Close()

	var fc fileConfig
	if err := yaml.NewDecoder(fd).Decode(&fc); err != nil {
		return nil, apierr.Wrap(apierr.KindConfig, fmt.Sprintf("showpattern.Load: could not parse %q", path), err)
	}

	c := Config{
		Options: Options{UpdateOnlyEmpty: true},
	}

	if fc.Options.UpdateOnlyEmpty != nil {
		c.Options.UpdateOnlyEmpty = *fc.Options.UpdateOnlyEmpty
	}
	c.Options.MaxVideos = fc.Options.MaxVideos

	for i, fr := range fc.ShowPatterns {
		r := Rule{
			Name:         fr.Name,
			Enabled:      true,
			TitleRegex:   fr.TitleRegex,
			ShowGroup:    fr.ShowGroup,
			EpisodeRegex: fr.EpisodeRegex,
			EpisodeGroup: fr.EpisodeGroup,
		}

		if fr.Enabled != nil {
			r.Enabled = *fr.Enabled
		}

		if err := r.compile(); err != nil {
			return nil, apierr.Wrap(apierr.KindConfig, fmt.Sprintf("showpattern.Load: rule %d (%s)", i+1, fr.Name), err)
		}

		c.ShowPatterns = append(c.ShowPatterns, r)
	}

	return &c, nil
}

func (r *Rule) compile() error {
	if r.TitleRegex != "" {
		re, err := regexp.Compile(r.TitleRegex)
		if err != nil {
			return fmt.Errorf("could not compile title_regex: %w", err)
		}
		r.titleRe = re
	}

	if r.EpisodeRegex != "" {
		re, err := regexp.Compile(r.EpisodeRegex)
		if err != nil {
			return fmt.Errorf("could not compile episode_regex: %w", err)
		}
		r.episodeRe = re
	}

	return nil
}

// MustCompile fills in the compiled expressions on a hand-built rule list;
// tests and fixtures use it.
func MustCompile(rules []Rule) []Rule {
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			panic(err)
		}
	}

	return rules
}

// Resolve runs the title through the rule list and returns the first resolved
// show name together with an independently extracted episode number. It never
// fails; a title no rule claims yields (nil, nil). Identical inputs always
// produce identical outputs.
func Resolve(title string, rules []Rule) (*string, *int) {
	for i := range rules {
		r := &rules[i]

		if !r.Enabled || r.titleRe == nil {
			continue
		}

		m := r.titleRe.FindStringSubmatch(title)
		if m == nil {
			continue
		}

		// a configured capture group overrides the static name, but only when
		// the match actually produced that group; otherwise the static name
		// (possibly empty) stands
		show := r.Name
		if r.ShowGroup > 0 && r.ShowGroup < len(m) {
			show = strings.TrimSpace(m[r.ShowGroup])
		}

		if show == "" {
			// the rule only gated the title; keep looking
			continue
		}

		var episode *int
		if r.episodeRe != nil {
			group := r.EpisodeGroup
			if group == 0 {
				group = 1
			}

			if em := r.episodeRe.FindStringSubmatch(title); em != nil && group < len(em) {
				if n, err := strconv.Atoi(em[group]); err == nil {
					episode = &n
				}
			}
		}

		return &show, episode
	}

	return nil, nil
}

package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/css"
	"github.com/tdewolff/minify/html"
	"github.com/tdewolff/minify/js"
	"github.com/urfave/negroni/v2"
	"go.etcd.io/bbolt"

	"fknsrs.biz/p/ytstats/handlers"
	"fknsrs.biz/p/ytstats/internal/captions"
	"fknsrs.biz/p/ytstats/internal/config"
	"fknsrs.biz/p/ytstats/internal/configreader"
	"fknsrs.biz/p/ytstats/internal/ctxclock"
	"fknsrs.biz/p/ytstats/internal/ctxconfig"
	"fknsrs.biz/p/ytstats/internal/ctxdb"
	"fknsrs.biz/p/ytstats/internal/ctxhttpclient"
	"fknsrs.biz/p/ytstats/internal/ctxlogger"
	"fknsrs.biz/p/ytstats/internal/ctxtemplate"
	"fknsrs.biz/p/ytstats/internal/ctxtimer"
	"fknsrs.biz/p/ytstats/internal/export"
	"fknsrs.biz/p/ytstats/internal/httpcache"
	"fknsrs.biz/p/ytstats/internal/ingest"
	"fknsrs.biz/p/ytstats/internal/logrusstackhook"
	"fknsrs.biz/p/ytstats/internal/showpattern"
	"fknsrs.biz/p/ytstats/internal/sqlitelogger"
	"fknsrs.biz/p/ytstats/internal/store"
	"fknsrs.biz/p/ytstats/internal/stringutil"
	"fknsrs.biz/p/ytstats/internal/templatecollection"
	"fknsrs.biz/p/ytstats/internal/timeutil"
	"fknsrs.biz/p/ytstats/internal/ytapi"
	"fknsrs.biz/p/ytstats/internal/ytutil"
)

func init() {
	sorm.SetParameterPrefix("?")
}

var cfg = config.Config{
	LogLevel:         logrus.InfoLevel,
	LogDebugLevels:   config.LevelList{logrus.DebugLevel, logrus.TraceLevel},
	LogQueries:       config.LogQueries{Enabled: true, SlowerThan: time.Millisecond * 100},
	LogSORM:          false,
	Database:         "ytstats.db",
	CachePath:        "cache.db",
	DataPath:         "data",
	PatternsPath:     "show_patterns.yaml",
	MaxVideos:        25,
	IncludeAnalytics: true,
	CaptionLanguage:  "uk",
	CaptionFormat:    "vtt",
	DashboardAddr:    ":8080",
	DashboardMinify:  true,
}

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger *logrus.Logger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.error":      err,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query finish")
}

func main() {
	ctx := context.Background()

	command := "serve"
	arguments := os.Args[1:]
	if len(arguments) > 0 && !strings.HasPrefix(arguments[0], "-") {
		command = arguments[0]
		arguments = arguments[1:]
	}

	// positional arguments sit between the command and any flags
	var commandArgs []string
	for len(arguments) > 0 && !strings.HasPrefix(arguments[0], "-") {
		commandArgs = append(commandArgs, arguments[0])
		arguments = arguments[1:]
	}

	if err := configreader.Read(os.Args[0], arguments, os.Environ(), &cfg); err != nil {
		panic(err)
	}

	ctx = ctxconfig.WithConfig(ctx, cfg)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewRealClock())

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(nil, cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":            cfg.Config,
		"config.log_level":         cfg.LogLevel,
		"config.log_debug_levels":  cfg.LogDebugLevels,
		"config.log_queries":       cfg.LogQueries,
		"config.log_sorm":          cfg.LogSORM,
		"config.database":          cfg.Database,
		"config.cache_path":        cfg.CachePath,
		"config.data_path":         cfg.DataPath,
		"config.patterns_path":     cfg.PatternsPath,
		"config.channel_id":        cfg.ChannelID,
		"config.max_videos":        cfg.MaxVideos,
		"config.include_analytics": cfg.IncludeAnalytics,
		"config.force_remap":       cfg.ForceRemap,
		"config.caption_language":  cfg.CaptionLanguage,
		"config.caption_format":    cfg.CaptionFormat,
		"config.dashboard_addr":    cfg.DashboardAddr,
		"config.dashboard_minify":  cfg.DashboardMinify,
		"command":                  command,
	}).Info("program starting")

	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)

	dbDriver := "sqlite3"

	if !cfg.LogQueries.IsZero() {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqlitelogger.New(
			dbDriver,
			&sqlite3.SQLiteDriver{},
			&sqlitelogger.BasicFilter{
				LogSlowerThan: cfg.LogQueries.SlowerThan,
				IgnorePackageStackFrames: []string{
					// standard library
					"database/sql",
					"net/http",
					"runtime",
					// libraries
					"github.com/gorilla/mux",
					"github.com/shogo82148/go-sql-proxy",
					"github.com/urfave/negroni/v2",
					// middleware
					"fknsrs.biz/p/ytstats/internal/ctxclock",
					"fknsrs.biz/p/ytstats/internal/ctxdb",
					"fknsrs.biz/p/ytstats/internal/ctxlogger",
					"fknsrs.biz/p/ytstats/internal/ctxtemplate",
					"fknsrs.biz/p/ytstats/internal/ctxtimer",
					"fknsrs.biz/p/ytstats/internal/sqlitelogger",
					// main
					"main",
				},
			},
		))
	}

	db, err := sql.Open(dbDriver, cfg.Database)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx = ctxdb.WithDB(ctx, db)

	if err := store.Migrate(ctx); err != nil {
		panic(err)
	}

	cacheDB, err := bbolt.Open(cfg.CachePath, 0600, nil)
	if err != nil {
		panic(err)
	}
	defer cacheDB.Close()

	ctx = ctxhttpclient.WithHTTPClient(ctx, &http.Client{
		Transport: httpcache.NewTransport(nil, httpcache.NewBBoltStorage(cacheDB), 0),
	})

	client := &ytapi.Client{APIKey: cfg.APIKey, AccessToken: cfg.AccessToken}

	captionStore, err := captions.NewStore(cfg.CaptionsDir())
	if err != nil {
		panic(err)
	}

	runner := &ingest.Runner{
		Metadata:     client,
		Analytics:    client,
		Captions:     captionSource(client),
		CaptionStore: captionStore,
	}

	switch command {
	case "collect":
		err = runCollect(ctx, runner)
	case "channel-stats":
		err = runChannelStats(ctx, runner)
	case "captions":
		err = runCaptions(ctx, runner, commandArgs)
	case "map-shows":
		err = runMapShows(ctx, runner)
	case "export":
		err = runExport(ctx)
	case "serve":
		err = runAllWorkers(ctx, []worker{
			{
				name: "dashboard",
				run: func(ctx context.Context) error {
					return runDashboardWorker(ctx, cfg.DashboardAddr)
				},
			},
		})
	default:
		err = fmt.Errorf("unknown command %q; valid commands are collect, channel-stats, captions, map-shows, export, and serve", command)
	}

	if err != nil {
		panic(err)
	}
}

// captionSource picks the authenticated caption API when a token is
// available, and falls back to scraping the public watch page otherwise.
func captionSource(client *ytapi.Client) ingest.CaptionProvider {
	if client.AccessToken != "" {
		return client
	}

	return &ytapi.WatchPageCaptions{Client: client}
}

func resolveChannelID(ctx context.Context) (string, error) {
	if cfg.ChannelID == "" {
		return "", nil
	}

	return ytutil.FindChannelID(ctx, cfg.ChannelID)
}

func runCollect(ctx context.Context, runner *ingest.Runner) error {
	channelID, err := resolveChannelID(ctx)
	if err != nil {
		return err
	}

	summary, err := runner.CollectVideos(ctx, ingest.CollectOptions{
		ChannelID:        channelID,
		MaxVideos:        cfg.MaxVideos,
		IncludeAnalytics: cfg.IncludeAnalytics,
	})
	if err != nil {
		return err
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"summary.total":             summary.Total,
		"summary.inserted":          summary.Inserted,
		"summary.updated":           summary.Updated,
		"summary.failed":            summary.Failed,
		"summary.not_found":         summary.NotFound,
		"summary.permission_denied": summary.PermissionDenied,
	}).Info("collect finished")

	return nil
}

func runChannelStats(ctx context.Context, runner *ingest.Runner) error {
	channelID, err := resolveChannelID(ctx)
	if err != nil {
		return err
	}

	stats, err := runner.CollectChannelStats(ctx, channelID)
	if err != nil {
		return err
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"channel.id":          stats.ChannelID,
		"channel.title":       stats.Title,
		"channel.subscribers": stats.SubscriberCount,
		"channel.views":       stats.ViewCount,
		"channel.videos":      stats.VideoCount,
	}).Info("channel stats recorded")

	return nil
}

func runCaptions(ctx context.Context, runner *ingest.Runner, args []string) error {
	var videoIDs []string

	if len(args) > 0 {
		ids, err := ytutil.ExtractAndIdentifyIDs(strings.Join(args, " "), false)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if id.Type != ytutil.VideoID {
				return fmt.Errorf("captions command only accepts videos; got a %s (%s)", id.Type, id.Value)
			}

			videoIDs = append(videoIDs, id.Value)
		}
	} else {
		videos, err := store.AllVideos(ctx, true)
		if err != nil {
			return err
		}

		for _, video := range videos {
			videoIDs = append(videoIDs, video.VideoID)
		}
	}

	summary, err := runner.DownloadCaptions(ctx, ingest.CaptionOptions{
		VideoIDs:     videoIDs,
		LanguageCode: cfg.CaptionLanguage,
		Format:       cfg.CaptionFormat,
	})
	if err != nil {
		return err
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"summary.total":             summary.Total,
		"summary.saved":             summary.Saved,
		"summary.skipped":           summary.Skipped,
		"summary.no_captions":       summary.NoCaptions,
		"summary.permission_denied": summary.PermissionDenied,
		"summary.failed":            summary.Failed,
	}).Info("captions finished")

	return nil
}

func runMapShows(ctx context.Context, runner *ingest.Runner) error {
	patterns, err := showpattern.Load(cfg.PatternsPath)
	if err != nil {
		return err
	}

	maxVideos := patterns.Options.MaxVideos
	if maxVideos == 0 {
		maxVideos = cfg.MaxVideos
	}

	summary, err := runner.MapShows(ctx, ingest.MapOptions{
		Rules:     patterns.ShowPatterns,
		OnlyEmpty: patterns.Options.UpdateOnlyEmpty && !cfg.ForceRemap,
		MaxVideos: maxVideos,
	})
	if err != nil {
		return err
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"summary.total":           summary.Total,
		"summary.shows_mapped":    summary.ShowsMapped,
		"summary.episodes_mapped": summary.EpisodesMapped,
		"summary.no_match":        summary.NoMatch,
	}).Info("show mapping finished")

	return nil
}

func runExport(ctx context.Context) error {
	paths, err := export.All(ctx, cfg.ExportsDir())
	if err != nil {
		return err
	}

	ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
		"export.files": paths,
	}).Info("export finished")

	return nil
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func runAllWorkers(ctx context.Context, workers []worker) error {
	done := make(chan error, len(workers))
	cancellers := make([]context.CancelCauseFunc, len(workers))

	var rw sync.RWMutex

	for id, w := range workers {
		go func(id int, w worker) {
			for {
				l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
					"worker.id":   id + 1,
					"worker.name": w.name,
				})

				ctx, cancel := context.WithCancelCause(ctxlogger.WithLogger(ctx, l))

				rw.Lock()
				cancellers[id] = cancel
				rw.Unlock()

				if err := w.run(ctx); err != nil {
					l.WithError(err).Error("worker failed")

					rw.RLock()
					for _, fn := range cancellers {
						if fn == nil {
							continue
						}

						fn(fmt.Errorf("worker %d (%s) failed: %w", id+1, w.name, err))
					}
					rw.RUnlock()
				} else {
					l.Info("worker restarted")
				}

				time.Sleep(time.Second)
			}
		}(id, w)
	}

	var errs []error
	for err := range done {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func directoryExists(name string) bool {
	st, err := os.Stat(name)
	if err != nil {
		return false
	}
	return st.IsDir()
}

type FieldNameValuePair struct {
	Name  string
	Value interface{}
}

func runDashboardWorker(ctx context.Context, addr string) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running dashboard worker")

	templateFuncs := template.FuncMap{
		"slice_length": func(v interface{}) int {
			val := reflect.ValueOf(v)
			if val.Kind() != reflect.Slice {
				panic(fmt.Errorf("expected input to be a slice"))
			}
			return val.Len()
		},
		"field_names": func(v interface{}) []string {
			typ := reflect.TypeOf(v)
			if typ.Kind() == reflect.Ptr {
				typ = typ.Elem()
			}
			if typ.Kind() == reflect.Slice {
				typ = typ.Elem()
			}

			var a []string
			for i := 0; i < typ.NumField(); i++ {
				a = append(a, typ.Field(i).Name)
			}

			return a
		},
		"field_name_value_pairs": func(v interface{}) []FieldNameValuePair {
			val := reflect.ValueOf(v)
			if val.Kind() == reflect.Ptr {
				val = reflect.Indirect(val)
			}
			if val.Kind() != reflect.Struct {
				panic(fmt.Errorf("expected input value to be a struct"))
			}

			typ := val.Type()

			var a []FieldNameValuePair
			for i := 0; i < typ.NumField(); i++ {
				a = append(a, FieldNameValuePair{typ.Field(i).Name, val.Field(i).Interface()})
			}

			return a
		},
		"first_of": func(a ...interface{}) string {
			for _, e := range a {
				if s := fmt.Sprintf("%v", e); s != "" {
					return s
				}
			}

			return ""
		},
		"format_time": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
		"format_time_null": func(t *time.Time) string {
			if t == nil {
				return ""
			}

			return t.Format(time.RFC3339)
		},
		"format_date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"format_date_null": func(t *time.Time) string {
			if t == nil {
				return ""
			}

			return t.Format("2006-01-02")
		},
		"format_time_relative": func(t time.Time) string {
			return time.Now().Sub(t).String()
		},
		"format_duration": timeutil.FormatSeconds,
		"pascal_to_snake": stringutil.PascalToSnake,
		"pascal_to_title": stringutil.PascalToTitle,
		"make_map": func(args ...interface{}) map[string]interface{} {
			m := make(map[string]interface{})

			for i := 0; i < len(args)/2; i++ {
				kv := args[i*2]
				vv := args[i*2+1]

				k, ok := kv.(string)
				if !ok {
					panic(fmt.Errorf("key value should be string; was instead %T", kv))
				}

				m[k] = vv
			}

			return m
		},
	}

	var templates templatecollection.Collection

	if directoryExists("templates") {
		l.Info("using live filesystem for templates")
		c, err := templatecollection.NewLive(os.DirFS("templates"), templateFuncs)
		if err != nil {
			return fmt.Errorf("runDashboardWorker: %w", err)
		}
		templates = c
	} else {
		l.Info("using embedded filesystem for templates")
		c, err := templatecollection.NewCached(templateFS, templateFuncs)
		if err != nil {
			return fmt.Errorf("runDashboardWorker: %w", err)
		}
		templates = c
	}

	m := mux.NewRouter()

	m.Methods(http.MethodGet).Path("/").HandlerFunc(handlers.Index)
	m.Methods(http.MethodGet).Path("/videos").HandlerFunc(handlers.Videos)
	m.Methods(http.MethodGet).Path("/videos/{id}").HandlerFunc(handlers.Video)
	m.Methods(http.MethodPost).Path("/videos/{id}/exclude").HandlerFunc(handlers.VideoExcludeAction)
	m.Methods(http.MethodGet).Path("/shows").HandlerFunc(handlers.Shows)
	m.Methods(http.MethodGet).Path("/channel").HandlerFunc(handlers.ChannelHistory)
	m.Methods(http.MethodGet).Path("/export/{table}.csv").HandlerFunc(handlers.ExportCSV)

	if directoryExists("static") {
		l.Info("using live filesystem for static files")
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	} else {
		l.Info("using embedded filesystem for static files")
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	m.Methods(http.MethodGet).PathPrefix("/data/").Handler(http.StripPrefix("/data/", http.FileServer(http.Dir(ctxconfig.GetConfig(ctx).DataPath))))

	min := minify.New()
	min.Add("text/html", html.DefaultMinifier)
	min.Add("text/css", css.DefaultMinifier)
	min.Add("application/javascript", js.DefaultMinifier)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxtimer.Register(nil))
	n.UseFunc(ctxclock.Register(ctxclock.GetClock(ctx)))
	n.UseFunc(ctxtemplate.Register(templates))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxtimer.AddLoggerHooks())
	n.UseFunc(ctxclock.AddLoggerHooks())
	n.UseFunc(ctxlogger.Log())

	n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxtemplate.WithData(r.Context(), map[string]interface{}{
			"Messages": struct{ Error, Success, Information string }{
				r.URL.Query().Get("error"),
				r.URL.Query().Get("success"),
				r.URL.Query().Get("information"),
			},
		})))
	})

	if cfg.DashboardMinify {
		n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
			if strings.ToLower(r.Header.Get("connection")) != "upgrade" {
				mw := min.ResponseWriter(rw, r)
				defer mw.Close()
				rw = mw
			}

			next(rw, r)
		})
	}

	n.UseHandler(m)

	s := &http.Server{
		Addr:        addr,
		Handler:     n,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return s.Shutdown(ctx)
	}
}

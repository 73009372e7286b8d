package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"db-ferry/internal/config"
	"db-ferry/internal/dialect"
	"db-ferry/internal/mirror"
	"db-ferry/internal/server"
	"db-ferry/internal/source"
)

// openStore opens and pings a configured SQL store.
func openStore(ctx context.Context, name string, c config.DBConfig) (mirror.Store, error) {
	db, err := sql.Open(c.Driver, c.DSN)
	if err != nil {
		return mirror.Store{}, fmt.Errorf("open %s: %w", name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return mirror.Store{}, fmt.Errorf("connect to %s: %w", name, err)
	}
	d := dialect.GetDialect(c.Driver)
	logger.Info("connected", "store", name, "driver", c.Driver, "schema", d.GetSchemaName(c.SchemaName()))
	return mirror.Store{DB: db, Dialect: d, Schema: c.SchemaName()}, nil
}

func newSource() (*source.Client, error) {
	return source.New(source.Config{
		URL:     cfg.Source.URL,
		APIKey:  cfg.Source.APIKey,
		Schema:  cfg.Source.Schema,
		Timeout: cfg.HTTPTimeout,
	}, logger)
}

// syncStack is everything the continuous-sync commands share.
type syncStack struct {
	target, mirror mirror.Store
	log            *mirror.LogStore
	service        *mirror.Service
}

func (s *syncStack) Close() {
	if s.log != nil {
		s.log.Close()
	}
	for _, st := range []mirror.Store{s.target, s.mirror} {
		if st.DB != nil {
			st.DB.Close()
		}
	}
}

func openSyncStack(ctx context.Context) (*syncStack, error) {
	if err := cfg.Validate(config.ModeSync); err != nil {
		return nil, err
	}
	s := &syncStack{}
	var err error
	if s.target, err = openStore(ctx, "target", cfg.Target); err != nil {
		return nil, err
	}
	if s.mirror, err = openStore(ctx, "mirror", cfg.Mirror); err != nil {
		s.Close()
		return nil, err
	}
	if s.log, err = mirror.OpenLogStore(cfg.StateDB); err != nil {
		s.Close()
		return nil, err
	}

	gate := mirror.NewGate(s.target, s.mirror, cfg.Sync.AllowDestructive, logger)
	syncer := mirror.NewSyncer(s.target, s.mirror, mirror.SyncerOptions{
		Tables:         cfg.Sync.Tables,
		ConflictColumn: cfg.Sync.ConflictColumn,
		BatchSize:      cfg.Sync.BatchSize,
		MirrorDeletes:  cfg.Sync.MirrorDeletes,
	}, logger)
	s.service = mirror.NewService(gate, syncer, s.log, mirror.ServiceOptions{
		Direction: cfg.Sync.Direction,
		ReportDir: cfg.ReportDir,
	}, logger)
	return s, nil
}

// probes builds a connectivity probe per configured store. A store that is
// not configured still gets a probe that reports so.
func probes(src *source.Client, target, mirrorStore mirror.Store) map[string]server.Probe {
	var checker server.SourceChecker
	if src != nil {
		checker = src
	}
	return map[string]server.Probe{
		"source": server.SourceProbe(checker),
		"target": server.SQLProbe("target", target.DB, dialectOf(target, cfg.Target), target.Schema),
		"mirror": server.SQLProbe("mirror", mirrorStore.DB, dialectOf(mirrorStore, cfg.Mirror), mirrorStore.Schema),
	}
}

func dialectOf(st mirror.Store, c config.DBConfig) dialect.Dialect {
	if st.Dialect != nil {
		return st.Dialect
	}
	return dialect.GetDialect(c.Driver)
}

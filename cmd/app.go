package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"sockchat/internal/app/chat"
	"sockchat/internal/app/cluster"
	"sockchat/internal/app/db"
	"sockchat/internal/app/session"
	"sockchat/internal/app/storage"
	"sockchat/internal/app/user"
	"sockchat/internal/app/view"
	"sockchat/internal/configs"
	"sockchat/internal/handler"
	"sockchat/internal/pkg/auth/cookie"
	"sockchat/internal/pkg/logx"
	"sockchat/internal/pkg/pow"
)

const (
	connectTimeout = 15 * time.Second
	pruneInterval  = 10 * time.Minute
)

// application is the fully wired server. close releases everything in reverse order.
type application struct {
	router  http.Handler
	closers []func()
}

func (a *application) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores holds the backends selected by DATABASE_URL.
type stores struct {
	users    user.Store
	sessions session.Store
}

// buildApp connects every backend and assembles the router. Any returned error means the
// database could not be reached.
func buildApp(ctx context.Context, cfg *configs.AppConfig, views *view.Renderer) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	st, err := connectDatabase(ctx, connectCtx, cfg, app)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.SessionBackend == configs.SessionBackendRedis || cfg.ClusterMode {
		rdb, err = db.ConnectRedis(connectCtx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { _ = rdb.Close() })

		if cfg.SessionBackend == configs.SessionBackendRedis {
			st.sessions = session.NewRedisStore(rdb)
		}
	}

	codec, err := cookie.NewCodec(cfg.SessionCookieName, cfg.SessionSecret, cfg.SessionCookieSecure)
	if err != nil {
		return nil, fmt.Errorf("session cookie: %w", err)
	}

	users := user.NewService(st.users)

	hub, err := startHub(connectCtx, cfg, rdb, app)
	if err != nil {
		return nil, err
	}

	powManager := pow.NewManager(cfg.RegisterPowDifficulty)
	app.onClose(powManager.Stop)

	deps := &handler.AppDeps{
		Config:     cfg,
		Users:      users,
		Sessions:   session.NewManager(st.sessions, codec, users, cfg.SessionTTL),
		Authorizer: session.NewAuthorizer(st.sessions, codec, users),
		Hub:        hub,
		Views:      views,
		Pow:        powManager,
	}

	if cfg.AssetsFromS3() {
		deps.Assets, err = storage.NewAssetService(connectCtx, assetConfig(cfg))
		if err != nil {
			return nil, err
		}
	}

	app.router = handler.Router(deps)
	return app, nil
}

// connectDatabase opens the credential store and, for SESSION_BACKEND=database, the session
// store on the same backend. runCtx outlives startup and drives background pruning.
func connectDatabase(runCtx, connectCtx context.Context, cfg *configs.AppConfig, app *application) (stores, error) {
	kind, err := cfg.DatabaseKind()
	if err != nil {
		return stores{}, err
	}

	switch kind {
	case configs.DatabaseMongo:
		client, err := db.ConnectMongo(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		app.onClose(func() { _ = client.Disconnect(context.Background()) })

		database := client.Database(cfg.MongoDatabase)

		users, err := user.NewMongoStore(connectCtx, database)
		if err != nil {
			return stores{}, err
		}
		sessions, err := session.NewMongoStore(connectCtx, database)
		if err != nil {
			return stores{}, err
		}

		logx.Info("Connected to MongoDB", "database", cfg.MongoDatabase)
		return stores{users: users, sessions: sessions}, nil

	case configs.DatabasePostgres:
		pool, err := db.NewPool(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		app.onClose(pool.Close)

		sessions := session.NewPostgresStore(pool)
		go session.RunPruner(runCtx, sessions, pruneInterval)

		logx.Info("Connected to PostgreSQL")
		return stores{users: user.NewPostgresStore(pool), sessions: sessions}, nil

	default:
		sessions := session.NewMemoryStore()
		go session.RunPruner(runCtx, sessions, pruneInterval)

		logx.Warn("Using in-memory stores; users and sessions are lost on restart")
		return stores{users: user.NewMemoryStore(), sessions: sessions}, nil
	}
}

// startHub runs the chat hub, joined to the other instances through Redis in cluster mode.
func startHub(ctx context.Context, cfg *configs.AppConfig, rdb *redis.Client, app *application) (*chat.Hub, error) {
	if !cfg.ClusterMode {
		hub := chat.NewHub()
		go hub.Run()
		app.onClose(hub.Stop)
		return hub, nil
	}

	hub := chat.NewHub(chat.WithCounter(cluster.NewRedisCounter(rdb, cluster.DefaultPrefix)))

	bridge := cluster.NewRedisBridge(rdb, cluster.DefaultPrefix, hub)
	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("cluster bridge: %w", err)
	}
	app.onClose(bridge.Stop)

	hub.SetPublisher(bridge)
	go hub.Run()
	app.onClose(hub.Stop)

	logx.Info("Cluster mode enabled", "instance_id", bridge.InstanceID())
	return hub, nil
}

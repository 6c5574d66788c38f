package server

import (
	"context"
	"time"

	"github.com/biancann/footfolio/internal/auth"
	"github.com/biancann/footfolio/internal/chain"
	"github.com/biancann/footfolio/internal/config"
	"github.com/biancann/footfolio/internal/db"
	"github.com/biancann/footfolio/internal/location"
	"github.com/biancann/footfolio/internal/mapview"
	"github.com/biancann/footfolio/internal/metrics"
	"github.com/biancann/footfolio/internal/rank"
	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/storage"
	"github.com/biancann/footfolio/internal/stream"
	"github.com/biancann/footfolio/internal/tracking"
	"github.com/biancann/footfolio/internal/walk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Log    *zap.Logger
	Stream *stream.Hub
	Walks  *walk.Manager
	Rank   *rank.Service

	querier  db.Querier
	source   location.Source
	renderer *render.Renderer
}

func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	metrics.Init()

	app := fiber.New(fiber.Config{BodyLimit: 8 * 1024 * 1024})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Log:    log,
		Stream: stream.NewHub(redisClient, log),
	}
	if pg != nil {
		s.querier = pg
	}

	s.wire()
	registerRoutes(s)
	return s
}

func (s *Server) wire() {
	cfg := s.Cfg

	if cfg.LocationSource == "redis" && s.Redis != nil {
		s.source = location.NewRedisFeed(s.Redis, s.Log)
	} else {
		s.source = location.NewFeed()
	}

	s.renderer = render.New(mapview.NewStatic(cfg.StaticMapURL), cfg.MapSettleDelay)

	var pins *storage.Service
	var store *rank.Store
	if s.querier != nil {
		pins = storage.NewService(s.querier)
		store = rank.NewStore(s.querier)
	}
	publisher := storage.NewPublisher(cfg.PinataAPIURL, cfg.PinataJWT, pins, s.Log)

	rpc := s.dialChain()
	contract := common.HexToAddress(cfg.ContractAddress)
	reader := chain.NewReader(rpc, contract)
	submitter := chain.NewSubmitter(chain.NewRelay(cfg.WalletRelayURL), contract, cfg.MintAuthToken)
	confirmer := chain.NewConfirmer(rpc, cfg.ConfirmTimeout)

	var cache *rank.Cache
	if s.Redis != nil {
		cache = rank.NewCache(s.Redis, cfg.RankCacheTTL)
	}
	s.Rank = rank.NewService(store, rank.NewScanner(reader, cfg.IPFSGateway, cfg.GatewayRPS, s.Log), cache, s.Log)

	s.Walks = walk.NewManager(s.source, walk.Deps{
		Renderer:  s.renderer,
		Publisher: publisher,
		Chain:     reader,
		Submitter: submitter,
		Confirmer: confirmer,
		Commits:   s.Rank,
		Log:       s.Log,
	}, tracking.WithCenterer(s.Stream), tracking.WithBroadcaster(s.Stream))
}

type rpcClient interface {
	chain.Caller
	chain.ReceiptFetcher
}

func (s *Server) dialChain() rpcClient {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := chain.Dial(ctx, s.Cfg.RPCURL)
	if err != nil {
		s.Log.Warn("chain rpc unavailable", zap.String("url", s.Cfg.RPCURL), zap.Error(err))
		return chain.Offline{Err: err}
	}
	return client
}

// Close stops live walks and the stream relay. Pools are closed by the caller.
func (s *Server) Close() {
	s.Walks.Close()
	s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	if s.querier != nil {
		auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.querier))
	}
	location.RegisterRoutes(s.App.Group("/devices"), s.source, jwtMiddleware)
	walk.RegisterRoutes(s.App.Group("/walks"), s.Walks, jwtMiddleware)
	rank.RegisterRoutes(s.App, s.Rank)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

package main

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/rizkia-p/wayfindr/pkg/deadreckoning"
	"github.com/rizkia-p/wayfindr/pkg/embedding"
	"github.com/rizkia-p/wayfindr/pkg/engine/navigation"
	"github.com/rizkia-p/wayfindr/pkg/http"
	"github.com/rizkia-p/wayfindr/pkg/http/usecases"
	"github.com/rizkia-p/wayfindr/pkg/localizer"
	"github.com/rizkia-p/wayfindr/pkg/logger"
	"github.com/rizkia-p/wayfindr/pkg/mapstore"
	"github.com/rizkia-p/wayfindr/pkg/planner"
	"github.com/rizkia-p/wayfindr/pkg/spatialindex"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"github.com/rizkia-p/wayfindr/pkg/vlm"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	bundlePath = flag.String("bundle", "./data/map.bundle.bz2",
		"bzip2 compressed map bundle; ignored when POSTGRES_DSN is set")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()
	_ = util.ReadConfig() // optional ./data/config file, env vars win
	viper.AutomaticEnv()

	logger, err := logger.New()
	if err != nil {
		panic(err)
	}

	viper.SetDefault("EMBEDDING_URL", "http://localhost:8090")
	viper.SetDefault("VLM_URL", "http://localhost:8091")
	viper.SetDefault("CLIENT_TIMEOUT", "30s")
	viper.SetDefault("ORG_ID", "default")

	ctx, cleanup, err := NewContext()
	if err != nil {
		panic(err)
	}

	var (
		store mapstore.Store
		orgId = viper.GetString("ORG_ID")
	)
	if dsn := viper.GetString("POSTGRES_DSN"); dsn != "" {
		pg, err := mapstore.NewPostgresStore(ctx, dsn, logger)
		if err != nil {
			panic(err)
		}
		defer pg.Close()
		store = pg
	} else {
		mem, bundleOrg, err := mapstore.LoadBundle(*bundlePath)
		if err != nil {
			panic(err)
		}
		store = mem
		orgId = bundleOrg
	}

	nodes, err := store.GetNodes(ctx, orgId)
	if err != nil {
		panic(err)
	}
	edges, err := store.GetEdges(ctx, orgId)
	if err != nil {
		panic(err)
	}

	routePlanner := planner.NewRoutePlanner(logger)
	routePlanner.Initialize(nodes, edges)

	rtree := spatialindex.NewRtree()
	rtree.Build(nodes, logger)

	embedClient := embedding.NewClient(viper.GetString("EMBEDDING_URL"), viper.GetDuration("CLIENT_TIMEOUT"))
	vlmClient := vlm.NewClient(viper.GetString("VLM_URL"), viper.GetDuration("CLIENT_TIMEOUT"))

	loc := localizer.New(logger, embedClient, vlmClient, store, orgId, localizer.DefaultConfig())
	resolver := usecases.NewEdgePathResolver(store, logger)

	api := http.NewServer(logger)

	navigationService := usecases.NewNavigationService(logger, routePlanner, loc, rtree, resolver,
		navigation.DefaultConfig(), deadreckoning.DefaultConfig())

	api.Use(ctx,
		logger, false, navigationService)

	signal := http.GracefulShutdown()

	logger.Info("Wayfindr Navigation Engine Server Stopped", zap.String("signal", signal.String()))
	cleanup()
}

func NewContext() (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	cb := func() {
		cancel()
	}

	return ctx, cb, nil
}

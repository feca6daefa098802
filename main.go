package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/GitBakko/Notiq-sub001/boardd"
	"github.com/GitBakko/Notiq-sub001/client"
	"github.com/GitBakko/Notiq-sub001/domain"
	"github.com/GitBakko/Notiq-sub001/engine"
	"github.com/GitBakko/Notiq-sub001/geom"
	"github.com/GitBakko/Notiq-sub001/store"
)

const defaultTestSecret = "local-dev-secret"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc = redis.NewClient(redisOptions(redisConn))
	}

	auth, testSecret := buildAuth()

	mem := boardd.NewMemStore()
	boardID := mem.PutBoard(demoBoard())

	broker := boardd.NewBroker()
	bridge := boardd.NewBridge(broker, rc, logger)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go bridge.SubscribeUpdates(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	boardd.Register(e, mem, auth, bridge, broker, logger)

	listenAddr := ":8080"
	if v, ok := os.LookupEnv("BOARD_LISTEN_ADDR"); ok {
		listenAddr = v
	}
	go func() {
		if err := e.Start(listenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	if testSecret != "" {
		go runDemo(ctx, logger, "http://127.0.0.1"+portOf(listenAddr), boardID, testSecret, rc)
	} else {
		logger.Info("JWKS auth configured, skipping the scripted demo")
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// buildAuth wires JWKS verification when Auth0 config is present and
// falls back to the HS256 test mode otherwise. The returned secret is
// empty in JWKS mode.
func buildAuth() (*boardd.Auth, string) {
	domainName := os.Getenv("AUTH0_DOMAIN")
	audience := os.Getenv("AUTH0_AUDIENCE")
	if domainName != "" && audience != "" {
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domainName)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		return boardd.NewAuth(jwks, audience, "https://"+domainName+"/"), ""
	}
	secret := os.Getenv("TEST_JWT_SECRET")
	if secret == "" {
		secret = defaultTestSecret
	}
	return boardd.NewTestAuth(secret), secret
}

func redisOptions(connStr string) *redis.Options {
	opts, err := redis.ParseURL(connStr)
	if err == nil {
		return opts
	}
	parts := strings.Split(connStr, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func portOf(listenAddr string) string {
	if i := strings.LastIndex(listenAddr, ":"); i >= 0 {
		return listenAddr[i:]
	}
	return ":" + listenAddr
}

func demoBoard() *domain.Board {
	return &domain.Board{
		Title:   "Release 1.4",
		OwnerID: "alice",
		Columns: []domain.Column{
			{Title: "Todo", ID: "todo", Cards: []domain.Card{
				{ID: "write-notes", ColumnID: "todo", Title: "Write release notes"},
				{ID: "bump-deps", ColumnID: "todo", Title: "Bump dependencies"},
			}},
			{Title: "In progress", ID: "doing"},
			{Title: "Done", ID: "done"},
		},
	}
}

// runDemo opens two sessions against the local server, drags a card in
// the first one and logs the second one observing the move.
func runDemo(ctx context.Context, logger *log.Logger, baseURL, boardID, secret string, rc *redis.Client) {
	// Give the listener a moment to come up.
	time.Sleep(200 * time.Millisecond)

	var cache *store.SnapshotCache
	if rc != nil {
		cache = store.NewSnapshotCache(rc, time.Hour)
	}

	open := func(userID string) (*engine.Session, error) {
		tok, err := boardd.SignTestToken(secret, userID)
		if err != nil {
			return nil, err
		}
		var s *engine.Session
		s, err = engine.Open(ctx, engine.Config{
			BoardID: boardID,
			API:     client.New(baseURL, nil, client.StaticToken(tok)),
			Bounds:  &gridProvider{board: func() *domain.Board { return s.Board() }},
			Cache:   cache,
			Logger:  logger,
		})
		return s, err
	}

	alice, err := open("alice")
	if err != nil {
		logger.Errorf("demo: open alice: %v", err)
		return
	}
	defer alice.Close()
	bob, err := open("bob")
	if err != nil {
		logger.Errorf("demo: open bob: %v", err)
		return
	}
	defer bob.Close()

	if err := alice.StartCardDrag("write-notes"); err != nil {
		logger.Errorf("demo: start drag: %v", err)
		return
	}
	if err := alice.MoveOver(geom.Point{X: 200, Y: 250}); err != nil {
		logger.Errorf("demo: move: %v", err)
		return
	}
	if err := alice.CommitDrag(ctx); err != nil {
		logger.Errorf("demo: commit: %v", err)
		return
	}
	logger.WithFields(log.Fields{"board": boardID, "card": "write-notes"}).
		Info("alice moved a card")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		col := bob.Board().FindColumn("doing")
		if col != nil && len(col.Cards) == 1 {
			logger.WithFields(log.Fields{
				"board":       boardID,
				"card":        col.Cards[0].ID,
				"column":      col.ID,
				"highlighted": bob.Highlighted(col.Cards[0].ID),
				"viewers":     len(bob.Presence()),
			}).Info("bob observed the move")
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	logger.Warn("demo: bob never observed the move")
}

// gridProvider measures the demo board with a fixed grid, standing in
// for real DOM measurement.
type gridProvider struct {
	board func() *domain.Board
}

func (p *gridProvider) ColumnBounds() []geom.Bounds {
	board := p.board()
	out := make([]geom.Bounds, len(board.Columns))
	for i, col := range board.Columns {
		out[i] = geom.Bounds{ID: col.ID, Rect: geom.Rect{
			X: float64(i) * 150, Y: 0, Width: 100, Height: 500,
		}}
	}
	return out
}

func (p *gridProvider) CardBounds(columnID string) []geom.Bounds {
	board := p.board()
	for i, col := range board.Columns {
		if col.ID != columnID {
			continue
		}
		out := make([]geom.Bounds, len(col.Cards))
		for j, card := range col.Cards {
			out[j] = geom.Bounds{ID: card.ID, Rect: geom.Rect{
				X: float64(i)*150 + 10, Y: float64(j)*70 + 10, Width: 80, Height: 60,
			}}
		}
		return out
	}
	return nil
}

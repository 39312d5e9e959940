// Package fakecnd is an in-process stand-in for the swap daemon. It serves
// swap resources with hypermedia actions and hands out ledger actions, so
// actors can be exercised without real ledgers or daemon binaries.
package fakecnd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danmuck/swapharness/internal/observability"
	"github.com/danmuck/swapharness/internal/siren"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Daemon struct {
	ID              string    `json:"id"`
	Addr            string    `json:"-"`
	ListenAddresses []string  `json:"listen_addresses,omitempty"`
	Appeared        time.Time `json:"appeared"`

	network *Network
	router  *gin.Engine
}

type Config struct {
	// ID doubles as the daemon's peer id.
	ID              string
	Addr            string
	ListenAddresses []string
	CorsOrigins     []string
}

// New builds a daemon on network with routes registered.
func New(network *Network, cfg Config) (*Daemon, error) {
	if cfg.ID == "" {
		return nil, errors.New("fakecnd: id is required")
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.ComponentLogger("fakecnd", cfg.ID), cfg.ID))
	r.Use(observability.RequestMetricsMiddleware(cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(cfg.CorsOrigins),
		AllowMethods:  []string{"GET", "POST"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Location"},
		MaxAge:        12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	d := &Daemon{
		ID:              cfg.ID,
		Addr:            cfg.Addr,
		ListenAddresses: cfg.ListenAddresses,
		Appeared:        time.Now(),
		network:         network,
		router:          r,
	}
	if err := network.register(d); err != nil {
		return nil, err
	}
	d.registerRoutes()
	return d, nil
}

func (d *Daemon) HTTPRouter() *gin.Engine {
	return d.router
}

func (d *Daemon) Serve() error {
	log.Info().Str("daemon", d.ID).Str("addr", d.Addr).Msg("fake daemon listening")
	return d.router.Run(d.Addr)
}

func (d *Daemon) registerRoutes() {
	r := d.router
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":               d.ID,
			"listen_addresses": d.ListenAddresses,
			"_links": gin.H{
				"self":  gin.H{"href": "/"},
				"swaps": gin.H{"href": "/swaps"},
			},
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(d.Appeared).String(),
			"service": d.ID,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/swaps", func(c *gin.Context) {
		swaps := d.network.Swaps(d.ID)
		embedded := make([]gin.H, 0, len(swaps))
		for _, s := range swaps {
			role, _ := s.RoleOf(d.ID)
			embedded = append(embedded, swapResource(s, role))
		}
		c.JSON(http.StatusOK, gin.H{
			"_embedded": gin.H{"swaps": embedded},
			"_links":    gin.H{"self": gin.H{"href": "/swaps"}},
		})
	})

	r.POST("/swaps/rfc003", func(c *gin.Context) {
		if !siren.IsJSONMediaType(c.ContentType()) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "expected application/json"})
			return
		}
		var req SwapRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		swap, err := d.network.createSwap(d.ID, req)
		if err != nil {
			d.fail(c, err)
			return
		}
		log.Info().Str("daemon", d.ID).Str("swap", swap.ID).Str("peer", swap.Bob).Msg("swap requested")
		c.Header("Location", swapHref(swap.ID))
		c.JSON(http.StatusCreated, gin.H{"id": swap.ID})
	})

	r.GET("/swaps/rfc003/:id", func(c *gin.Context) {
		swap, role, err := d.network.Swap(d.ID, c.Param("id"))
		if err != nil {
			d.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, swapResource(swap, role))
	})

	r.POST("/swaps/rfc003/:id/accept", func(c *gin.Context) {
		var req AcceptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := d.network.accept(d.ID, c.Param("id"), req); err != nil {
			d.fail(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	r.POST("/swaps/rfc003/:id/decline", func(c *gin.Context) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := d.network.decline(d.ID, c.Param("id"), req.Reason); err != nil {
			d.fail(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	r.GET("/swaps/rfc003/:id/:action", func(c *gin.Context) {
		env, err := d.network.ledgerAction(d.ID, c.Param("id"), c.Param("action"), c.Request.URL.Query())
		if err != nil {
			d.fail(c, err)
			return
		}
		log.Info().
			Str("daemon", d.ID).
			Str("swap", c.Param("id")).
			Str("action", c.Param("action")).
			Str("type", string(env.Type)).
			Msg("ledger action issued")
		c.JSON(http.StatusOK, env)
	})
}

func (d *Daemon) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSwapNotFound), errors.Is(err, ErrActionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownPeer):
		status = http.StatusBadRequest
	case errors.Is(err, ErrWrongSwapRole), errors.Is(err, ErrAlreadyAnswered), errors.Is(err, ErrSwapFinished):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func swapResource(s Swap, role Role) gin.H {
	communication := gin.H{"status": s.Communication}
	if s.DeclineReason != "" {
		communication["decline_reason"] = s.DeclineReason
	}
	alphaHTLC, _ := alphaHTLCAddress(s.ID)
	alpha := gin.H{"status": s.AlphaLedger}
	if alphaHTLC != nil && s.AlphaLedger != LedgerNotDeployed {
		alpha["htlc_location"] = alphaHTLC.EncodeAddress()
	}
	beta := gin.H{"status": s.BetaLedger}
	if s.BetaLedger != LedgerNotDeployed {
		beta["htlc_location"] = betaHTLCAddress(s.ID).Hex()
	}

	res := gin.H{
		"id":       s.ID,
		"role":     role,
		"protocol": "rfc003",
		"status":   s.Status(),
		"parameters": gin.H{
			"alpha_asset":  gin.H{"name": "bitcoin", "quantity": fmt.Sprint(int64(s.AlphaAmount))},
			"beta_asset":   gin.H{"name": "ether", "quantity": s.BetaAmount.String()},
			"alpha_expiry": s.AlphaExpiry.Unix(),
			"beta_expiry":  s.BetaExpiry.Unix(),
		},
		"state": gin.H{
			"communication": communication,
			"alpha_ledger":  alpha,
			"beta_ledger":   beta,
		},
		"_links": gin.H{"self": gin.H{"href": swapHref(s.ID)}},
	}
	if actions := Actions(s, role); len(actions) > 0 {
		res["actions"] = actions
	}
	return res
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
